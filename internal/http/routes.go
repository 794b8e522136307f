package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"database/sql"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/auth"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/db"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/eval"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/schemas"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/storage"
)

type Server struct {
	DB    *sqlx.DB
	S3    *storage.Client
	Asynq *asynq.Client
}

func NewServer(dbx *sqlx.DB, s3c *storage.Client, asq *asynq.Client) *http.Server {
	s := &Server{DB: dbx, S3: s3c, Asynq: asq}
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	// Admin/API-token protected
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken)
		r.Post("/rubrics", s.upsertRubric)
		r.Get("/rubrics/{id}", s.getRubric)
		r.Post("/sessions", s.createSession)
		r.Post("/sessions/{id}/finalize", s.finalize)
		r.Post("/sessions/{id}/evaluate", s.evaluate)
		r.Get("/sessions/{id}", s.getSession)
		r.Get("/sessions/{id}/report", s.getReport)
	})

	// Upload token (uses Authorization: Bearer <upload>)
	r.Post("/sessions/{id}/messages", s.appendMessages)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbx.Ping(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":"db error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &http.Server{Addr: ":8000", Handler: r}
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// upsertRubric validates the posted rubric document and stores it under its
// rubric_id with a fresh fingerprint. Invalid documents get a 400 naming the
// offending field.
func (s *Server) upsertRubric(w http.ResponseWriter, r *http.Request) {
	var doc json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	rb, err := rubric.Parse(doc)
	if err != nil {
		var ferr *rubric.FormatError
		if errors.As(err, &ferr) {
			writeJSON(w, 400, errResp{ferr.Error()})
			return
		}
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if rb.RubricID == "" {
		writeJSON(w, 400, errResp{"rubric: rubric_id: must be non-empty"})
		return
	}
	fp := rb.Fingerprint()
	_, err = s.DB.Exec(`insert into rubrics(id, version, fingerprint, doc, updated_at)
		values($1,$2,$3,$4,now())
		on conflict (id) do update set version=$2, fingerprint=$3, doc=$4, updated_at=now()`,
		rb.RubricID, rb.Version, fp, []byte(doc))
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.RubricOut{RubricID: rb.RubricID, Version: rb.Version, Fingerprint: fp})
}

func (s *Server) getRubric(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var row db.RubricRow
	if err := s.DB.Get(&row, `select * from rubrics where id=$1`, id); err != nil {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	writeJSON(w, 200, schemas.RubricOut{
		RubricID:    row.ID,
		Version:     row.Version,
		Fingerprint: row.Fingerprint,
		Doc:         row.Doc,
		UpdatedAt:   row.UpdatedAt,
	})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.RubricID != "" {
		var cnt int
		if err := s.DB.Get(&cnt, `select count(1) from rubrics where id=$1`, req.RubricID); err != nil || cnt == 0 {
			writeJSON(w, 400, errResp{"unknown rubric_id"})
			return
		}
	}
	id := uuid.NewString()
	upload := uuid.NewString()
	_, err := s.DB.Exec(`insert into sessions(id, condition, language, rubric_id, upload_token_hash)
		values($1,$2,$3,$4,$5)`,
		id, req.Condition, req.Language, req.RubricID, auth.HashToken(upload))
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.CreateSessionResponse{SessionID: id, UploadToken: upload})
}

func (s *Server) appendMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	got := r.Header.Get("Authorization")
	if len(got) < 8 || got[:7] != "Bearer " {
		writeJSON(w, 401, errResp{"missing bearer"})
		return
	}
	upload := got[7:]

	var cnt int
	if err := s.DB.Get(&cnt, `select count(1) from sessions where id=$1 and status='open' and upload_token_hash=$2`, id, auth.HashToken(upload)); err != nil || cnt == 0 {
		writeJSON(w, 404, errResp{"session not found or sealed"})
		return
	}
	var req schemas.AppendMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	var maxSeq sql.NullInt64
	_ = s.DB.Get(&maxSeq, `select coalesce(max(seq), -1) from messages where session_id=$1`, id)
	next := maxSeq.Int64 + 1
	for _, msg := range req.Messages {
		_, err := s.DB.Exec(`insert into messages(id, session_id, seq, role, content) values($1,$2,$3,$4,$5)`,
			uuid.NewString(), id, next, msg.Role, msg.Content)
		if err != nil {
			writeJSON(w, 500, errResp{err.Error()})
			return
		}
		next++
	}
	writeJSON(w, 200, schemas.AppendMessagesResponse{Accepted: len(req.Messages), NextSeq: next})
}

// finalize seals the session and archives its raw transcript to object
// storage for audit.
func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var rows []db.MessageRow
	if err := s.DB.Select(&rows, `select * from messages where session_id=$1 order by seq`, id); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	archive := map[string]any{"session_id": id, "messages": rows}
	ref, err := s.S3.PutJSON(r.Context(), storage.PrefixTranscripts, archive)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	if _, err := s.DB.Exec(`update sessions set status='sealed', transcript_ref=$1 where id=$2`, ref, id); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"status": "sealed", "transcript_ref": ref})
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req schemas.EvaluateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	switch req.Evaluator {
	case "", eval.EvaluatorJudge, eval.EvaluatorLegacy:
	default:
		writeJSON(w, 400, errResp{"unknown evaluator"})
		return
	}
	payload, _ := json.Marshal(schemas.EvaluateTaskPayload{SessionID: id, Evaluator: req.Evaluator})
	task := asynq.NewTask("evaluate_trainee", payload)
	if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(0)); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"enqueued": "ok"})
}

// getReport returns the session's evaluation report. The row normally embeds
// it; when only the archive ref survives (row trimmed or backfilled) the
// report is read back from object storage.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var row db.SessionRow
	if err := s.DB.Get(&row, `select * from sessions where id=$1`, id); err != nil {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if len(row.Report) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write(row.Report)
		return
	}
	if !row.ReportRef.Valid {
		writeJSON(w, 404, errResp{"no report for session"})
		return
	}
	var report json.RawMessage
	if err := s.S3.GetJSON(r.Context(), row.ReportRef.String, &report); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, report)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var row db.SessionRow
	if err := s.DB.Get(&row, `select * from sessions where id=$1`, id); err != nil {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	out := schemas.SessionOut{
		SessionID: row.ID,
		CreatedAt: row.CreatedAt,
		Condition: row.Condition,
		Language:  row.Language,
		RubricID:  row.RubricID,
		Status:    row.Status,
	}
	if row.TranscriptRef.Valid {
		out.TranscriptRef = row.TranscriptRef.String
	}
	if len(row.Report) > 0 {
		out.Report = row.Report
	}
	if row.ReportRef.Valid {
		out.ReportRef = row.ReportRef.String
	}
	writeJSON(w, 200, out)
}
