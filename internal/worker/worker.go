package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/db"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/eval"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/judge"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/schemas"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/storage"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

type Server struct {
	DB    *sqlx.DB
	S3    *storage.Client
	Judge *judge.Client
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc("evaluate_trainee", s.handleEvaluate)
	return mux
}

// handleEvaluate runs one evaluation: load the session's transcript and
// rubric, run the selected evaluator, archive the report to S3 and store it
// on the session row. Evaluator failures are persisted on the session instead
// of bubbling up, so asynq does not spin on a broken judge call.
func (s *Server) handleEvaluate(ctx context.Context, t *asynq.Task) error {
	var payload schemas.EvaluateTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("bad task payload: %w", err)
	}
	id := payload.SessionID
	log.Printf("starting evaluation for session %s (evaluator=%s)", id, payload.Evaluator)

	var sess db.SessionRow
	if err := s.DB.GetContext(ctx, &sess, `select * from sessions where id=$1`, id); err != nil {
		return err
	}

	var rubricRow db.RubricRow
	if err := s.DB.GetContext(ctx, &rubricRow, `select * from rubrics where id=$1`, sess.RubricID); err != nil {
		return s.persistFailure(ctx, id, fmt.Errorf("load rubric %q: %w", sess.RubricID, err))
	}
	rb, err := rubric.Parse(rubricRow.Doc)
	if err != nil {
		return s.persistFailure(ctx, id, err)
	}

	var msgs []db.MessageRow
	if err := s.DB.SelectContext(ctx, &msgs, `select * from messages where session_id=$1 order by seq`, id); err != nil {
		return err
	}
	conversation := make([]transcript.Message, 0, len(msgs))
	for _, m := range msgs {
		conversation = append(conversation, transcript.Message{Role: m.Role, Content: m.Content})
	}
	turns := transcript.NumberedTurns(conversation)
	log.Printf("session %s: %d messages, %d scorable turns", id, len(msgs), len(turns))

	ev, err := eval.New(payload.Evaluator, s.Judge)
	if err != nil {
		return s.persistFailure(ctx, id, err)
	}
	result, err := ev.Evaluate(ctx, turns, rb, sess.Language, sess.Condition)
	if err != nil {
		log.Printf("evaluator error for session %s: %v", id, err)
		return s.persistFailure(ctx, id, err)
	}

	reportJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	ref, err := s.S3.PutJSON(ctx, storage.PrefixReports, result)
	if err != nil {
		return s.persistFailure(ctx, id, fmt.Errorf("archive report: %w", err))
	}

	err = db.WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`update sessions set report=$1, report_ref=$2, status='evaluated' where id=$3`,
			reportJSON, ref, id)
		return err
	})
	if err != nil {
		return err
	}
	log.Printf("session %s evaluated: pass=%t percent=%.3f", id, result.Scored.Pass, result.Scored.Percent)
	return nil
}

// persistFailure records the evaluation error on the session and tells asynq
// the task is done.
func (s *Server) persistFailure(ctx context.Context, id string, cause error) error {
	detail, _ := json.Marshal(map[string]string{"error": cause.Error()})
	_, err := s.DB.ExecContext(ctx, `update sessions set report=$1 where id=$2`, detail, id)
	if err != nil {
		log.Printf("failed to persist evaluation error for session %s: %v", id, err)
	}
	return nil
}

func Run(addr string, dbx *sqlx.DB, s3c *storage.Client, judgeClient *judge.Client) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: addr}, asynq.Config{Concurrency: 5})
	w := &Server{DB: dbx, S3: s3c, Judge: judgeClient}
	return srv.Run(w.mux())
}
