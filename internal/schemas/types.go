package schemas

import (
	"encoding/json"
	"time"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

type RubricOut struct {
	RubricID    string          `json:"rubric_id"`
	Version     string          `json:"version"`
	Fingerprint string          `json:"fingerprint"`
	Doc         json.RawMessage `json:"doc,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

type CreateSessionRequest struct {
	Condition string `json:"condition"`
	Language  string `json:"language"`
	RubricID  string `json:"rubric_id"`
}

type CreateSessionResponse struct {
	SessionID   string `json:"session_id"`
	UploadToken string `json:"upload_token"`
}

type AppendMessagesRequest struct {
	Messages []transcript.Message `json:"messages"`
}

type AppendMessagesResponse struct {
	Accepted int   `json:"accepted"`
	NextSeq  int64 `json:"next_seq"`
}

type EvaluateRequest struct {
	Evaluator string `json:"evaluator,omitempty"`
}

// EvaluateTaskPayload is the asynq task body for one evaluation run.
type EvaluateTaskPayload struct {
	SessionID string `json:"session_id"`
	Evaluator string `json:"evaluator,omitempty"`
}

type SessionOut struct {
	SessionID     string          `json:"session_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Condition     string          `json:"condition"`
	Language      string          `json:"language"`
	RubricID      string          `json:"rubric_id"`
	Status        string          `json:"status"`
	TranscriptRef string          `json:"transcript_ref,omitempty"`
	Report        json.RawMessage `json:"report,omitempty"`
	ReportRef     string          `json:"report_ref,omitempty"`
}
