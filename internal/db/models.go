package db

import (
	"database/sql"
	"time"
)

// RubricRow is a stored examiner rubric document. Doc is the full JSON as
// uploaded; the fingerprint is recomputed on every upsert.
type RubricRow struct {
	ID          string    `db:"id"`
	Version     string    `db:"version"`
	Fingerprint string    `db:"fingerprint"`
	Doc         []byte    `db:"doc"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// SessionRow is one simulated-patient interview session. Report holds the
// latest evaluation result JSON; re-evaluating replaces it wholesale.
type SessionRow struct {
	ID              string         `db:"id"`
	CreatedAt       time.Time      `db:"created_at"`
	Condition       string         `db:"condition"`
	Language        string         `db:"language"`
	RubricID        string         `db:"rubric_id"`
	Status          string         `db:"status"`
	UploadTokenHash string         `db:"upload_token_hash"`
	TranscriptRef   sql.NullString `db:"transcript_ref"`
	Report          []byte         `db:"report"`
	ReportRef       sql.NullString `db:"report_ref"`
}

// MessageRow is one conversation message in arrival order.
type MessageRow struct {
	ID        string    `db:"id"`
	SessionID string    `db:"session_id"`
	Seq       int64     `db:"seq"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
