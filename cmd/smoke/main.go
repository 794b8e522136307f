package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type createSessionResp struct {
	SessionID   string `json:"session_id"`
	UploadToken string `json:"upload_token"`
}

type appendResp struct {
	Accepted int   `json:"accepted"`
	NextSeq  int64 `json:"next_seq"`
}

type sessionResp struct {
	SessionID string          `json:"session_id"`
	Status    string          `json:"status"`
	Report    json.RawMessage `json:"report,omitempty"`
	ReportRef string          `json:"report_ref,omitempty"`
}

// demoRubric is a small psychiatry-intake rubric exercising weights, a gated
// safety-critical item and both scoring paths' pattern needs.
const demoRubric = `{
  "rubric_id": "psychiatry_intake",
  "version": "v1",
  "items": [
    {"id": "intro_agenda", "desc": "Introduces self and sets agenda", "weight": 1,
     "patterns_en": ["\\b(i'?m dr|my name is|what brings you)\\b"]},
    {"id": "empathy_validation", "desc": "Validates the patient's distress", "weight": 2,
     "patterns_en": ["\\b(sorry to hear|that sounds (hard|difficult)|i understand)\\b"]},
    {"id": "risk_screen", "desc": "Screens for suicidality/self-harm", "weight": 2, "safety_critical": true,
     "patterns_en": ["\\b(harm(ing)? yourself|hurt(ing)? yourself|suicid|end(ing)? your life)\\b"]},
    {"id": "risk_depth", "desc": "Assesses plan, intent, means and access", "weight": 3,
     "gate": "patient_risk_positive", "safety_critical": true,
     "patterns_en": ["\\b(plan|intent|means|access)\\b"]},
    {"id": "summary_next_steps", "desc": "Summarizes and agrees next steps", "weight": 2,
     "patterns_en": ["\\b(to summarize|next steps?|we'?ll plan)\\b"]}
  ],
  "pass_criteria": {"min_percent": 0.7, "fail_on_flags": ["SAFETY_CRITICAL"]},
  "globals": {"communication_max": 5, "judgment_max": 5}
}`

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	token := envOr("API_TOKEN", "dev-secret-token")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	tokenFlag := flag.String("token", token, "API token for admin endpoints")
	evaluator := flag.String("evaluator", "legacy", "Evaluator to run (judge|legacy); judge needs JUDGE_API_URL")
	waitEval := flag.Duration("wait-eval", 30*time.Second, "How long to poll for the report after enqueue")
	flag.Parse()

	httpc := &http.Client{Timeout: 12 * time.Second}

	// 1) Upsert the demo rubric
	var rubricOut map[string]any
	if err := postRawJSON(httpc, *baseFlag+"/rubrics", *tokenFlag, []byte(demoRubric), &rubricOut); err != nil {
		fatalf("upsert rubric: %v", err)
	}
	fmt.Printf("✅ Upserted rubric: %v fingerprint=%v\n", rubricOut["rubric_id"], rubricOut["fingerprint"])

	// 2) Create session
	createBody := map[string]any{
		"condition": "depression",
		"language":  "English",
		"rubric_id": "psychiatry_intake",
	}
	var created createSessionResp
	if err := postJSON(httpc, *baseFlag+"/sessions", *tokenFlag, createBody, &created); err != nil {
		fatalf("create session: %v", err)
	}
	fmt.Printf("✅ Created session: id=%s upload_token=%s\n", created.SessionID, created.UploadToken)

	// 3) Append an intake dialogue with a patient risk cue (with upload token)
	messages := []map[string]any{
		{"role": "user", "content": "Hello, I'm Dr. Mike. What brings you here today?"},
		{"role": "assistant", "content": "I've been feeling low for months and I can't sleep."},
		{"role": "user", "content": "I'm sorry to hear that. Have you had thoughts of harming yourself?"},
		{"role": "assistant", "content": "Sometimes I think about ending my life."},
		{"role": "user", "content": "Thank you for telling me. Do you have a plan, or access to means?"},
		{"role": "assistant", "content": "No plan. I just feel hopeless."},
		{"role": "user", "content": "To summarize, we'll plan a safety check-in and follow up next week."},
	}
	var appended appendResp
	if err := postJSONWithUpload(httpc, fmt.Sprintf("%s/sessions/%s/messages", *baseFlag, created.SessionID), created.UploadToken, map[string]any{"messages": messages}, &appended); err != nil {
		fatalf("append messages: %v", err)
	}
	fmt.Printf("✅ Appended messages: accepted=%d next_seq=%d\n", appended.Accepted, appended.NextSeq)

	// 4) Finalize
	if err := postJSON(httpc, fmt.Sprintf("%s/sessions/%s/finalize", *baseFlag, created.SessionID), *tokenFlag, nil, &map[string]any{}); err != nil {
		fatalf("finalize: %v", err)
	}
	fmt.Println("✅ Finalized session")

	// 5) Enqueue evaluation
	if err := postJSON(httpc, fmt.Sprintf("%s/sessions/%s/evaluate", *baseFlag, created.SessionID), *tokenFlag, map[string]any{"evaluator": *evaluator}, &map[string]any{}); err != nil {
		fatalf("enqueue evaluation: %v", err)
	}
	fmt.Printf("✅ Enqueued %s evaluation\n", *evaluator)

	// 6) Poll for the report
	deadline := time.Now().Add(*waitEval)
	var sess sessionResp
	for {
		if err := getJSON(httpc, fmt.Sprintf("%s/sessions/%s", *baseFlag, created.SessionID), *tokenFlag, &sess); err != nil {
			fatalf("get session: %v", err)
		}
		if len(sess.Report) > 0 {
			fmt.Printf("✅ Report present (status=%s, ref=%s):\n%s\n", sess.Status, sess.ReportRef, indentJSON(sess.Report))
			break
		}
		if time.Now().After(deadline) {
			fmt.Printf("ℹ️  Report not present yet. Current session status: %s\n", sess.Status)
			break
		}
		time.Sleep(2 * time.Second)
	}

	fmt.Printf("🎉 Smoke run OK. SessionID=%s\n", created.SessionID)
}

// --- helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func postJSON(c *http.Client, url, bearer string, body any, out any) error {
	var b []byte
	if body != nil {
		var err error
		b, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	return postRawJSON(c, url, bearer, b, out)
}

func postRawJSON(c *http.Client, url, bearer string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("POST %s -> %d: %s", url, res.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func postJSONWithUpload(c *http.Client, url, uploadToken string, body any, out any) error {
	if uploadToken == "" {
		return errors.New("upload token required")
	}
	return postJSON(c, url, uploadToken, body, out)
}

func getJSON(c *http.Client, url, bearer string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
