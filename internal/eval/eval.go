// Package eval selects between the interchangeable trainee evaluators: the
// judge-backed pipeline and the legacy pattern baseline. Selection happens by
// name at the orchestration boundary, never by runtime type inspection.
package eval

import (
	"context"
	"fmt"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/judge"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/score"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

const (
	EvaluatorJudge  = "judge"
	EvaluatorLegacy = "legacy"
)

// Result bundles the deterministic report with the raw judge artifacts, when
// a judge was involved, for audit storage.
type Result struct {
	Scored     *score.Report `json:"scored"`
	JudgeGrade *judge.Output `json:"judge_grade,omitempty"`
	JudgeMeta  *judge.Meta   `json:"judge_meta,omitempty"`
}

// Evaluator grades one conversation against a rubric.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, turns []transcript.Turn, r *rubric.Rubric, language, condition string) (*Result, error)
}

// JudgeEvaluator runs the full pipeline: judge call, reconciliation,
// deterministic scoring.
type JudgeEvaluator struct {
	Client *judge.Client
}

func (e *JudgeEvaluator) Name() string { return EvaluatorJudge }

func (e *JudgeEvaluator) Evaluate(ctx context.Context, turns []transcript.Turn, r *rubric.Rubric, language, condition string) (*Result, error) {
	grade, meta, err := e.Client.Judge(ctx, r, turns, language, condition)
	if err != nil {
		return nil, fmt.Errorf("judge call: %w", err)
	}
	scored, err := score.FromJudgeOutput(turns, r, language, grade)
	if err != nil {
		return nil, err
	}
	scored.Condition = condition
	scored.Language = language
	return &Result{Scored: scored, JudgeGrade: grade, JudgeMeta: meta}, nil
}

// LegacyEvaluator is the self-contained regex baseline; it never calls a
// model.
type LegacyEvaluator struct{}

func (e *LegacyEvaluator) Name() string { return EvaluatorLegacy }

func (e *LegacyEvaluator) Evaluate(_ context.Context, turns []transcript.Turn, r *rubric.Rubric, language, condition string) (*Result, error) {
	scored, err := score.FromPatterns(turns, r, language, condition)
	if err != nil {
		return nil, err
	}
	return &Result{Scored: scored}, nil
}

// New resolves an evaluator by name. The judge client may be nil for the
// legacy evaluator.
func New(name string, client *judge.Client) (Evaluator, error) {
	switch name {
	case EvaluatorJudge, "":
		if client == nil {
			return nil, fmt.Errorf("judge evaluator requires a judge client")
		}
		return &JudgeEvaluator{Client: client}, nil
	case EvaluatorLegacy:
		return &LegacyEvaluator{}, nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", name)
	}
}
