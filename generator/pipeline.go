package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ebook_generator/logging"
	"ebook_generator/metrics"
)

// StageTimeout bounds every provider call.
const StageTimeout = 5 * time.Minute

// openAIAnalysisSummary replaces the analysis stage on the chat-completion path.
const openAIAnalysisSummary = "Direct synthesis performed by the OpenAI model."

// FailureKind separates provider errors from answers without text.
type FailureKind string

const (
	FailureInput FailureKind = "input"
	FailureCall  FailureKind = "call"
	FailureEmpty FailureKind = "empty"
)

// StageError reports the stage at which a run halted.
type StageError struct {
	Stage    Stage
	Provider ProviderKind
	Kind     FailureKind
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Provider, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Message is the user-facing description of the failure.
func (e *StageError) Message() string {
	var what string
	switch e.Stage {
	case StageAnalysis:
		what = "analyze the content before generation"
	case StageDraft:
		what = "generate the ebook draft"
	case StageEdit:
		what = "edit the ebook draft"
	default:
		what = "start the generation"
	}
	if e.Kind == FailureEmpty {
		return fmt.Sprintf("Failed to %s (%s): the model returned no text.", what, e.Provider)
	}
	return fmt.Sprintf("Failed to %s (%s): %v", what, e.Provider, e.Err)
}

// Pipeline runs analysis, draft and edit through one LLMClient.
type Pipeline struct {
	llm     LLMClient
	timeout time.Duration
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithStageTimeout overrides StageTimeout.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPipeline(llm LLMClient, opts ...Option) (*Pipeline, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	p := &Pipeline{llm: llm, timeout: StageTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes the three stages in order. Any failure halts the run with a *StageError.
// Calls are not aborted when ctx is cancelled; each runs until it returns or times out.
func (p *Pipeline) Run(ctx context.Context, in Input, models Models) (Result, error) {
	kind := p.llm.Kind()
	if strings.TrimSpace(in.Text) == "" {
		return Result{}, &StageError{Stage: StageInit, Provider: kind, Kind: FailureInput, Err: errors.New("text content is required")}
	}
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx).With("provider", string(kind))

	var res Result

	if kind == ProviderOpenAI {
		res.Analysis = openAIAnalysisSummary
		res.Stages = append(res.Stages, StageReport{Stage: StageAnalysis, Provider: kind, Skipped: true})
		metrics.ObserveStage(string(kind), string(StageAnalysis), "skipped", 0)
		logger.Info("ebook step", "stage", StageAnalysis, "skipped", true)
	} else {
		summary, report, err := p.call(ctx, BuildAnalysisPrompt(in), models.Analysis)
		if err != nil {
			return Result{}, err
		}
		res.Analysis = summary
		res.Stages = append(res.Stages, report)
	}

	draft, report, err := p.call(ctx, BuildDraftPrompt(in, res.Analysis), models.Draft)
	if err != nil {
		return Result{}, err
	}
	res.Draft = draft
	res.Stages = append(res.Stages, report)

	final, report, err := p.call(ctx, BuildEditPrompt(in, draft), models.Edit)
	if err != nil {
		return Result{}, err
	}
	res.Stages = append(res.Stages, report)
	res.Manuscript = NewManuscript(final)
	return res, nil
}

func (p *Pipeline) call(ctx context.Context, prompt Prompt, model string) (string, StageReport, error) {
	kind := p.llm.Kind()
	logger := logging.FromContext(ctx).With("provider", string(kind), "stage", string(prompt.Stage))
	report := StageReport{Stage: prompt.Stage, Provider: kind, Model: model}

	logger.Info("ebook step", "model", model)
	start := time.Now()
	raw, err := p.complete(ctx, prompt, model)
	report.Duration = time.Since(start)
	if err != nil {
		metrics.ObserveStage(string(kind), string(prompt.Stage), "call_error", report.Duration)
		logger.Error("ebook step failed", "error", err, "duration", report.Duration)
		return "", report, &StageError{Stage: prompt.Stage, Provider: kind, Kind: FailureCall, Err: err}
	}

	text, err := PostProcess(raw)
	if err != nil {
		metrics.ObserveStage(string(kind), string(prompt.Stage), "empty", report.Duration)
		logger.Warn("ebook step returned no text", "duration", report.Duration)
		return "", report, &StageError{Stage: prompt.Stage, Provider: kind, Kind: FailureEmpty, Err: err}
	}

	report.Chars = len(text)
	metrics.ObserveStage(string(kind), string(prompt.Stage), "ok", report.Duration)
	logger.Info("ebook step done", "chars", report.Chars, "duration", report.Duration)
	return text, report, nil
}

// complete bounds the call by the stage timeout and turns a panicking client into an error.
func (p *Pipeline) complete(ctx context.Context, prompt Prompt, model string) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	text, err = p.llm.Complete(ctx, prompt, model)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return text, err
}
