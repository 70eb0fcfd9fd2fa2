package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// Ensure LLMReviser can use custom prompts.
var _ driven.PromptStoreAware = (*LLMReviser)(nil)

// Ensure LLMReviser can serve the orchestrator.
var _ DocumentReviser = (*LLMReviser)(nil)

// ReviseFunc produces a revised draft from the current text and its
// quality findings.
type ReviseFunc func(ctx context.Context, text string, report domain.QualityReport) (string, error)

// DocumentReviser supplies a ReviseFunc per document title.
type DocumentReviser interface {
	For(title string) ReviseFunc
}

// RefineOptions bounds one refinement loop.
type RefineOptions struct {
	// MaxIterations is the number of revision passes allowed. It is clamped
	// to domain.MaxIterationsCap; zero disables refinement.
	MaxIterations int

	// Threshold is the overall score at which a draft is accepted.
	// Zero means domain.DefaultAcceptThreshold.
	Threshold float64

	// Timeout bounds each revision call. Zero means no extra bound.
	Timeout time.Duration
}

// RefinementResult is the outcome of a refinement loop.
type RefinementResult struct {
	// Text is the best-scoring draft seen.
	Text string

	// Report is the evaluation of Text.
	Report domain.QualityReport

	// Iterations is the append-only history of revision passes.
	Iterations []domain.RefinementIteration

	// Reports holds every evaluation in order, the initial one first.
	Reports []domain.QualityReport

	Outcome domain.RefinementOutcome
}

// RefinementService drives a bounded revise-and-rescore loop.
type RefinementService struct {
	quality driving.QualityService
}

// NewRefinementService creates a refinement service scoring with quality.
func NewRefinementService(quality driving.QualityService) *RefinementService {
	return &RefinementService{quality: quality}
}

// Refine scores initialText and, while it is below the threshold, asks
// revise for a new draft. A revision is applied only when it scores higher,
// so the result never regresses. The loop stops on acceptance, on the first
// pass that is not applied, on the iteration cap or on a revise error. A nil
// revise or zero MaxIterations returns the initial text with an empty
// history.
func (s *RefinementService) Refine(
	ctx context.Context,
	revise ReviseFunc,
	initialText string,
	input domain.EvaluationInput,
	opts RefineOptions,
) RefinementResult {
	opts = normaliseRefineOptions(opts)

	best := initialText
	bestReport := s.quality.Evaluate(initialText, input)
	result := RefinementResult{
		Iterations: []domain.RefinementIteration{},
		Reports:    []domain.QualityReport{bestReport},
	}

	finish := func(outcome domain.RefinementOutcome) RefinementResult {
		result.Text = best
		result.Report = bestReport
		result.Outcome = outcome
		return result
	}

	if bestReport.OverallScore >= opts.Threshold {
		return finish(domain.OutcomeAccepted)
	}
	if revise == nil || opts.MaxIterations == 0 {
		return finish(domain.OutcomeSkipped)
	}

	for i := 1; i <= opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("Refinement: %s cancelled before pass %d: %v", input.DocumentType, i, err)
			return finish(domain.OutcomeFailed)
		}

		revised, err := s.revise(ctx, revise, best, bestReport, opts.Timeout)
		if err != nil {
			logger.Warn("Refinement: %s pass %d failed: %v", input.DocumentType, i, err)
			result.Iterations = append(result.Iterations, domain.RefinementIteration{
				Iteration:   i,
				ScoreBefore: bestReport.OverallScore,
				ScoreAfter:  bestReport.OverallScore,
				Applied:     false,
			})
			return finish(domain.OutcomeFailed)
		}

		report := s.quality.Evaluate(revised, input)
		result.Reports = append(result.Reports, report)
		applied := report.OverallScore > bestReport.OverallScore
		result.Iterations = append(result.Iterations, domain.RefinementIteration{
			Iteration:   i,
			ScoreBefore: bestReport.OverallScore,
			ScoreAfter:  report.OverallScore,
			Applied:     applied,
		})
		logger.Debug("Refinement: %s pass %d %.1f -> %.1f (applied=%t)",
			input.DocumentType, i, bestReport.OverallScore, report.OverallScore, applied)

		if !applied {
			logger.Info("Refinement: %s stalled at pass %d (best %.1f)",
				input.DocumentType, i, bestReport.OverallScore)
			bestReport.Issues = append(append([]string{}, bestReport.Issues...),
				fmt.Sprintf("Refinement stopped at pass %d: the revision scored %.1f, not above %.1f",
					i, report.OverallScore, bestReport.OverallScore))
			return finish(domain.OutcomeStalled)
		}
		best, bestReport = revised, report
		if bestReport.OverallScore >= opts.Threshold {
			return finish(domain.OutcomeAccepted)
		}
	}

	logger.Info("Refinement: %s %v after %d passes (best %.1f)",
		input.DocumentType, domain.ErrRefinementExhausted, opts.MaxIterations, bestReport.OverallScore)
	bestReport.Issues = append(append([]string{}, bestReport.Issues...),
		fmt.Sprintf("Refinement stopped after %d passes with score %.1f, below the %.1f threshold",
			opts.MaxIterations, bestReport.OverallScore, opts.Threshold))
	return finish(domain.OutcomeExhausted)
}

func (s *RefinementService) revise(
	ctx context.Context,
	revise ReviseFunc,
	text string,
	report domain.QualityReport,
	timeout time.Duration,
) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return revise(ctx, text, report)
}

func normaliseRefineOptions(opts RefineOptions) RefineOptions {
	if opts.MaxIterations < 0 {
		opts.MaxIterations = 0
	}
	if opts.MaxIterations > domain.MaxIterationsCap {
		opts.MaxIterations = domain.MaxIterationsCap
	}
	if opts.Threshold <= 0 {
		opts.Threshold = domain.DefaultAcceptThreshold
	}
	return opts
}

// defaultDocumentRevisionPrompt is used when no prompt store is configured.
// Placeholders: title, findings, draft.
const defaultDocumentRevisionPrompt = `You are revising the %s for a government acquisition package.
Address every finding below. Keep the Markdown headings, keep citations such as [1],
and do not introduce figures, dates or names that are not already in the draft.
Return only the revised document.

Findings:
%s

Draft:
%s`

// LLMReviser revises drafts with an LLM.
type LLMReviser struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewLLMReviser creates a reviser backed by llm.
func NewLLMReviser(llm driven.LLMService) *LLMReviser {
	return &LLMReviser{llm: llm}
}

// SetPromptStore sets the prompt store for the revision prompt.
func (r *LLMReviser) SetPromptStore(store driven.PromptStore) {
	r.prompts = store
}

// For returns a ReviseFunc for documents titled title.
func (r *LLMReviser) For(title string) ReviseFunc {
	return func(ctx context.Context, text string, report domain.QualityReport) (string, error) {
		prompt := fmt.Sprintf(r.prompt(), title, findings(report), text)
		response, err := r.llm.Generate(ctx, prompt, driven.GenerateOptions{Temperature: 0.2})
		if err != nil {
			return "", fmt.Errorf("revise %s: %w", title, err)
		}
		revised := strings.TrimSpace(stripCodeBlock(response))
		if revised == "" {
			return "", errors.New("revise " + title + ": empty response")
		}
		return revised, nil
	}
}

func (r *LLMReviser) prompt() string {
	if r.prompts != nil {
		if p, err := r.prompts.Load(driven.PromptDocumentRevision); err == nil && p != "" {
			return p
		}
	}
	return defaultDocumentRevisionPrompt
}

// findings renders a report's issues and suggestions as a bullet list.
func findings(report domain.QualityReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall score %.1f (%s).\n", report.OverallScore, report.Grade)
	for _, issue := range report.Issues {
		b.WriteString("- Issue: ")
		b.WriteString(issue)
		b.WriteString("\n")
	}
	for _, s := range report.Suggestions {
		b.WriteString("- Suggestion: ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}
