package services

import (
	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
)

// Ensure QualityService implements the interface.
var _ driving.QualityService = (*QualityService)(nil)

// dimensionResult is one scorer's output.
type dimensionResult struct {
	score       float64
	issues      []string
	suggestions []string
}

// QualityService scores document drafts along five independent dimensions.
// Evaluate is a pure function of its inputs: it holds no state beyond the
// configured weights and performs no I/O.
type QualityService struct {
	weights domain.QualityWeights
}

// NewQualityService creates a quality service with the given dimension weights.
func NewQualityService(weights domain.QualityWeights) *QualityService {
	return &QualityService{weights: weights.Normalised()}
}

// Weights returns the normalised dimension weights.
func (s *QualityService) Weights() domain.QualityWeights {
	return s.weights
}

// Evaluate scores text against its metadata. Scorers never fail: an empty
// document scores zero on completeness and is still scored on the other
// dimensions.
func (s *QualityService) Evaluate(text string, input domain.EvaluationInput) domain.QualityReport {
	doc := newDraft(text)

	hallucination := scoreHallucination(doc, input)
	vague := scoreVagueLanguage(doc)
	citations := scoreCitations(doc, input)
	compliance := scoreCompliance(doc, input)
	completeness := scoreCompleteness(doc, input)

	dims := domain.DimensionScores{
		Hallucination: hallucination.score,
		VagueLanguage: vague.score,
		Citations:     citations.score,
		Compliance:    compliance.score,
		Completeness:  completeness.score,
	}
	overall := s.weights.Overall(dims)

	report := domain.QualityReport{
		OverallScore:    overall,
		Grade:           domain.GradeFor(overall),
		DimensionScores: dims,
		Issues:          []string{},
		Suggestions:     []string{},
	}
	for _, r := range []dimensionResult{hallucination, vague, citations, compliance, completeness} {
		report.Issues = append(report.Issues, r.issues...)
		report.Suggestions = append(report.Suggestions, r.suggestions...)
	}
	return report
}
