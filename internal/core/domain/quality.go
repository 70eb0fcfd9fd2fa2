package domain

// Grade is the step-function label for an overall quality score.
type Grade string

// Quality grades from best to worst.
const (
	GradeOutstanding  Grade = "Outstanding"
	GradeGood         Grade = "Good"
	GradeAcceptable   Grade = "Acceptable"
	GradeMarginal     Grade = "Marginal"
	GradeUnacceptable Grade = "Unacceptable"
)

// Grade boundaries. A score equal to a boundary takes the higher grade.
const (
	OutstandingThreshold = 90.0
	GoodThreshold        = 75.0
	AcceptableThreshold  = 60.0
	MarginalThreshold    = 40.0
)

// GradeFor maps an overall score to its grade. No rounding is applied:
// 90 is Outstanding while 89.999 is Good.
func GradeFor(score float64) Grade {
	switch {
	case score >= OutstandingThreshold:
		return GradeOutstanding
	case score >= GoodThreshold:
		return GradeGood
	case score >= AcceptableThreshold:
		return GradeAcceptable
	case score >= MarginalThreshold:
		return GradeMarginal
	default:
		return GradeUnacceptable
	}
}

// DimensionScores holds the five independent quality dimensions, each 0-100.
type DimensionScores struct {
	Hallucination float64 `json:"hallucination"`
	VagueLanguage float64 `json:"vague_language"`
	Citations     float64 `json:"citations"`
	Compliance    float64 `json:"compliance"`
	Completeness  float64 `json:"completeness"`
}

// QualityReport is the result of one evaluation pass.
type QualityReport struct {
	OverallScore    float64         `json:"overall_score"`
	Grade           Grade           `json:"grade"`
	DimensionScores DimensionScores `json:"dimension_scores"`
	Issues          []string        `json:"issues"`
	Suggestions     []string        `json:"suggestions"`
}

// QualityWeights are the relative weights of each dimension in the overall
// score. They need not sum to one; Normalised rescales them.
type QualityWeights struct {
	Hallucination float64 `json:"hallucination" toml:"hallucination"`
	VagueLanguage float64 `json:"vague_language" toml:"vague_language"`
	Citations     float64 `json:"citations" toml:"citations"`
	Compliance    float64 `json:"compliance" toml:"compliance"`
	Completeness  float64 `json:"completeness" toml:"completeness"`
}

// DefaultQualityWeights returns the standard dimension weights.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		Hallucination: 0.20,
		VagueLanguage: 0.15,
		Citations:     0.20,
		Compliance:    0.20,
		Completeness:  0.25,
	}
}

// Normalised returns the weights scaled to sum to one. Negative weights are
// treated as zero; all-zero weights fall back to the defaults.
func (w QualityWeights) Normalised() QualityWeights {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}
	w = QualityWeights{
		Hallucination: clamp(w.Hallucination),
		VagueLanguage: clamp(w.VagueLanguage),
		Citations:     clamp(w.Citations),
		Compliance:    clamp(w.Compliance),
		Completeness:  clamp(w.Completeness),
	}
	sum := w.Hallucination + w.VagueLanguage + w.Citations + w.Compliance + w.Completeness
	if sum == 0 {
		return DefaultQualityWeights().Normalised()
	}
	return QualityWeights{
		Hallucination: w.Hallucination / sum,
		VagueLanguage: w.VagueLanguage / sum,
		Citations:     w.Citations / sum,
		Compliance:    w.Compliance / sum,
		Completeness:  w.Completeness / sum,
	}
}

// Overall computes the weighted average of the dimension scores.
func (w QualityWeights) Overall(d DimensionScores) float64 {
	n := w.Normalised()
	return n.Hallucination*d.Hallucination +
		n.VagueLanguage*d.VagueLanguage +
		n.Citations*d.Citations +
		n.Compliance*d.Compliance +
		n.Completeness*d.Completeness
}

// EvaluationInput is the metadata a draft is evaluated against.
type EvaluationInput struct {
	// DocumentType is the catalogue type of the draft.
	DocumentType string

	// ProgramName and Description are the request context the draft was
	// generated for. They count as supported and are not claims to cite.
	ProgramName string
	Description string

	// Facts is the fact set used to generate the draft.
	Facts FactSet

	// SourceText is the retrieved context, joined.
	SourceText string

	// RequiredSections are headings the document must contain.
	RequiredSections []string

	// RequiredClauses are regulatory references the document must cite.
	RequiredClauses []string

	// MinWords is the minimum word count for a complete document.
	MinWords int
}

// RefinementIteration is one append-only entry in a document's refinement
// history.
type RefinementIteration struct {
	Iteration   int     `json:"iteration"`
	ScoreBefore float64 `json:"score_before"`
	ScoreAfter  float64 `json:"score_after"`
	Applied     bool    `json:"applied"`
}
