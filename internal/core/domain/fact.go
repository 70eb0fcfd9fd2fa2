package domain

import (
	"strings"
	"unicode"
)

// Chunk is a retrieved fragment of source text. Chunks are produced by a
// retriever and only read by extraction.
type Chunk struct {
	// Text is the chunk content.
	Text string `json:"text"`

	// SourceID identifies the document the chunk came from.
	SourceID string `json:"source_id"`

	// SimilarityScore is the retriever's relevance score for the query.
	SimilarityScore float64 `json:"similarity_score"`
}

// FactKind classifies an extracted fact.
type FactKind string

// Known fact kinds.
const (
	FactKindRequirement FactKind = "requirement"
	FactKindCost        FactKind = "cost"
	FactKindDate        FactKind = "date"
	FactKindEntity      FactKind = "entity"
	FactKindMetric      FactKind = "metric"
)

// AllFactKinds returns every fact kind in canonical order.
func AllFactKinds() []FactKind {
	return []FactKind{
		FactKindRequirement,
		FactKindCost,
		FactKindDate,
		FactKindEntity,
		FactKindMetric,
	}
}

// IsValid returns true if the kind is recognised.
func (k FactKind) IsValid() bool {
	switch k {
	case FactKindRequirement, FactKindCost, FactKindDate, FactKindEntity, FactKindMetric:
		return true
	default:
		return false
	}
}

func (k FactKind) String() string {
	return string(k)
}

// ExtractionStage records which extraction stage produced a fact.
type ExtractionStage string

// Extraction stages in precedence order.
const (
	StagePattern    ExtractionStage = "pattern"
	StageMetadata   ExtractionStage = "metadata"
	StageStructured ExtractionStage = "structured"
	StageFallback   ExtractionStage = "fallback"
)

// Precedence returns the stage's rank. Lower ranks win when two stages
// produce the same logical fact.
func (s ExtractionStage) Precedence() int {
	switch s {
	case StagePattern:
		return 0
	case StageMetadata:
		return 1
	case StageStructured:
		return 2
	default:
		return 3
	}
}

func (s ExtractionStage) String() string {
	return string(s)
}

// Priority is the normative weight of a requirement.
type Priority string

// Requirement priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid returns true if the priority is recognised. The empty priority is
// valid and means "not applicable".
func (p Priority) IsValid() bool {
	switch p {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// ExtractedFact is a typed datum pulled from retrieved chunks.
// Facts are never mutated after creation.
type ExtractedFact struct {
	ID           string          `json:"id"`
	Kind         FactKind        `json:"kind"`
	Key          string          `json:"key,omitempty"`
	Text         string          `json:"text"`
	Priority     Priority        `json:"priority,omitempty"`
	NumericValue *float64        `json:"numeric_value,omitempty"`
	Unit         string          `json:"unit,omitempty"`
	Confidence   float64         `json:"confidence"`
	Stage        ExtractionStage `json:"extraction_stage"`
	SourceID     string          `json:"source_id,omitempty"`
}

// IsFallback returns true for placeholder facts.
func (f ExtractedFact) IsFallback() bool {
	return f.Stage == StageFallback
}

// NormalizedText returns the fact text lowercased, whitespace collapsed and
// trailing punctuation removed. Two facts with the same kind and normalised
// text are the same logical fact.
func (f ExtractedFact) NormalizedText() string {
	return NormalizeText(f.Text)
}

// LogicalKey identifies the fact across documents. Facts carrying an
// explicit key (a metadata field or requirement ID) use it; others use
// their normalised text.
func (f ExtractedFact) LogicalKey() string {
	if f.Key != "" {
		return string(f.Kind) + "|" + strings.ToLower(f.Key)
	}
	return string(f.Kind) + "|" + f.NormalizedText()
}

// NormalizeText lowercases s, collapses runs of whitespace and strips
// trailing punctuation.
func NormalizeText(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != ')' && r != '%'
	})
}

// FactSet is an ordered collection of facts grouped by kind.
type FactSet struct {
	Facts []ExtractedFact `json:"facts"`
}

// NewFactSet builds a set ordered by canonical kind order, preserving the
// relative order of facts within a kind.
func NewFactSet(facts []ExtractedFact) FactSet {
	ordered := make([]ExtractedFact, 0, len(facts))
	seen := make(map[FactKind]bool)
	for _, kind := range AllFactKinds() {
		seen[kind] = true
		for _, f := range facts {
			if f.Kind == kind {
				ordered = append(ordered, f)
			}
		}
	}
	for _, f := range facts {
		if !seen[f.Kind] {
			ordered = append(ordered, f)
		}
	}
	return FactSet{Facts: ordered}
}

// Len returns the number of facts.
func (s FactSet) Len() int {
	return len(s.Facts)
}

// ByKind returns the facts of a single kind in set order.
func (s FactSet) ByKind(kind FactKind) []ExtractedFact {
	var out []ExtractedFact
	for _, f := range s.Facts {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Counts returns the number of facts per kind.
func (s FactSet) Counts() map[FactKind]int {
	counts := make(map[FactKind]int)
	for _, f := range s.Facts {
		counts[f.Kind]++
	}
	return counts
}

// Complete is true iff no fact in the set is a fallback placeholder.
func (s FactSet) Complete() bool {
	for _, f := range s.Facts {
		if f.IsFallback() {
			return false
		}
	}
	return true
}

// DegradedKinds returns the kinds that contain fallback placeholders.
func (s FactSet) DegradedKinds() []FactKind {
	var kinds []FactKind
	seen := make(map[FactKind]bool)
	for _, f := range s.Facts {
		if f.IsFallback() && !seen[f.Kind] {
			seen[f.Kind] = true
			kinds = append(kinds, f.Kind)
		}
	}
	return kinds
}

// HasReal returns true if the set holds at least one non-fallback fact of kind.
func (s FactSet) HasReal(kind FactKind) bool {
	for _, f := range s.Facts {
		if f.Kind == kind && !f.IsFallback() {
			return true
		}
	}
	return false
}

// FactSummary is the aggregate view of a fact set that persists downstream.
type FactSummary struct {
	Counts   map[FactKind]int `json:"counts"`
	Complete bool             `json:"complete"`
	Degraded []FactKind       `json:"degraded,omitempty"`
}

// Summary returns the aggregate counts and completeness of the set.
func (s FactSet) Summary() FactSummary {
	return FactSummary{
		Counts:   s.Counts(),
		Complete: s.Complete(),
		Degraded: s.DegradedKinds(),
	}
}

// SourceDocument is a normalised source file split into chunks for
// indexing.
type SourceDocument struct {
	// SourceID is the slash-separated path relative to the corpus root.
	SourceID string

	Chunks []string
}

// IndexSummary reports the outcome of indexing a corpus.
type IndexSummary struct {
	Sources int      `json:"sources"`
	Chunks  int      `json:"chunks"`
	Failed  []string `json:"failed,omitempty"`
}
