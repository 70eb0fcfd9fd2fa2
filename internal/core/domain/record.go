package domain

import (
	"sort"
	"time"
)

// DocumentID uniquely identifies a committed document record.
type DocumentID string

func (id DocumentID) String() string {
	return string(id)
}

// RefinementOutcome describes how a document's refinement loop ended.
type RefinementOutcome string

// Refinement outcomes.
const (
	// OutcomeSkipped means the draft was not refined (already above
	// threshold or no reviser configured).
	OutcomeSkipped RefinementOutcome = "skipped"

	// OutcomeAccepted means the loop reached the score threshold.
	OutcomeAccepted RefinementOutcome = "accepted"

	// OutcomeExhausted means the loop hit its iteration cap.
	OutcomeExhausted RefinementOutcome = "exhausted"

	// OutcomeStalled means a revision did not improve the score, so the
	// loop stopped with the best earlier draft.
	OutcomeStalled RefinementOutcome = "stalled"

	// OutcomeFailed means a revision call failed and the loop stopped.
	OutcomeFailed RefinementOutcome = "failed"
)

// DocumentRecord is an immutable audit entry for one generated document and
// the facts it exposed to later documents. Corrections are new records that
// supersede earlier ones; records are never edited. Superseded is derived by
// stores on read, from a later record naming this one in Supersedes.
type DocumentRecord struct {
	ID            DocumentID            `json:"id"`
	DocumentType  string                `json:"document_type"`
	ProgramName   string                `json:"program_name"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Sequence      int64                 `json:"sequence"`
	ExposedFacts  FactSet               `json:"exposed_facts"`
	FileReference string                `json:"file_reference,omitempty"`
	Supersedes    DocumentID            `json:"supersedes,omitempty"`
	Superseded    bool                  `json:"superseded,omitempty"`
	Quality       *QualityReport        `json:"quality,omitempty"`
	Refinement    []RefinementIteration `json:"refinement,omitempty"`
	Outcome       RefinementOutcome     `json:"refinement_outcome,omitempty"`
}

// Matches returns true if the record's type is in the filter. An empty
// filter matches every record.
func (r DocumentRecord) Matches(documentTypes []string) bool {
	if len(documentTypes) == 0 {
		return true
	}
	for _, t := range documentTypes {
		if t == r.DocumentType {
			return true
		}
	}
	return false
}

// MergeLatest merges facts of kind across records. When two records carry
// the same logical fact, the record with the higher sequence wins.
// Superseded records are ignored. Output order follows first appearance in
// sequence order, so the result is deterministic.
func MergeLatest(records []DocumentRecord, kind FactKind) FactSet {
	live := make([]DocumentRecord, 0, len(records))
	for _, r := range records {
		if !r.Superseded {
			live = append(live, r)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].Sequence < live[j].Sequence
	})

	index := make(map[string]int)
	var merged []ExtractedFact
	for _, r := range live {
		for _, f := range r.ExposedFacts.ByKind(kind) {
			key := f.LogicalKey()
			if i, ok := index[key]; ok {
				merged[i] = f
				continue
			}
			index[key] = len(merged)
			merged = append(merged, f)
		}
	}
	return NewFactSet(dropShadowedFallbacks(merged))
}

// MergePreferring combines two fact sets. Facts in preferred win over facts
// in other with the same logical key; the rest of other is appended.
func MergePreferring(preferred, other FactSet) FactSet {
	seen := make(map[string]bool, preferred.Len())
	out := make([]ExtractedFact, 0, preferred.Len()+other.Len())
	for _, f := range preferred.Facts {
		seen[f.LogicalKey()] = true
		out = append(out, f)
	}
	for _, f := range other.Facts {
		if seen[f.LogicalKey()] {
			continue
		}
		seen[f.LogicalKey()] = true
		out = append(out, f)
	}
	return NewFactSet(dropShadowedFallbacks(out))
}

// dropShadowedFallbacks removes placeholders for kinds that have real facts.
func dropShadowedFallbacks(facts []ExtractedFact) []ExtractedFact {
	hasReal := make(map[FactKind]bool)
	for _, f := range facts {
		if !f.IsFallback() {
			hasReal[f.Kind] = true
		}
	}
	out := facts[:0:0]
	for _, f := range facts {
		if f.IsFallback() && hasReal[f.Kind] {
			continue
		}
		out = append(out, f)
	}
	return out
}
