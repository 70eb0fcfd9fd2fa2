package domain

import "time"

// ProgressStage names a pipeline transition.
type ProgressStage string

// Pipeline stages reported while a package is generated.
const (
	StagePlanning   ProgressStage = "planning"
	StageRetrieving ProgressStage = "retrieving"
	StageExtracting ProgressStage = "extracting"
	StageMerging    ProgressStage = "merging"
	StageRendering  ProgressStage = "rendering"
	StageEvaluating ProgressStage = "evaluating"
	StageRefining   ProgressStage = "refining"
	StageCommitting ProgressStage = "committing"
	StageCompleted  ProgressStage = "completed"
	StageSkipped    ProgressStage = "skipped"
	StageFailed     ProgressStage = "failed"
	StageFinished   ProgressStage = "finished"
)

// ProgressEvent is a discrete progress notification. Percent covers the
// whole package run, 0-100.
type ProgressEvent struct {
	Stage        ProgressStage `json:"stage"`
	Percent      float64       `json:"percent"`
	Message      string        `json:"message"`
	DocumentType string        `json:"document_type,omitempty"`
}

// DocumentStatus is the terminal state of one document in a package run.
type DocumentStatus string

// Document statuses.
const (
	StatusGenerated  DocumentStatus = "generated"
	StatusSkipped    DocumentStatus = "skipped"
	StatusFailed     DocumentStatus = "failed"
	StatusUnresolved DocumentStatus = "unresolved"
)

// DocumentResult is the outcome of generating one document.
type DocumentResult struct {
	DocumentType string          `json:"document_type"`
	Status       DocumentStatus  `json:"status"`
	Record       *DocumentRecord `json:"record,omitempty"`
	Facts        FactSummary     `json:"facts"`
	Error        string          `json:"error,omitempty"`
}

// PackageRequest describes one package run.
type PackageRequest struct {
	// ProgramName identifies the acquisition program.
	ProgramName string

	// Description is appended to every retrieval query.
	Description string

	// Only restricts the run to these document types. Their dependencies
	// must already be committed.
	Only []string

	// Overwrite regenerates documents that already have records.
	Overwrite bool
}

// PackageManifest is the JSON export of a program's records and quality
// reports.
type PackageManifest struct {
	ProgramName string           `json:"program_name"`
	GeneratedAt time.Time        `json:"generated_at"`
	Documents   []DocumentResult `json:"documents,omitempty"`
	Records     []DocumentRecord `json:"records"`
}

// Failed returns the results that did not generate.
func (m PackageManifest) Failed() []DocumentResult {
	var out []DocumentResult
	for _, d := range m.Documents {
		if d.Status == StatusFailed || d.Status == StatusUnresolved {
			out = append(out, d)
		}
	}
	return out
}
