package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/core/ports/driving"
	"github.com/custodia-labs/acqgen/internal/logger"
)

// Ensure PackageService implements the interface.
var _ driving.PackageService = (*PackageService)(nil)

// PackageConfig controls how a package run is sequenced.
type PackageConfig struct {
	// TopK is the number of chunks retrieved per document.
	TopK int

	// MaxIterations is the refinement pass budget per document.
	MaxIterations int

	// AcceptThreshold is the score at which a draft needs no refinement.
	AcceptThreshold float64

	// Concurrency bounds how many documents of one wave run at once.
	Concurrency int

	// Timeout bounds retrieval and each revision call.
	Timeout time.Duration
}

// PackageConfigFromSettings maps pipeline settings onto a PackageConfig.
func PackageConfigFromSettings(p domain.PipelineSettings) PackageConfig {
	return PackageConfig{
		TopK:            p.TopK,
		MaxIterations:   p.MaxIterations,
		AcceptThreshold: p.AcceptThreshold,
		Concurrency:     p.Concurrency,
		Timeout:         p.GenerationTimeout,
	}
}

// PackageService sequences retrieval, extraction, cross-document merge,
// rendering, evaluation, refinement and commit for every document in a
// package. It is the only writer to the metadata store.
type PackageService struct {
	catalog    domain.Catalog
	store      driven.MetadataStore
	renderer   driven.Renderer
	extraction driving.ExtractionService
	quality    driving.QualityService
	refinement *RefinementService
	retriever  driven.Retriever
	reviser    DocumentReviser
	artifacts  driven.ArtifactStore
	progress   driven.ProgressSink
	config     PackageConfig
	sequence   map[string]int
}

// NewPackageService creates the orchestrator.
// The retriever, reviser, artifacts and progress parameters are optional:
// without a retriever every document extracts from no context and degrades
// to fallback facts; without a reviser drafts are never refined; without an
// artifact store records carry no file reference.
func NewPackageService(
	catalog domain.Catalog,
	store driven.MetadataStore,
	renderer driven.Renderer,
	extraction driving.ExtractionService,
	quality driving.QualityService,
	retriever driven.Retriever,
	reviser DocumentReviser,
	artifacts driven.ArtifactStore,
	progress driven.ProgressSink,
	config PackageConfig,
) (*PackageService, error) {
	order, err := OrderDocuments(catalog)
	if err != nil {
		return nil, fmt.Errorf("order catalogue: %w", err)
	}
	if config.TopK <= 0 {
		config.TopK = domain.DefaultTopK
	}
	if config.MaxIterations < 0 {
		config.MaxIterations = 0
	}
	if config.AcceptThreshold <= 0 {
		config.AcceptThreshold = domain.DefaultAcceptThreshold
	}
	if config.Concurrency <= 0 {
		config.Concurrency = domain.DefaultConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = domain.DefaultGenerationTimeout
	}

	sequence := make(map[string]int, len(order))
	for i, t := range order {
		sequence[t] = i + 1
	}

	return &PackageService{
		catalog:    catalog,
		store:      store,
		renderer:   renderer,
		extraction: extraction,
		quality:    quality,
		refinement: NewRefinementService(quality),
		retriever:  retriever,
		reviser:    reviser,
		artifacts:  artifacts,
		progress:   progress,
		config:     config,
		sequence:   sequence,
	}, nil
}

// Order returns the document types grouped into dependency waves.
func (s *PackageService) Order() ([][]string, error) {
	return Waves(s.catalog)
}

// GeneratePackage generates the catalogued documents for a program wave by
// wave. Documents within a wave run concurrently; a wave starts only after
// every document of the previous wave has committed or failed. A failed
// document marks its downstream documents unresolved.
func (s *PackageService) GeneratePackage(ctx context.Context, req domain.PackageRequest) (*domain.PackageManifest, error) {
	if strings.TrimSpace(req.ProgramName) == "" {
		return nil, fmt.Errorf("%w: program name is required", domain.ErrInvalidInput)
	}
	selected, err := s.selection(req.Only)
	if err != nil {
		return nil, err
	}
	waves, err := Waves(s.catalog)
	if err != nil {
		return nil, err
	}

	tracker := newProgressTracker(s.progress, len(selected))
	tracker.emit(domain.StagePlanning, "", fmt.Sprintf("Generating %d documents for %s in %d waves",
		len(selected), req.ProgramName, len(waves)))
	logger.Section("Package " + req.ProgramName)

	manifest := &domain.PackageManifest{
		ProgramName: req.ProgramName,
		GeneratedAt: time.Now(),
	}
	blocked := make(map[string][]string)

	for _, wave := range waves {
		if err := ctx.Err(); err != nil {
			return s.finishManifest(ctx, manifest, tracker, err)
		}

		var docs []domain.DocumentSpec
		for _, t := range wave {
			if selected[t] {
				spec, _ := s.catalog.Get(t)
				docs = append(docs, spec)
			}
		}

		results := make([]domain.DocumentResult, len(docs))
		var g errgroup.Group
		g.SetLimit(s.config.Concurrency)
		for i, spec := range docs {
			if upstream, ok := blocked[spec.Type]; ok {
				err := &domain.DependencyUnresolvedError{DocumentType: spec.Type, MissingDocuments: upstream}
				results[i] = failedResult(spec.Type, domain.StatusUnresolved, err)
				tracker.done(domain.StageSkipped, spec.Type, err.Error())
				continue
			}
			g.Go(func() error {
				results[i], _ = s.generate(ctx, req, spec, tracker)
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range results {
			manifest.Documents = append(manifest.Documents, r)
			if r.Status != domain.StatusFailed && r.Status != domain.StatusUnresolved {
				continue
			}
			for _, d := range Downstream(s.catalog, r.DocumentType) {
				if !containsString(blocked[d], r.DocumentType) {
					blocked[d] = append(blocked[d], r.DocumentType)
				}
			}
		}
	}

	return s.finishManifest(ctx, manifest, tracker, nil)
}

func (s *PackageService) finishManifest(
	ctx context.Context,
	manifest *domain.PackageManifest,
	tracker *progressTracker,
	runErr error,
) (*domain.PackageManifest, error) {
	// Records are read with a fresh context so a cancelled run still
	// reports what it committed.
	records, err := s.programRecords(context.WithoutCancel(ctx), manifest.ProgramName)
	if err != nil {
		return manifest, errors.Join(runErr, err)
	}
	manifest.Records = records

	failed := len(manifest.Failed())
	tracker.finish(fmt.Sprintf("%d documents processed, %d failed", len(manifest.Documents), failed))
	logger.Info("Package %s: %d documents processed, %d failed", manifest.ProgramName, len(manifest.Documents), failed)
	return manifest, runErr
}

// GenerateDocument generates one document whose dependencies are committed.
func (s *PackageService) GenerateDocument(
	ctx context.Context,
	req domain.PackageRequest,
	documentType string,
) (*domain.DocumentResult, error) {
	if strings.TrimSpace(req.ProgramName) == "" {
		return nil, fmt.Errorf("%w: program name is required", domain.ErrInvalidInput)
	}
	spec, ok := s.catalog.Get(documentType)
	if !ok {
		return nil, fmt.Errorf("%w: document type %s", domain.ErrUnsupportedType, documentType)
	}

	tracker := newProgressTracker(s.progress, 1)
	result, err := s.generate(ctx, req, spec, tracker)
	tracker.finish(fmt.Sprintf("%s %s", documentType, result.Status))
	return &result, err
}

// Manifest exports the records of a program, or every record when program
// is empty.
func (s *PackageService) Manifest(ctx context.Context, program string) (*domain.PackageManifest, error) {
	records, err := s.programRecords(ctx, program)
	if err != nil {
		return nil, err
	}
	return &domain.PackageManifest{
		ProgramName: program,
		GeneratedAt: time.Now(),
		Records:     records,
	}, nil
}

// Facts returns the merged committed facts of kind for a program.
func (s *PackageService) Facts(
	ctx context.Context,
	program string,
	kind domain.FactKind,
	documentTypes ...string,
) (domain.FactSet, error) {
	if !kind.IsValid() {
		return domain.FactSet{}, fmt.Errorf("%w: fact kind %q", domain.ErrInvalidInput, kind)
	}
	return s.store.Lookup(ctx, program, kind, documentTypes...)
}

func (s *PackageService) programRecords(ctx context.Context, program string) ([]domain.DocumentRecord, error) {
	all, err := s.store.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	records := []domain.DocumentRecord{}
	for _, r := range all {
		if program == "" || r.ProgramName == program {
			records = append(records, r)
		}
	}
	return records, nil
}

// selection returns the requested document types, or all of them.
func (s *PackageService) selection(only []string) (map[string]bool, error) {
	selected := make(map[string]bool)
	if len(only) == 0 {
		for _, t := range s.catalog.Types() {
			selected[t] = true
		}
		return selected, nil
	}
	for _, t := range only {
		if _, ok := s.catalog.Get(t); !ok {
			return nil, fmt.Errorf("%w: document type %s", domain.ErrUnsupportedType, t)
		}
		selected[t] = true
	}
	return selected, nil
}

// generate runs the per-document pipeline. The returned result always
// describes the outcome; the error is set when the document did not
// generate.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *PackageService) generate(
	ctx context.Context,
	req domain.PackageRequest,
	spec domain.DocumentSpec,
	tracker *progressTracker,
) (domain.DocumentResult, error) {
	program := req.ProgramName

	fail := func(status domain.DocumentStatus, err error) (domain.DocumentResult, error) {
		logger.Warn("Package: %s %s: %v", spec.Type, status, err)
		tracker.done(domain.StageFailed, spec.Type, err.Error())
		return failedResult(spec.Type, status, err), err
	}

	// 1. Skip documents that already have a live record
	if !req.Overwrite {
		existing, err := s.store.Get(ctx, spec.Type, program)
		switch {
		case err == nil:
			tracker.done(domain.StageSkipped, spec.Type, spec.Title+" already generated")
			return domain.DocumentResult{
				DocumentType: spec.Type,
				Status:       domain.StatusSkipped,
				Record:       existing,
				Facts:        existing.ExposedFacts.Summary(),
			}, nil
		case !errors.Is(err, domain.ErrNotFound):
			return fail(domain.StatusFailed, fmt.Errorf("get record: %w", err))
		}
	}

	// 2. Check that upstream documents and the facts they owe are committed
	upstream, err := s.resolveDependencies(ctx, spec, program)
	if err != nil {
		return fail(domain.StatusUnresolved, err)
	}

	// 3. Retrieve context
	tracker.emit(domain.StageRetrieving, spec.Type, "Retrieving context for "+spec.Title)
	chunks := s.retrieve(ctx, spec, req.Description)

	// 4. Extract facts
	tracker.emit(domain.StageExtracting, spec.Type, fmt.Sprintf("Extracting facts from %d chunks", len(chunks)))
	local := s.extraction.Extract(ctx, chunks, spec.Extract...)

	// 5. Merge with facts owed by upstream documents; upstream wins
	tracker.emit(domain.StageMerging, spec.Type, fmt.Sprintf("Merging %d upstream facts", upstream.Len()))
	facts := domain.MergePreferring(upstream, local)

	// 6. Render
	tracker.emit(domain.StageRendering, spec.Type, "Rendering "+spec.Title)
	templateID := spec.Template
	if templateID == "" {
		templateID = spec.Type
	}
	text, err := s.renderer.Render(ctx, templateID, driven.RenderInput{
		Spec:        spec,
		ProgramName: program,
		Description: req.Description,
		Facts:       facts,
		Chunks:      chunks,
	})
	if err != nil {
		return fail(domain.StatusFailed, fmt.Errorf("render %s: %w", templateID, err))
	}

	// 7. Evaluate and refine
	tracker.emit(domain.StageEvaluating, spec.Type, "Evaluating "+spec.Title)
	input := domain.EvaluationInput{
		DocumentType:     spec.Type,
		ProgramName:      program,
		Description:      req.Description,
		Facts:            facts,
		SourceText:       joinChunks(chunks),
		RequiredSections: spec.RequiredSections(),
		RequiredClauses:  spec.RequiredClauses,
		MinWords:         spec.MinWords,
	}
	var revise ReviseFunc
	if s.reviser != nil {
		revise = s.reviser.For(spec.Title)
		tracker.emit(domain.StageRefining, spec.Type, "Refining "+spec.Title)
	}
	refined := s.refinement.Refine(ctx, revise, text, input, RefineOptions{
		MaxIterations: s.config.MaxIterations,
		Threshold:     s.config.AcceptThreshold,
		Timeout:       s.config.Timeout,
	})
	if err := ctx.Err(); err != nil {
		return fail(domain.StatusFailed, err)
	}

	// 8. Save the artefact and commit
	tracker.emit(domain.StageCommitting, spec.Type, "Committing "+spec.Title)
	var reference string
	if s.artifacts != nil {
		reference, err = s.artifacts.Save(ctx, program, spec.Type, s.sequence[spec.Type], refined.Text)
		if err != nil {
			return fail(domain.StatusFailed, fmt.Errorf("save artefact: %w", err))
		}
	}

	report := refined.Report
	record := domain.DocumentRecord{
		DocumentType:  spec.Type,
		ProgramName:   program,
		ExposedFacts:  facts,
		FileReference: reference,
		Quality:       &report,
		Refinement:    refined.Iterations,
		Outcome:       refined.Outcome,
	}
	id, err := s.store.Commit(ctx, record, req.Overwrite)
	if err != nil {
		s.discard(reference)
		return fail(domain.StatusFailed, fmt.Errorf("commit: %w", err))
	}
	committed, err := s.store.Get(ctx, spec.Type, program)
	if err != nil {
		record.ID = id
		committed = &record
	}

	tracker.done(domain.StageCompleted, spec.Type, fmt.Sprintf("%s scored %.1f (%s)",
		spec.Title, report.OverallScore, report.Grade))
	logger.Info("Package: %s committed as %s, score %.1f (%s), %d refinement passes",
		spec.Type, id, report.OverallScore, report.Grade, len(refined.Iterations))

	return domain.DocumentResult{
		DocumentType: spec.Type,
		Status:       domain.StatusGenerated,
		Record:       committed,
		Facts:        facts.Summary(),
	}, nil
}

// discard removes an artefact whose record was not committed. It runs on a
// fresh context so a cancelled run still cleans up.
func (s *PackageService) discard(reference string) {
	if s.artifacts == nil || reference == "" {
		return
	}
	if err := s.artifacts.Discard(context.Background(), reference); err != nil {
		logger.Warn("Package: failed to discard %s: %v", reference, err)
	}
}

// resolveDependencies checks that every upstream document is committed and
// that each consumed kind has at least one real upstream fact. Fallback
// placeholders are never carried across documents.
func (s *PackageService) resolveDependencies(
	ctx context.Context,
	spec domain.DocumentSpec,
	program string,
) (domain.FactSet, error) {
	if len(spec.DependsOn) == 0 {
		return domain.FactSet{}, nil
	}

	unresolved := &domain.DependencyUnresolvedError{DocumentType: spec.Type}
	for _, dep := range spec.DependsOn {
		if _, err := s.store.Get(ctx, dep, program); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return domain.FactSet{}, fmt.Errorf("get %s: %w", dep, err)
			}
			unresolved.MissingDocuments = append(unresolved.MissingDocuments, dep)
		}
	}

	var upstream []domain.ExtractedFact
	for _, kind := range spec.Consumes {
		set, err := s.store.Lookup(ctx, program, kind, spec.DependsOn...)
		if err != nil {
			return domain.FactSet{}, fmt.Errorf("lookup %s: %w", kind, err)
		}
		found := false
		for _, f := range set.Facts {
			if !f.IsFallback() {
				upstream = append(upstream, f)
				found = true
			}
		}
		if !found {
			unresolved.MissingKinds = append(unresolved.MissingKinds, kind)
		}
	}

	if len(unresolved.MissingDocuments) > 0 || len(unresolved.MissingKinds) > 0 {
		return domain.FactSet{}, unresolved
	}
	return domain.NewFactSet(upstream), nil
}

// retrieve queries the retriever within the configured timeout. Failures
// yield no chunks so extraction degrades instead of failing the document.
func (s *PackageService) retrieve(ctx context.Context, spec domain.DocumentSpec, description string) []domain.Chunk {
	if s.retriever == nil {
		logger.Warn("Package: %s has no context, %v", spec.Type, domain.ErrRetrievalUnavailable)
		return nil
	}

	query := strings.TrimSpace(spec.Query + " " + description)
	if query == "" {
		query = spec.Title
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	chunks, err := s.retriever.Query(ctx, query, s.config.TopK)
	if err != nil {
		logger.Warn("Package: retrieval for %s failed: %v", spec.Type, err)
		return nil
	}
	logger.Debug("Package: retrieved %d chunks for %s", len(chunks), spec.Type)
	return chunks
}

func joinChunks(chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}

func failedResult(documentType string, status domain.DocumentStatus, err error) domain.DocumentResult {
	return domain.DocumentResult{
		DocumentType: documentType,
		Status:       status,
		Error:        err.Error(),
	}
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// progressTracker turns per-document transitions into package-wide
// progress events. Safe for concurrent use.
type progressTracker struct {
	mu        sync.Mutex
	sink      driven.ProgressSink
	total     int
	completed int
}

func newProgressTracker(sink driven.ProgressSink, total int) *progressTracker {
	return &progressTracker{sink: sink, total: total}
}

func (t *progressTracker) emit(stage domain.ProgressStage, documentType, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.send(stage, documentType, message)
}

// done records one finished document and emits its terminal event.
func (t *progressTracker) done(stage domain.ProgressStage, documentType, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.send(stage, documentType, message)
}

func (t *progressTracker) finish(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink == nil {
		return
	}
	t.sink.Emit(domain.ProgressEvent{Stage: domain.StageFinished, Percent: 100, Message: message})
}

func (t *progressTracker) send(stage domain.ProgressStage, documentType, message string) {
	if t.sink == nil {
		return
	}
	percent := 0.0
	if t.total > 0 {
		percent = float64(t.completed) / float64(t.total) * 100
	}
	t.sink.Emit(domain.ProgressEvent{
		Stage:        stage,
		Percent:      percent,
		Message:      message,
		DocumentType: documentType,
	})
}
