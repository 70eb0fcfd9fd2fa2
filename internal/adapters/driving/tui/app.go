package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/acqgen/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/acqgen/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/acqgen/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/acqgen/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// eventBuffer is the number of progress events queued for the view.
const eventBuffer = 64

// documentLine is the latest state of one document in the run.
type documentLine struct {
	documentType string
	stage        domain.ProgressStage
	message      string
}

// App shows a package run following the Elm architecture.
// It implements tea.Model for use with Bubbletea and driven.ProgressSink so
// the package service can report to it.
type App struct {
	ports   *Ports
	request domain.PackageRequest

	// ctx is cancelled when the user quits.
	ctx    context.Context
	cancel context.CancelFunc

	events chan domain.ProgressEvent

	styles  *styles.Styles
	keymap  *keymap.KeyMap
	spinner spinner.Model
	bar     progress.Model
	status  *status.Bar

	documents []documentLine
	index     map[string]int
	total     int
	percent   float64
	message   string
	offset    int
	showHelp  bool

	manifest *domain.PackageManifest
	err      error
	finished bool

	width  int
	height int
}

// Ensure App implements the interfaces.
var (
	_ tea.Model           = (*App)(nil)
	_ driven.ProgressSink = (*App)(nil)
)

// NewApp creates a progress view for one package request.
func NewApp(ports *Ports, req domain.PackageRequest) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	app := &App{
		ports:   ports,
		request: req,
		events:  make(chan domain.ProgressEvent, eventBuffer),
		styles:  s,
		keymap:  km,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		status:  status.NewBar(s, km),
		index:   make(map[string]int),
		total:   plannedTotal(ports, req),
		message: "Planning",
	}
	app.status.SetProgress(0, app.total)
	app.ctx, app.cancel = context.WithCancel(context.Background())
	return app, nil
}

// plannedTotal returns the number of documents the request will run, or
// zero when the order is unavailable.
func plannedTotal(ports *Ports, req domain.PackageRequest) int {
	if len(req.Only) > 0 {
		return len(req.Only)
	}
	waves, err := ports.Package.Order()
	if err != nil {
		return 0
	}
	n := 0
	for _, wave := range waves {
		n += len(wave)
	}
	return n
}

// WithContext sets the parent context for the run.
func (a *App) WithContext(ctx context.Context) *App {
	a.cancel()
	a.ctx, a.cancel = context.WithCancel(ctx)
	return a
}

// Emit implements driven.ProgressSink. It blocks while the queue is full
// and drops events once the view has quit.
func (a *App) Emit(event domain.ProgressEvent) {
	select {
	case a.events <- event:
	case <-a.ctx.Done():
	}
}

// Manifest returns the run's manifest once it has finished.
func (a *App) Manifest() *domain.PackageManifest {
	return a.manifest
}

// Err returns the run's error, or context.Canceled if the user quit.
func (a *App) Err() error {
	return a.err
}

// Init implements tea.Model. It starts the run and the event pump.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("acqgen - "+a.request.ProgramName),
		a.spinner.Tick,
		a.generate(),
		a.waitForEvent(),
	)
}

func (a *App) generate() tea.Cmd {
	ctx := a.ctx
	return func() tea.Msg {
		manifest, err := a.ports.Package.GeneratePackage(ctx, a.request)
		return messages.GenerationFinished{Manifest: manifest, Err: err}
	}
}

func (a *App) waitForEvent() tea.Cmd {
	events := a.events
	done := a.ctx.Done()
	return func() tea.Msg {
		select {
		case event := <-events:
			return messages.ProgressReceived{Event: event}
		case <-done:
			return nil
		}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.bar.Width = max(msg.Width-4, 10)
		a.status.SetWidth(msg.Width)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case spinner.TickMsg:
		if a.finished {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case messages.ProgressReceived:
		a.apply(msg.Event)
		return a, a.waitForEvent()

	case messages.GenerationFinished:
		a.finish(msg)
		return a, tea.Quit

	case messages.ErrorOccurred:
		a.err = msg.Err
		a.status.SetState(status.StateFailed)
		a.status.SetMessage(msg.Err.Error())
		return a, nil
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keymap.Matches(msg.String(), a.keymap.Quit):
		a.cancel()
		a.finished = true
		a.err = context.Canceled
		a.status.SetState(status.StateCancelled)
		return a, tea.Quit
	case keymap.Matches(msg.String(), a.keymap.Help):
		a.showHelp = !a.showHelp
	case keymap.Matches(msg.String(), a.keymap.Up):
		if a.offset > 0 {
			a.offset--
		}
	case keymap.Matches(msg.String(), a.keymap.Down):
		if a.offset < len(a.documents)-1 {
			a.offset++
		}
	}
	return a, nil
}

// apply records one progress event.
func (a *App) apply(event domain.ProgressEvent) {
	a.percent = event.Percent / 100
	if event.Message != "" {
		a.message = event.Message
	}
	if event.DocumentType == "" {
		return
	}

	i, ok := a.index[event.DocumentType]
	if !ok {
		i = len(a.documents)
		a.index[event.DocumentType] = i
		a.documents = append(a.documents, documentLine{documentType: event.DocumentType})
	}
	a.documents[i].stage = event.Stage
	a.documents[i].message = event.Message
	a.status.SetProgress(a.completed(), max(a.total, len(a.documents)))
}

func (a *App) completed() int {
	n := 0
	for _, d := range a.documents {
		switch d.stage {
		case domain.StageCompleted, domain.StageSkipped, domain.StageFailed:
			n++
		}
	}
	return n
}

func (a *App) finish(msg messages.GenerationFinished) {
	a.cancel()
	a.finished = true
	a.manifest = msg.Manifest
	a.err = msg.Err
	a.percent = 1

	switch {
	case msg.Err != nil:
		a.status.SetState(status.StateFailed)
		a.status.SetMessage(msg.Err.Error())
	case msg.Succeeded():
		a.status.SetState(status.StateDone)
	case msg.Manifest == nil:
		a.status.SetState(status.StateFailed)
	default:
		a.status.SetState(status.StateFailed)
		a.status.SetMessage(fmt.Sprintf("%d documents did not generate", len(msg.Manifest.Failed())))
	}
	if msg.Manifest != nil {
		a.status.SetProgress(len(msg.Manifest.Documents), len(msg.Manifest.Documents))
	}
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Acquisition package: " + a.request.ProgramName))
	b.WriteString("\n\n")

	if a.finished {
		b.WriteString(a.styles.Muted.Render(a.message))
	} else {
		b.WriteString(a.spinner.View() + " " + a.styles.Normal.Render(a.message))
	}
	b.WriteString("\n")
	b.WriteString(a.bar.ViewAs(a.percent))
	b.WriteString("\n\n")

	for _, d := range a.visibleDocuments() {
		line := fmt.Sprintf("  %-32s %s", d.documentType, d.stage)
		b.WriteString(a.styles.ForStage(d.stage).Render(line))
		b.WriteString("\n")
	}

	if a.showHelp {
		b.WriteString("\n")
		for _, group := range a.keymap.FullHelp() {
			hints := make([]string, 0, len(group))
			for _, binding := range group {
				h := binding.Help()
				hints = append(hints, h.Key+" "+h.Desc)
			}
			b.WriteString(a.styles.Help.Render("  " + strings.Join(hints, "  ")))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(a.status.View())
	return b.String()
}

// visibleDocuments returns the document lines that fit the window.
func (a *App) visibleDocuments() []documentLine {
	docs := a.documents
	if a.offset < len(docs) {
		docs = docs[a.offset:]
	}
	// title, message, bar, spacing and status bar
	if room := a.height - 8; a.height > 0 && room > 0 && len(docs) > room {
		docs = docs[:room]
	}
	return docs
}
