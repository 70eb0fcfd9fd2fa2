package file

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/acqgen/internal/logger"
)

// Reloader is anything with a cache to drop when its files change.
type Reloader interface {
	Reload()
}

// PromptWatcher reloads a prompt store when a prompt file in its directory
// is created, written, removed or renamed.
type PromptWatcher struct {
	dir     string
	target  Reloader
	watcher *fsnotify.Watcher
}

// NewPromptWatcher starts watching dir. Call Run to process events and
// Close to stop.
func NewPromptWatcher(dir string, target Reloader) (*PromptWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &PromptWatcher{dir: dir, target: target, watcher: w}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (p *PromptWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if p.handleEvent(event) {
				logger.Debug("Prompts: %s changed, reloading", filepath.Base(event.Name))
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Prompts: watcher error: %v", err)
		}
	}
}

// handleEvent reloads the target for prompt file changes and reports
// whether it did.
func (p *PromptWatcher) handleEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || filepath.Ext(name) != ".txt" {
		return false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	p.target.Reload()
	return true
}

// Close stops watching.
func (p *PromptWatcher) Close() error {
	return p.watcher.Close()
}
