package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wudi/pdfoutline/observability"
)

// settleDelay is how long a file must stay quiet after its last write
// event before it is processed. Copies into the input directory raise
// a burst of writes; processing mid-copy would read a truncated file.
const settleDelay = 500 * time.Millisecond

// Watch runs an initial batch, then keeps processing PDFs as they
// appear in the input directory until the context is cancelled.
func (r *Runner) Watch(ctx context.Context) error {
	if _, err := r.Run(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(r.cfg.InputDir); err != nil {
		return fmt.Errorf("watch %s: %w", r.cfg.InputDir, err)
	}

	logger := r.logger.With(observability.String("input", r.cfg.InputDir))
	logger.Info("watching for new documents")

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", observability.Error("err", err))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			path := event.Name
			if !isPDFName(filepath.Base(path)) {
				continue
			}
			mu.Lock()
			if timer, ok := pending[path]; ok {
				timer.Reset(settleDelay)
			} else {
				pending[path] = time.AfterFunc(settleDelay, func() {
					mu.Lock()
					delete(pending, path)
					mu.Unlock()
					if ctx.Err() != nil {
						return
					}
					r.processFile(ctx, logger, path)
				})
			}
			mu.Unlock()
		}
	}
}

func isPDFName(name string) bool {
	if strings.Contains(name, "Zone.Identifier") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
