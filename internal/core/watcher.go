// ABOUTME: Watches a corpus directory and reloads legal texts as they are created or modified
// ABOUTME: Changes are debounced so an editor's burst of writes triggers a single load
package core

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before changed files are loaded
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions configures Watch
type WatchOptions struct {
	Debounce time.Duration
	// Extensions lists the file extensions to load; empty means .txt, .md, .html and .htm
	Extensions []string
	// OnLoad is called after each debounced load
	OnLoad func(LoadReport, error)
}

// Watch loads files created or modified under dir until ctx is cancelled
func (l *CorpusLoader) Watch(ctx context.Context, dir string, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	exts := map[string]bool{}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".txt", ".md", ".html", ".htm"}
	}
	for _, e := range opts.Extensions {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[strings.ToLower(e)] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	if err := addWatches(fsw, dir); err != nil {
		return err
	}
	l.logger.Info("watching corpus directory", "dir", dir, "debounce", opts.Debounce)

	pending := map[string]bool{}
	ticker := time.NewTicker(opts.Debounce)
	defer ticker.Stop()
	var lastChange time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addWatches(fsw, event.Name); err != nil {
						l.logger.Warn("failed to watch new directory", "path", event.Name, "err", err)
					}
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !exts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			pending[event.Name] = true
			lastChange = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("watch error", "err", err)

		case <-ticker.C:
			if len(pending) == 0 || time.Since(lastChange) < opts.Debounce {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = map[string]bool{}

			sort.Strings(paths)
			report, err := l.Load(ctx, paths)
			if err != nil {
				l.logger.Warn("reload failed", "files", len(paths), "err", err)
			}
			if opts.OnLoad != nil {
				opts.OnLoad(report, err)
			}
		}
	}
}

// addWatches registers root and its non-hidden subdirectories
func addWatches(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if base := d.Name(); strings.HasPrefix(base, ".") && path != root {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
