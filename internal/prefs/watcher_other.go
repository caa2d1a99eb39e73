//go:build !darwin

package prefs

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// open watches the database directory with fsnotify. The returned channel
// carries the path of every file written, created, renamed or removed.
func (w *Watcher) open(ctx context.Context) (<-chan string, <-chan error, func() error, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating preference watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return nil, nil, nil, fmt.Errorf("watching %s: %w", w.dir, err)
	}

	paths := make(chan string, 16)
	go func() {
		defer close(paths)
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				select {
				case paths <- ev.Name:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return paths, fw.Errors, fw.Close, nil
}
