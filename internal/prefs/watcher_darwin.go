//go:build darwin

package prefs

import (
	"context"

	"github.com/fsnotify/fsevents"
)

// open watches the database directory with macOS FSEvents. FSEvents watches
// path strings, so the database may be replaced wholesale (for example by a
// sync client) without losing the watch.
func (w *Watcher) open(ctx context.Context) (<-chan string, <-chan error, func() error, error) {
	stream := &fsevents.EventStream{
		Paths:   []string{w.dir},
		Latency: 0,
		Flags:   fsevents.FileEvents | fsevents.WatchRoot | fsevents.NoDefer,
	}
	stream.Start()

	done := make(chan struct{})
	paths := make(chan string, 16)
	go func() {
		defer close(paths)
		for {
			select {
			case batch, ok := <-stream.Events:
				if !ok {
					return
				}
				for _, ev := range batch {
					if ev.Flags&(fsevents.ItemModified|fsevents.ItemCreated|fsevents.ItemRenamed|fsevents.ItemRemoved) == 0 {
						continue
					}
					select {
					case paths <- ev.Path:
					case <-done:
						return
					case <-ctx.Done():
						return
					}
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	closeFn := func() error {
		close(done)
		stream.Stop()
		return nil
	}
	// FSEvents has no error channel; queue overflows surface as flags.
	return paths, nil, closeFn, nil
}
