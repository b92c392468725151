package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// settle coalesces the burst of events an editor save produces.
const settle = 100 * time.Millisecond

// Watch reloads dir into live whenever a pack file in it changes, until
// ctx is done. onReload, if non-nil, sees every reload attempt; a failed
// reload leaves the previous pack in place.
func Watch(ctx context.Context, dir string, live *Live, onReload func(*Pack, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	report := func(p *Pack, err error) {
		if onReload != nil {
			onReload(p, err)
		}
	}

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if isPackFile(ev.Name) && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			report(nil, err)
		case <-timer.C:
			p, err := Load(afero.NewOsFs(), dir)
			if err == nil {
				live.Set(p)
			}
			report(p, err)
		}
	}
}
