package main

import (
	"context"

	"github.com/vanderheijden86/blockmap/pkg/watcher"
)

// watchGraph reloads the open source whenever notes change. Graph-directory
// sources announce the reload through their host events; for index sources
// the changed paths are sent on the returned channel instead. The channel is
// nil when there is no graph directory to watch.
func (a *app) watchGraph(ctx context.Context) (<-chan []string, func(), error) {
	dir := a.cfg.GraphDir
	if a.src.Memory != nil {
		dir = a.src.Info.Path
	}
	if dir == "" {
		return nil, func() {}, nil
	}
	f, err := a.filter()
	if err != nil {
		return nil, nil, err
	}
	w, err := watcher.NewWatcher(dir,
		watcher.WithFilter(f.Keep),
		watcher.WithOnError(func(err error) { a.log.Warning("watcher", "err", err) }),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := w.Start(); err != nil {
		return nil, nil, err
	}

	out := make(chan []string, 1)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case paths := <-w.Changed():
				if err := a.src.Reload(ctx); err != nil {
					a.log.HostError("reload", err)
					continue
				}
				if a.src.Memory != nil {
					continue
				}
				select {
				case out <- paths:
				default:
				}
			}
		}
	}()
	stop := func() {
		cancel()
		w.Stop()
	}
	if a.src.Memory != nil {
		return nil, stop, nil
	}
	return out, stop, nil
}
