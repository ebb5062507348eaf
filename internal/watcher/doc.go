// Package watcher keeps the package set in step with a links file.
//
// The links file lists one package reference per line. The Watcher loads it
// on Start and again whenever it is written, created or renamed into place,
// and hands every link that was not in the previous load to a callback. The
// serve command wires the callback to Orchestrator.EnqueueAdd.
//
// Key features:
//   - fsnotify watch on the containing directory, so editors that save by
//     rename are picked up
//   - Bursts of events are coalesced before the file is reloaded
//   - PID file management so only one serve process runs per config dir
//   - Graceful shutdown through Stop or context cancellation
//
// Example usage:
//
//	w, err := watcher.New(cfg.LinksFile, func(links []string) {
//		for _, link := range links {
//			o.EnqueueAdd(link, false)
//		}
//	})
//	if err != nil {
//		return err
//	}
//
//	if err := w.Start(); err != nil {
//		return err
//	}
//	defer w.Stop()
package watcher
