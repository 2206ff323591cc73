package pagecms

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor emits for one save.
const reloadDelay = 200 * time.Millisecond

// Watch re-imports the fixture at path each time it is written until ctx is
// done. The parent directory is watched so files replaced by rename are still
// picked up. Failed imports are logged and the previous content stays served.
func (im *Importer) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	im.logger.Info("watching content", "file", path)

	timer := time.NewTimer(reloadDelay)
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
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(reloadDelay)
		case <-timer.C:
			if _, err := im.ImportFile(ctx, path); err != nil {
				im.logger.Warn("re-import failed", "file", path, "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Warn("watch error", "file", path, "error", err)
		}
	}
}
