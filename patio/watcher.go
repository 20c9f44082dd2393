package patio

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mottu/patio-proxy/log"
)

type fileWatcher struct {
	watch        *fsnotify.Watcher
	log          log.Logger
	closed       chan struct{}
	closedOnce   sync.Once
	modified     chan struct{}
	realFilePath string
}

func newFileWatcher(path string, log log.Logger) (*fileWatcher, error) {
	fsLog := log.WithPrefix("file-watcher")
	if _, err := os.Stat(path); err != nil {
		fsLog.Errorf("failed to start watch on %s: %s", path, err)
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		fsLog.Errorf("failed to create file watcher on %s: %s", path, err)
		return nil, err
	}
	// editors often replace the file, so the directory is watched instead
	dirPath := filepath.Dir(path)
	realPath, err := filepath.EvalSymlinks(dirPath)
	if err != nil {
		_ = w.Close()
		fsLog.Errorf("failed to eval symlink for %s: %s", dirPath, err)
		return nil, err
	}
	if err = w.Add(realPath); err != nil {
		_ = w.Close()
		fsLog.Errorf("failed to create file watcher on %s: %s", realPath, err)
		return nil, err
	}
	f := &fileWatcher{
		watch:        w,
		log:          fsLog,
		closed:       make(chan struct{}),
		modified:     make(chan struct{}, 1),
		realFilePath: filepath.Join(realPath, filepath.Base(path)),
	}
	fsLog.Reportf("started watching %s", f.realFilePath)
	go f.run()
	return f, nil
}

func (f *fileWatcher) run() {
	for {
		select {
		case event, ok := <-f.watch.Events:
			if !ok {
				return
			}
			if event.Name == f.realFilePath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				select {
				case f.modified <- struct{}{}:
				default:
				}
			}
		case err, ok := <-f.watch.Errors:
			if !ok {
				return
			}
			f.log.Errorf("%s", err)
		case <-f.closed:
			_ = f.watch.Close()
			f.log.Reportf("shutdown complete")
			return
		}
	}
}

func (f *fileWatcher) Modified() <-chan struct{} {
	return f.modified
}

func (f *fileWatcher) Close() {
	f.closedOnce.Do(func() {
		close(f.closed)
	})
}
