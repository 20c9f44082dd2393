package patio

import (
	"sync"
	"sync/atomic"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/log"
)

// Registry hands out the current pátio table. Reloads build a new table and
// swap it in; a table already handed out is never changed.
type Registry struct {
	table     atomic.Pointer[Table]
	watcher   *fileWatcher
	path      string
	log       log.Logger
	stop      chan struct{}
	stopOnce  sync.Once
	reloadCnt atomic.Int64
}

func NewRegistry(table *Table, log log.Logger) *Registry {
	r := &Registry{
		log:  log.WithPrefix("patio"),
		stop: make(chan struct{}),
	}
	r.table.Store(table)
	return r
}

// NewRegistryFromConfig loads the table from the configured file, or uses the
// built-in table when no file is set, and starts watching the file if asked.
func NewRegistryFromConfig(conf *config.PatiosConfig, log log.Logger) (*Registry, error) {
	patioLog := log.WithLevel(conf.Log.GetLevel())
	if conf.FilePath == "" {
		return NewRegistry(DefaultTable(), patioLog), nil
	}
	t, err := LoadTable(conf.FilePath)
	if err != nil {
		return nil, err
	}
	r := NewRegistry(t, patioLog)
	r.log.Reportf("loaded %d pátio(s) from %s", t.Len(), conf.FilePath)
	if conf.Watch {
		if err = r.Watch(conf.FilePath); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Table() *Table {
	return r.table.Load()
}

// Watch reloads the table from path whenever the file is written. An invalid
// file is logged and the previous table stays in use.
func (r *Registry) Watch(path string) error {
	w, err := newFileWatcher(path, r.log)
	if err != nil {
		return err
	}
	r.watcher = w
	r.path = path
	go r.run()
	return nil
}

func (r *Registry) run() {
	for {
		select {
		case <-r.watcher.Modified():
			r.reload()
		case <-r.stop:
			return
		}
	}
}

func (r *Registry) reload() {
	t, err := LoadTable(r.path)
	if err != nil {
		r.log.Errorf("keeping the previous pátio table: %s", err)
		return
	}
	r.table.Store(t)
	r.reloadCnt.Add(1)
	r.log.Infof("pátio table reloaded with %d pátio(s)", t.Len())
}

// Reloads returns how many times the table was replaced from the watched file.
func (r *Registry) Reloads() int64 {
	return r.reloadCnt.Load()
}

func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
		if r.watcher != nil {
			r.watcher.Close()
		}
	})
}
