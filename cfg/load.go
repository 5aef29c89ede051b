/*
Copyright 2023, 2024 Dima Krasner
Copyright 2022 Omar Polo

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cfg

import (
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// proxyTableReloadDelay debounces bursts of writes to the proxy table
// file into a single reload.
const proxyTableReloadDelay = 5 * time.Second

func loadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var t Table
	if err := json.NewDecoder(f).Decode(&t); err != nil {
		return nil, err
	}

	return t, nil
}

// Watcher holds a live proxy Table and keeps it in sync with its
// backing JSON file, reloading and atomically swapping it in whenever
// the file changes. A reload replaces the table wholesale between
// requests; in-flight requests keep the snapshot they matched
// against.
type Watcher struct {
	table atomic.Pointer[Table]

	wg sync.WaitGroup
	w  *fsnotify.Watcher
}

// Watch loads the proxy table at path and starts watching it for changes.
func Watch(log *slog.Logger, path string) (*Watcher, error) {
	t, err := loadTable(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	absPath := filepath.Join(dir, filepath.Base(path))

	cw := &Watcher{w: w}
	cw.table.Store(&t)

	timer := time.NewTimer(math.MaxInt64)
	timer.Stop()

	cw.wg.Add(1)
	go func() {
		defer cw.wg.Done()

		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					timer.Stop()
					return
				}

				if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && event.Name == absPath {
					timer.Reset(proxyTableReloadDelay)
				}

			case <-timer.C:
				newTable, err := loadTable(path)
				if err != nil {
					log.Warn("Failed to reload proxy table", "path", path, "error", err)
					continue
				}

				cw.table.Store(&newTable)
				log.Info("Reloaded proxy table", "path", path, "proxies", len(newTable))
			}
		}
	}()

	return cw, nil
}

// NewStaticTable wraps an already-loaded Table in a Watcher that never
// reloads, for callers (and tests) that have no backing file to watch.
func NewStaticTable(t Table) *Watcher {
	cw := &Watcher{}
	cw.table.Store(&t)
	return cw
}

// Table returns the currently active proxy table.
func (w *Watcher) Table() Table {
	return *w.table.Load()
}

// Store replaces the active table wholesale. Used by the worker IPC
// path, which rebuilds the table from individual entries instead of a
// backing file.
func (w *Watcher) Store(t Table) {
	w.table.Store(&t)
}

// Close stops watching the backing file, if any.
func (w *Watcher) Close() error {
	if w.w == nil {
		return nil
	}
	err := w.w.Close()
	w.wg.Wait()
	return err
}
