// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/store"
)

// BootLogsFile is the boot log file name under the data directory
const BootLogsFile = "boot_logs.json"

// BootLog keeps the most recent boot log entries in a ring buffer and
// flushes it to disk in the background, so appends never wait on I/O.
type BootLog struct {
	path string

	mu      sync.Mutex
	ring    []model.BootLogEntry
	next    int
	size    int
	dirty   bool
	flushMu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

var _ store.BootLogStore = (*BootLog)(nil)

// NewBootLog loads dir/boot_logs.json and starts the flusher when
// flushInterval is positive.
func NewBootLog(
	ctx context.Context,
	dir string,
	capacity int,
	flushInterval time.Duration,
) (*BootLog, error) {
	if capacity <= 0 {
		return nil, errors.New("boot log capacity must be positive")
	}
	b := &BootLog{
		path: filepath.Join(dir, BootLogsFile),
		ring: make([]model.BootLogEntry, capacity),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	data, err := os.ReadFile(b.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to read boot log")
	} else if err == nil {
		var entries []model.BootLogEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			log.FromContext(ctx).Warnf("discarding unreadable boot log: %v", err)
		}
		for _, e := range entries {
			b.push(e)
		}
		b.dirty = false
	}
	if flushInterval > 0 {
		go b.flusher(flushInterval)
	} else {
		close(b.done)
	}
	return b, nil
}

func (b *BootLog) push(e model.BootLogEntry) {
	b.ring[b.next] = e
	b.next = (b.next + 1) % len(b.ring)
	if b.size < len(b.ring) {
		b.size++
	}
	b.dirty = true
}

// entries returns the ring content oldest first; callers hold b.mu.
func (b *BootLog) entries() []model.BootLogEntry {
	out := make([]model.BootLogEntry, 0, b.size)
	start := (b.next - b.size + len(b.ring)) % len(b.ring)
	for i := 0; i < b.size; i++ {
		out = append(out, b.ring[(start+i)%len(b.ring)])
	}
	return out
}

// AppendBootLog adds an entry, evicting the oldest when full
func (b *BootLog) AppendBootLog(ctx context.Context, entry model.BootLogEntry) error {
	b.mu.Lock()
	b.push(entry)
	b.mu.Unlock()
	return nil
}

// ListBootLogs returns the newest entries matching filter
func (b *BootLog) ListBootLogs(
	ctx context.Context,
	filter model.BootLogFilter,
) ([]model.BootLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = model.DefaultBootLogLimit
	}
	b.mu.Lock()
	all := b.entries()
	b.mu.Unlock()

	out := make([]model.BootLogEntry, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if filter.MAC != "" && all[i].MAC != filter.MAC {
			continue
		}
		out = append(out, all[i])
	}
	return out, nil
}

// Flush writes the ring to disk if it changed since the last flush
func (b *BootLog) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if !b.dirty {
		b.mu.Unlock()
		return nil
	}
	all := b.entries()
	b.dirty = false
	b.mu.Unlock()

	data, err := json.Marshal(all)
	if err == nil {
		err = WriteFileAtomic(b.path, data)
	}
	if err != nil {
		b.mu.Lock()
		b.dirty = true
		b.mu.Unlock()
		return errors.Wrap(err, "failed to flush boot log")
	}
	return nil
}

func (b *BootLog) flusher(interval time.Duration) {
	defer close(b.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	l := log.NewEmpty()
	for {
		select {
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				l.Error(err.Error())
			}
		case <-b.stop:
			return
		}
	}
}

// Close stops the flusher and flushes the remaining entries
func (b *BootLog) Close(ctx context.Context) error {
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	<-b.done
	return b.Flush()
}
