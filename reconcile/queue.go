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

package reconcile

import "sync"

// sweepKey is queued to request a full sweep
const sweepKey = ""

// queue is a FIFO of device MACs without duplicates
type queue struct {
	mu      sync.Mutex
	pending map[string]bool
	order   []string
	notify  chan struct{}
}

func newQueue() *queue {
	return &queue{
		pending: map[string]bool{},
		notify:  make(chan struct{}, 1),
	}
}

func (q *queue) push(key string) {
	q.mu.Lock()
	if !q.pending[key] {
		q.pending[key] = true
		q.order = append(q.order, key)
	}
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return "", false
	}
	key := q.order[0]
	q.order = q.order[1:]
	delete(q.pending, key)
	return key, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
