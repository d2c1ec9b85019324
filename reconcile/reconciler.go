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

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netboot-orchestrator/netboot/catalog"
	"github.com/netboot-orchestrator/netboot/client/iscsi"
	"github.com/netboot-orchestrator/netboot/client/nats"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/render"
	"github.com/netboot-orchestrator/netboot/store"
	"github.com/netboot-orchestrator/netboot/utils"
)

const (
	defaultRetries       = 3
	defaultRetryInterval = 500 * time.Millisecond
	// queued reconciles of a failing device give up after this long; the
	// safety sweep picks the device up again.
	maxRetryElapsed = time.Hour
	maxRetryDelay   = 5 * time.Minute
)

// Reconciler converges boot artifacts and iSCSI targets with the registry
//
//go:generate ../utils/mockgen.sh
type Reconciler interface {
	// Reconcile rewrites the artifacts of one device and verifies its
	// target binding. Render failures are reported, not returned.
	Reconcile(ctx context.Context, mac string) (*model.ReconcileReport, error)
	Attach(ctx context.Context, mac, imageID string) error
	Detach(ctx context.Context, imageID string) error
	Sweep(ctx context.Context) (*model.SweepReport, error)
	// Check reports drift without touching the registry or any artifact
	Check(ctx context.Context) (*model.SweepReport, error)
	// Repair fixes the drift of one image, or every image when imageID
	// is empty.
	Repair(ctx context.Context, imageID string) (*model.RepairReport, error)
	// Enqueue schedules a background reconcile; an empty mac requests a
	// sweep.
	Enqueue(mac string)
	Run(ctx context.Context) error
}

// Config configures the reconciler
type Config struct {
	TFTPDir       string
	HTTPDir       string
	ImagesDir     string
	Render        render.Options
	Retries       int
	RetryInterval time.Duration
	SweepInterval time.Duration
	Registerer    prometheus.Registerer
	Clock         utils.Clock
}

type reconciler struct {
	store    store.DataStore
	iscsi    iscsi.Client
	bindings *iscsi.Bindings
	catalog  *catalog.Source
	events   nats.Client
	conf     Config
	clock    utils.Clock

	queue   *queue
	locks   sync.Map
	retryMu sync.Mutex
	retries map[string]backoff.BackOff

	reconciles *prometheus.CounterVec
	targetOps  *prometheus.CounterVec
}

// New returns a Reconciler. events may be nats.Discard.
func New(
	ds store.DataStore,
	target iscsi.Client,
	bindings *iscsi.Bindings,
	source *catalog.Source,
	events nats.Client,
	conf Config,
) (Reconciler, error) {
	if conf.Retries <= 0 {
		conf.Retries = defaultRetries
	}
	if conf.RetryInterval <= 0 {
		conf.RetryInterval = defaultRetryInterval
	}
	if events == nil {
		events = nats.Discard
	}
	clock := conf.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}
	r := &reconciler{
		store:    ds,
		iscsi:    target,
		bindings: bindings,
		catalog:  source,
		events:   events,
		conf:     conf,
		clock:    clock,
		queue:    newQueue(),
		retries:  map[string]backoff.BackOff{},
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netboot",
			Name:      "reconcile_total",
			Help:      "Device reconciliations by resulting sync status.",
		}, []string{"status"}),
		targetOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netboot",
			Name:      "target_operations_total",
			Help:      "iSCSI target operations by kind and result.",
		}, []string{"op", "result"}),
	}
	if conf.Registerer != nil {
		for _, c := range []prometheus.Collector{r.reconciles, r.targetOps} {
			if err := conf.Registerer.Register(c); err != nil {
				return nil, errors.Wrap(err, "failed to register reconciler metrics")
			}
		}
	}
	return r, nil
}

func (r *reconciler) lock(key string) func() {
	m, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (r *reconciler) publish(ctx context.Context, ev model.Event) {
	ev.Timestamp = r.clock.Now()
	if err := r.events.PublishEvent(ctx, ev); err != nil {
		log.FromContext(ctx).Warnf("failed to publish %s event: %v", ev.Kind, err)
	}
}

// retry runs fn up to conf.Retries times with exponential backoff.
func (r *reconciler) retry(ctx context.Context, op string, fn func() error) error {
	l := log.FromContext(ctx)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.conf.RetryInterval
	b.MaxInterval = 10 * r.conf.RetryInterval
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return fn()
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.conf.Retries-1)), ctx),
		func(err error, next time.Duration) {
			l.Warnf("%s: attempt %d failed, retrying in %s: %v", op, attempt, next, err)
		})
	result := "ok"
	if err != nil {
		result = "failed"
	}
	r.targetOps.WithLabelValues(op, result).Inc()
	return err
}

func (r *reconciler) scheduleRetry(ctx context.Context, mac string) {
	r.retryMu.Lock()
	b, ok := r.retries[mac]
	if !ok {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = r.conf.RetryInterval
		eb.MaxInterval = maxRetryDelay
		eb.MaxElapsedTime = maxRetryElapsed
		b = eb
		r.retries[mac] = b
	}
	delay := b.NextBackOff()
	if delay == backoff.Stop {
		delete(r.retries, mac)
	}
	r.retryMu.Unlock()

	if delay == backoff.Stop {
		log.FromContext(ctx).Errorf("giving up on reconciling %s until the next sweep", mac)
		return
	}
	time.AfterFunc(delay, func() { r.queue.push(mac) })
}

func (r *reconciler) clearRetry(mac string) {
	r.retryMu.Lock()
	delete(r.retries, mac)
	r.retryMu.Unlock()
}

// Enqueue schedules a background reconcile
func (r *reconciler) Enqueue(mac string) {
	r.queue.push(mac)
}

// Run processes the queue, external requests and the periodic sweep
func (r *reconciler) Run(ctx context.Context) error {
	l := log.FromContext(ctx)
	err := r.events.SubscribeReconcile(ctx, func(req model.ReconcileRequest) {
		if req.MAC == "" {
			r.queue.push(sweepKey)
			return
		}
		mac, err := model.NormalizeMAC(req.MAC)
		if err != nil {
			l.Warnf("ignoring reconcile request: %v", err)
			return
		}
		r.queue.push(mac)
	})
	if err != nil {
		l.Warnf("external reconcile requests disabled: %v", err)
	}

	var sweep <-chan time.Time
	if r.conf.SweepInterval > 0 {
		ticker := time.NewTicker(r.conf.SweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweep:
			r.queue.push(sweepKey)
		case <-r.queue.notify:
			for {
				key, ok := r.queue.pop()
				if !ok {
					break
				}
				r.process(ctx, key)
			}
		}
	}
}

func (r *reconciler) process(ctx context.Context, key string) {
	l := log.FromContext(ctx)
	if key == sweepKey {
		report, err := r.Sweep(ctx)
		if err != nil {
			l.Errorf("sweep failed: %v", err)
			return
		}
		if len(report.Findings) > 0 {
			l.Warnf("sweep found %d drift findings", len(report.Findings))
		}
		return
	}
	if _, err := r.Reconcile(ctx, key); err != nil {
		l.Errorf("reconcile %s failed: %v", key, err)
	}
}
