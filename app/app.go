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

package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netboot-orchestrator/netboot/catalog"
	"github.com/netboot-orchestrator/netboot/client/nats"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/reconcile"
	"github.com/netboot-orchestrator/netboot/render"
	"github.com/netboot-orchestrator/netboot/store"
	"github.com/netboot-orchestrator/netboot/telemetry"
	"github.com/netboot-orchestrator/netboot/utils"
)

// NoImagePolicy is the check-in action of an enabled device without image
type NoImagePolicy string

// Values for the no-image policy
const (
	NoImageShowMenu    NoImagePolicy = NoImagePolicy(model.BootActionShowMenu)
	NoImageBootDefault NoImagePolicy = NoImagePolicy(model.BootActionBootDefault)
)

// App interface describes app objects
//
//nolint:lll
//go:generate ../utils/mockgen.sh
type App interface {
	HealthCheck(ctx context.Context) error

	CheckIn(ctx context.Context, req model.CheckInRequest) (*model.CheckInResult, error)

	RegisterDevice(ctx context.Context, reg model.DeviceRegistration) (*model.Device, error)
	UpdateDevice(ctx context.Context, mac string, upd model.DeviceUpdate) (*model.Device, error)
	DeleteDevice(ctx context.Context, mac string) error
	GetDevice(ctx context.Context, mac string) (*model.Device, error)
	ListDevices(ctx context.Context) ([]model.Device, error)
	ListUnknownDevices(ctx context.Context) ([]model.UnknownDevice, error)

	CreateImage(ctx context.Context, img model.NewImage) (*model.Image, error)
	GetImage(ctx context.Context, id string) (*model.Image, error)
	ListImages(ctx context.Context) ([]model.Image, error)
	DeleteImage(ctx context.Context, id string) error
	LinkImage(ctx context.Context, id, mac string) error
	UnlinkImage(ctx context.Context, id string) error
	CopyImage(ctx context.Context, id, destID string) (*model.Image, error)

	PutKernelSet(ctx context.Context, ks model.KernelSet) (*model.KernelSet, error)
	SetDefaultKernelSet(ctx context.Context, name string) error
	DeleteKernelSet(ctx context.Context, name string) error
	ListKernelSets(ctx context.Context) ([]model.KernelSet, error)

	RenderBootMenu(ctx context.Context, mac, ip string) (string, error)
	RenderPerMacConfig(ctx context.Context, mac string) (*render.PerMacConfig, error)

	RecordBootEvent(ctx context.Context, ev model.BootEvent) error
	ListBootLogs(ctx context.Context, filter model.BootLogFilter) ([]model.BootLogEntry, error)

	Reconcile(ctx context.Context, mac string) (*model.ReconcileReport, error)
	Sweep(ctx context.Context) (*model.SweepReport, error)
	Repair(ctx context.Context, imageID string) (*model.RepairReport, error)

	RecordCounters(ctx context.Context, sample model.CounterSample) (*model.DeviceRates, error)
	DeviceRates(ctx context.Context, mac string) ([]model.DeviceRates, error)
	SubscribeTelemetry(ctx context.Context) <-chan model.DeviceRates

	Shutdown(timeout time.Duration)
	ShutdownDone()
	RegisterShutdownCancel(context.CancelFunc) uint32
	UnregisterShutdownCancel(uint32)
}

// Config holds the static app settings
type Config struct {
	NoImagePolicy NoImagePolicy
	ImagesDir     string
	Render        render.Options
	Registerer    prometheus.Registerer
	Clock         utils.Clock
}

// app is an app object
type app struct {
	store      store.DataStore
	bootlog    store.BootLogStore
	reconciler reconcile.Reconciler
	sampler    *telemetry.Sampler
	catalog    *catalog.Source
	events     nats.Client
	clock      utils.Clock
	checkins   *prometheus.CounterVec

	shutdownCancels  map[uint32]context.CancelFunc
	shutdownCancelsM *sync.Mutex
	shutdownDone     chan struct{}
	Config
}

// New initializes a new netboot App. events may be nil.
func New(
	ds store.DataStore,
	bootlog store.BootLogStore,
	reconciler reconcile.Reconciler,
	sampler *telemetry.Sampler,
	source *catalog.Source,
	events nats.Client,
	config Config,
) (App, error) {
	if config.NoImagePolicy == "" {
		config.NoImagePolicy = NoImageShowMenu
	}
	switch config.NoImagePolicy {
	case NoImageShowMenu, NoImageBootDefault:
	default:
		return nil, errors.Errorf("invalid no-image policy %q", config.NoImagePolicy)
	}
	if events == nil {
		events = nats.Discard
	}
	clock := config.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}
	a := &app{
		store:      ds,
		bootlog:    bootlog,
		reconciler: reconciler,
		sampler:    sampler,
		catalog:    source,
		events:     events,
		clock:      clock,
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netboot",
			Name:      "checkins_total",
			Help:      "Boot check-ins by returned action.",
		}, []string{"action"}),
		Config:           config,
		shutdownCancels:  make(map[uint32]context.CancelFunc),
		shutdownCancelsM: &sync.Mutex{},
		shutdownDone:     make(chan struct{}),
	}
	if config.Registerer != nil {
		if err := config.Registerer.Register(a.checkins); err != nil {
			return nil, errors.Wrap(err, "failed to register app metrics")
		}
	}
	return a, nil
}

// HealthCheck performs a health check and returns an error if it fails
func (a *app) HealthCheck(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return errors.Wrap(err, "registry")
	}
	if p, ok := a.bootlog.(interface{ Ping(context.Context) error }); ok {
		return errors.Wrap(p.Ping(ctx), "boot log")
	}
	return nil
}

func (a *app) publish(ctx context.Context, ev model.Event) {
	ev.Timestamp = a.clock.Now()
	if err := a.events.PublishEvent(ctx, ev); err != nil {
		log.FromContext(ctx).Warnf("failed to publish %s event: %v", ev.Kind, err)
	}
}

// reconcile converges the artifacts of mac after a committed mutation.
// Failures are left to the reconciler's retry queue.
func (a *app) reconcile(ctx context.Context, mac string) {
	if _, err := a.reconciler.Reconcile(ctx, mac); err != nil {
		log.FromContext(ctx).Errorf("failed to reconcile %s: %v", mac, err)
	}
}

// Reconcile converges one device
func (a *app) Reconcile(ctx context.Context, mac string) (*model.ReconcileReport, error) {
	return a.reconciler.Reconcile(ctx, mac)
}

// Sweep runs drift detection over the whole registry
func (a *app) Sweep(ctx context.Context) (*model.SweepReport, error) {
	return a.reconciler.Sweep(ctx)
}

// Repair repairs the drift of one image, or all images
func (a *app) Repair(ctx context.Context, imageID string) (*model.RepairReport, error) {
	if imageID != "" {
		if err := model.ValidateImageID(imageID); err != nil {
			return nil, err
		}
	}
	return a.reconciler.Repair(ctx, imageID)
}

func (a *app) Shutdown(timeout time.Duration) {
	a.shutdownCancelsM.Lock()
	defer a.shutdownCancelsM.Unlock()
	ticker := time.NewTicker(timeout / time.Duration(len(a.shutdownCancels)+1))
	defer ticker.Stop()
	for _, cancel := range a.shutdownCancels {
		cancel()
		<-ticker.C
	}
	<-ticker.C
	close(a.shutdownDone)
}

func (a *app) ShutdownDone() {
	<-a.shutdownDone
}

var shutdownID uint32

func (a *app) RegisterShutdownCancel(cancel context.CancelFunc) uint32 {
	a.shutdownCancelsM.Lock()
	defer a.shutdownCancelsM.Unlock()
	id := atomic.AddUint32(&shutdownID, 1)
	a.shutdownCancels[id] = cancel
	return id
}

func (a *app) UnregisterShutdownCancel(id uint32) {
	a.shutdownCancelsM.Lock()
	defer a.shutdownCancelsM.Unlock()
	delete(a.shutdownCancels, id)
}
