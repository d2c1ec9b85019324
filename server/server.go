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

package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/mendersoftware/go-lib-micro/config"
	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sys/unix"

	api "github.com/netboot-orchestrator/netboot/api/http"
	"github.com/netboot-orchestrator/netboot/app"
	"github.com/netboot-orchestrator/netboot/catalog"
	"github.com/netboot-orchestrator/netboot/client/iscsi"
	"github.com/netboot-orchestrator/netboot/client/nats"
	dconfig "github.com/netboot-orchestrator/netboot/config"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/reconcile"
	"github.com/netboot-orchestrator/netboot/render"
	"github.com/netboot-orchestrator/netboot/store"
	"github.com/netboot-orchestrator/netboot/store/file"
	"github.com/netboot-orchestrator/netboot/store/mongo"
	"github.com/netboot-orchestrator/netboot/telemetry"
)

// Boot log backends
const (
	BootLogBackendFile  = "file"
	BootLogBackendMongo = "mongo"
)

const (
	bindingsDir              = "targets"
	telemetryRefreshInterval = 5 * time.Second
	shutdownTimeout          = 5 * time.Second
)

func seconds(conf config.Reader, key string) time.Duration {
	return time.Duration(conf.GetInt(key)) * time.Second
}

// RenderOptions returns the rendering settings
func RenderOptions(conf config.Reader) render.Options {
	return render.Options{
		BootServerIP: conf.GetString(dconfig.SettingBootServerIP),
		IQNPrefix:    conf.GetString(dconfig.SettingIQNPrefix),
		BootAPIURL:   conf.GetString(dconfig.SettingBootAPIURL),
	}
}

// Components are the long-lived parts of the service
type Components struct {
	Store      *file.DataStore
	BootLog    store.BootLogStore
	Catalog    *catalog.Source
	Events     nats.Client
	Reconciler reconcile.Reconciler
	Sampler    *telemetry.Sampler
	Registry   *prometheus.Registry
}

// Close releases the stores and the event connection
func (c *Components) Close(ctx context.Context) {
	l := log.FromContext(ctx)
	if c.BootLog != nil {
		if err := c.BootLog.Close(ctx); err != nil {
			l.Errorf("failed to close boot log: %v", err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(ctx); err != nil {
			l.Errorf("failed to close registry: %v", err)
		}
	}
	if c.Events != nil {
		c.Events.Close()
	}
}

// SetupBootLog opens the configured boot log backend
func SetupBootLog(
	ctx context.Context,
	conf config.Reader,
	automigrate bool,
) (store.BootLogStore, error) {
	switch backend := conf.GetString(dconfig.SettingBootLogBackend); backend {
	case BootLogBackendFile:
		bootlog, err := file.NewBootLog(ctx,
			conf.GetString(dconfig.SettingDataDir),
			conf.GetInt(dconfig.SettingBootLogCapacity),
			seconds(conf, dconfig.SettingBootLogFlushInterval),
		)
		if err != nil {
			return nil, err
		}
		return bootlog, nil
	case BootLogBackendMongo:
		bootlog, err := mongo.SetupBootLog(ctx, conf, automigrate)
		if err != nil {
			return nil, err
		}
		return bootlog, nil
	default:
		return nil, errors.Errorf("unknown boot log backend %q", backend)
	}
}

// SetupReconciler opens the registry and builds the reconciler over it.
// events may be nil.
func SetupReconciler(
	ctx context.Context,
	conf config.Reader,
	events nats.Client,
	registerer prometheus.Registerer,
) (*file.DataStore, *catalog.Source, reconcile.Reconciler, error) {
	dataDir := conf.GetString(dconfig.SettingDataDir)
	ds, err := file.NewDataStore(ctx, file.Options{
		Dir: dataDir,
		DefaultKernelSet: model.KernelSet{
			KernelURL:    conf.GetString(dconfig.SettingDefaultKernelURL),
			InitramfsURL: conf.GetString(dconfig.SettingDefaultInitramfsURL),
		},
	})
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to open registry")
	}
	bindings, err := iscsi.NewBindings(filepath.Join(dataDir, bindingsDir))
	if err != nil {
		_ = ds.Close(ctx)
		return nil, nil, nil, err
	}
	target := iscsi.NewClient(iscsi.NewConfig().
		SetPath(conf.GetString(dconfig.SettingTgtadmPath)).
		SetTimeout(seconds(conf, dconfig.SettingISCSITimeout)))
	source := catalog.NewSource(
		conf.GetString(dconfig.SettingCatalogPath),
		conf.GetString(dconfig.SettingInstallersBaseURL),
	)
	r, err := reconcile.New(ds, target, bindings, source, events, reconcile.Config{
		TFTPDir:       conf.GetString(dconfig.SettingTFTPDir),
		HTTPDir:       conf.GetString(dconfig.SettingHTTPDir),
		ImagesDir:     conf.GetString(dconfig.SettingImagesDir),
		Render:        RenderOptions(conf),
		Retries:       conf.GetInt(dconfig.SettingISCSIRetries),
		SweepInterval: seconds(conf, dconfig.SettingReconcileSweepInterval),
		Registerer:    registerer,
	})
	if err != nil {
		_ = ds.Close(ctx)
		return nil, nil, nil, err
	}
	return ds, source, r, nil
}

// Setup builds every component from the configuration
func Setup(ctx context.Context, conf config.Reader, automigrate bool) (*Components, error) {
	l := log.FromContext(ctx)
	c := &Components{Registry: prometheus.NewRegistry()}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.Events = nats.Discard
	if uri := conf.GetString(dconfig.SettingNatsURI); uri != "" {
		events, err := nats.NewClientWithDefaults(uri)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to nats")
		}
		c.Events = events
	} else {
		l.Info("nats_uri not set: change events are not published")
	}

	var err error
	c.Store, c.Catalog, c.Reconciler, err = SetupReconciler(ctx, conf, c.Events, c.Registry)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	if c.BootLog, err = SetupBootLog(ctx, conf, automigrate); err != nil {
		c.Close(ctx)
		return nil, errors.Wrap(err, "failed to open boot log")
	}
	c.Sampler, err = telemetry.NewSampler(telemetry.Config{
		StallThreshold: seconds(conf, dconfig.SettingTelemetryStallThreshold),
		ActiveTimeout:  seconds(conf, dconfig.SettingTelemetryActiveTimeout),
		Registerer:     c.Registry,
	})
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	return c, nil
}

// InitAndRun initializes the server and runs it
func InitAndRun(conf config.Reader, automigrate bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Setup(conf.GetBool(dconfig.SettingDebugLog))
	l := log.FromContext(ctx)

	c, err := Setup(ctx, conf, automigrate)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	netbootApp, err := app.New(c.Store, c.BootLog, c.Reconciler, c.Sampler, c.Catalog, c.Events,
		app.Config{
			NoImagePolicy: app.NoImagePolicy(conf.GetString(dconfig.SettingNoImagePolicy)),
			ImagesDir:     conf.GetString(dconfig.SettingImagesDir),
			Render:        RenderOptions(conf),
			Registerer:    c.Registry,
		})
	if err != nil {
		return err
	}

	api.SetAcceptedOrigins(conf.GetStringSlice(dconfig.SettingAllowedOrigins))
	router, err := api.NewRouter(netbootApp, c.Registry)
	if err != nil {
		l.Fatal(err)
	}
	var listen = conf.GetString(dconfig.SettingListen)
	srv := &http.Server{
		Addr:    listen,
		Handler: router,
	}

	go func() {
		if err := c.Reconciler.Run(ctx); err != nil {
			l.Errorf("reconciler stopped: %v", err)
		}
	}()
	go func() {
		if err := c.Sampler.Run(ctx, telemetryRefreshInterval); err != nil {
			l.Errorf("telemetry sampler stopped: %v", err)
		}
	}()
	// converge whatever changed while the service was down
	c.Reconciler.Enqueue("")

	go func() {
		l.Infof("listening on %s", listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, unix.SIGINT, unix.SIGTERM)
	<-quit

	l.Info("Shutdown Server ...")

	go netbootApp.Shutdown(shutdownTimeout)
	netbootApp.ShutdownDone()

	ctxWithTimeout, cancelShutdown := context.WithTimeout(ctx, shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxWithTimeout); err != nil {
		l.Fatal("Server Shutdown: ", err)
	}
	cancel()

	return nil
}

// Check reports the drift of the data directory against the target
// daemon without changing either
func Check(ctx context.Context, conf config.Reader) (*model.SweepReport, error) {
	ds, _, r, err := SetupReconciler(ctx, conf, nil, nil)
	if err != nil {
		return nil, err
	}
	defer ds.Close(ctx)
	return r.Check(ctx)
}
