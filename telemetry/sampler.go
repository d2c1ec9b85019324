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

// Package telemetry turns cumulative counter snapshots reported by
// installing devices into rates and flags install sessions that stopped
// making progress.
package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/utils"
)

const (
	defaultStallThreshold = 5 * time.Minute
	defaultActiveTimeout  = time.Hour
	subscriberBuffer      = 16
)

// Session is the install session state of one device
type Session struct {
	MAC          string
	Begun        time.Time
	Ended        time.Time
	LastSample   time.Time
	LastProgress time.Time
}

// InSession reports whether the session was begun and not ended since
func (s Session) InSession() bool {
	return !s.Begun.IsZero() && !s.Ended.After(s.Begun)
}

// ActivePredicate decides whether a session counts as an active install
type ActivePredicate func(s Session, now time.Time) bool

// ActiveWithin returns the default predicate: the session was begun and
// the last sample is not older than timeout.
func ActiveWithin(timeout time.Duration) ActivePredicate {
	return func(s Session, now time.Time) bool {
		return s.InSession() && !s.LastSample.IsZero() && now.Sub(s.LastSample) <= timeout
	}
}

// Config configures a Sampler
type Config struct {
	StallThreshold time.Duration
	ActiveTimeout  time.Duration
	// Active overrides ActiveWithin(ActiveTimeout)
	Active     ActivePredicate
	Clock      utils.Clock
	Registerer prometheus.Registerer
}

type device struct {
	prev    *model.CounterSample
	last    *model.CounterSample
	session Session
	rates   model.DeviceRates
}

// Sampler keeps the last two samples per device
type Sampler struct {
	conf  Config
	clock utils.Clock

	mu      sync.Mutex
	devices map[string]*device
	subs    map[chan model.DeviceRates]struct{}

	rate    *prometheus.GaugeVec
	stalled *prometheus.GaugeVec
}

// NewSampler returns a Sampler; conf.Registerer may be nil
func NewSampler(conf Config) (*Sampler, error) {
	if conf.StallThreshold <= 0 {
		conf.StallThreshold = defaultStallThreshold
	}
	if conf.ActiveTimeout <= 0 {
		conf.ActiveTimeout = defaultActiveTimeout
	}
	if conf.Active == nil {
		conf.Active = ActiveWithin(conf.ActiveTimeout)
	}
	clock := conf.Clock
	if clock == nil {
		clock = utils.RealClock{}
	}
	s := &Sampler{
		conf:    conf,
		clock:   clock,
		devices: map[string]*device{},
		subs:    map[chan model.DeviceRates]struct{}{},
		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netboot",
			Subsystem: "install",
			Name:      "bytes_per_second",
			Help:      "Latest per-device counter rates; absent when unavailable.",
		}, []string{"mac", "counter"}),
		stalled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netboot",
			Subsystem: "install",
			Name:      "stalled",
			Help:      "1 when an active install session made no progress within the threshold.",
		}, []string{"mac"}),
	}
	if conf.Registerer != nil {
		for _, c := range []prometheus.Collector{s.rate, s.stalled} {
			if err := conf.Registerer.Register(c); err != nil {
				return nil, errors.Wrap(err, "failed to register telemetry metrics")
			}
		}
	}
	return s, nil
}

// ComputeRate returns (cur - prev) / elapsed. A counter that went
// backwards or a non-positive elapsed time gives an invalid rate.
func ComputeRate(prev, cur uint64, elapsed time.Duration) model.Rate {
	if cur < prev || elapsed <= 0 {
		return model.Rate{}
	}
	return model.Rate{
		Value: float64(cur-prev) / elapsed.Seconds(),
		Valid: true,
	}
}

func progressed(prev, cur *model.CounterSample) bool {
	return cur.DiskRead > prev.DiskRead || cur.DiskWrite > prev.DiskWrite ||
		cur.NetRx > prev.NetRx || cur.NetTx > prev.NetTx ||
		cur.HTTPBytes > prev.HTTPBytes
}

func (s *Sampler) get(mac string) *device {
	d, ok := s.devices[mac]
	if !ok {
		d = &device{rates: model.DeviceRates{MAC: mac}}
		s.devices[mac] = d
	}
	return d
}

// RecordCounters stores a sample and returns the resulting rates. A zero
// sample timestamp is replaced with the current time.
func (s *Sampler) RecordCounters(
	ctx context.Context,
	sample model.CounterSample,
) (model.DeviceRates, error) {
	if err := sample.Validate(); err != nil {
		return model.DeviceRates{}, model.NewValidationError(err)
	}
	mac, err := model.NormalizeMAC(sample.MAC)
	if err != nil {
		return model.DeviceRates{}, err
	}
	sample.MAC = mac
	now := s.clock.Now()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}

	s.mu.Lock()
	d := s.get(mac)
	d.prev, d.last = d.last, &sample
	d.session.MAC = mac
	d.session.LastSample = sample.Timestamp
	if d.prev == nil {
		d.rates = model.DeviceRates{MAC: mac}
		if d.session.LastProgress.IsZero() {
			d.session.LastProgress = sample.Timestamp
		}
	} else {
		elapsed := sample.Timestamp.Sub(d.prev.Timestamp)
		d.rates.DiskRead = ComputeRate(d.prev.DiskRead, sample.DiskRead, elapsed)
		d.rates.DiskWrite = ComputeRate(d.prev.DiskWrite, sample.DiskWrite, elapsed)
		d.rates.NetRx = ComputeRate(d.prev.NetRx, sample.NetRx, elapsed)
		d.rates.NetTx = ComputeRate(d.prev.NetTx, sample.NetTx, elapsed)
		d.rates.HTTP = ComputeRate(d.prev.HTTPBytes, sample.HTTPBytes, elapsed)
		if progressed(d.prev, &sample) {
			d.session.LastProgress = sample.Timestamp
		}
	}
	d.rates.At = sample.Timestamp
	rates := s.evaluate(d, now)
	s.mu.Unlock()

	if rates.Stalled {
		log.FromContext(ctx).WithFields(logrus.Fields{
			"mac":           mac,
			"last_progress": rates.LastProgress,
		}).Warn("install session stalled")
	}
	s.broadcast(rates)
	return rates, nil
}

// evaluate refreshes the active and stalled flags and the gauges; the
// caller holds s.mu.
func (s *Sampler) evaluate(d *device, now time.Time) model.DeviceRates {
	d.rates.Active = s.conf.Active(d.session, now)
	d.rates.LastProgress = d.session.LastProgress
	d.rates.Stalled = d.rates.Active &&
		now.Sub(d.session.LastProgress) > s.conf.StallThreshold

	mac := d.rates.MAC
	for counter, r := range map[string]model.Rate{
		"disk_read":  d.rates.DiskRead,
		"disk_write": d.rates.DiskWrite,
		"net_rx":     d.rates.NetRx,
		"net_tx":     d.rates.NetTx,
		"http":       d.rates.HTTP,
	} {
		if r.Valid {
			s.rate.WithLabelValues(mac, counter).Set(r.Value)
		} else {
			s.rate.DeleteLabelValues(mac, counter)
		}
	}
	stalled := 0.0
	if d.rates.Stalled {
		stalled = 1
	}
	s.stalled.WithLabelValues(mac).Set(stalled)
	return d.rates
}

// BeginSession starts an install session; progress is measured from now
func (s *Sampler) BeginSession(mac string) {
	now := s.clock.Now()
	s.mu.Lock()
	d := s.get(mac)
	d.session = Session{MAC: mac, Begun: now, LastProgress: now}
	d.prev, d.last = nil, nil
	d.rates = model.DeviceRates{MAC: mac}
	s.evaluate(d, now)
	s.mu.Unlock()
}

// EndSession ends the install session of a device
func (s *Sampler) EndSession(mac string) {
	now := s.clock.Now()
	s.mu.Lock()
	d, ok := s.devices[mac]
	var rates model.DeviceRates
	if ok {
		d.session.Ended = now
		rates = s.evaluate(d, now)
	}
	s.mu.Unlock()
	if ok {
		s.broadcast(rates)
	}
}

// Rates returns the rates of a device with the flags evaluated now
func (s *Sampler) Rates(mac string) (model.DeviceRates, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[mac]
	if !ok {
		return model.DeviceRates{}, false
	}
	return s.evaluate(d, s.clock.Now()), true
}

// All returns the rates of every known device, sorted by MAC
func (s *Sampler) All() []model.DeviceRates {
	s.mu.Lock()
	now := s.clock.Now()
	out := make([]model.DeviceRates, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, s.evaluate(d, now))
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out
}

// Subscribe returns a channel receiving every rate update until ctx is
// done. Slow subscribers miss updates.
func (s *Sampler) Subscribe(ctx context.Context) <-chan model.DeviceRates {
	ch := make(chan model.DeviceRates, subscriberBuffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *Sampler) broadcast(rates model.DeviceRates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- rates:
		default:
		}
	}
}

// Run re-evaluates stall flags every interval and pushes devices whose
// stalled flag changed to subscribers.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, rates := range s.refresh() {
				s.broadcast(rates)
			}
		}
	}
}

func (s *Sampler) refresh() []model.DeviceRates {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var changed []model.DeviceRates
	for _, d := range s.devices {
		before := d.rates.Stalled
		if rates := s.evaluate(d, now); rates.Stalled != before {
			changed = append(changed, rates)
		}
	}
	return changed
}
