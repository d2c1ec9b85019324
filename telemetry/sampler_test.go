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

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/utils"
)

const testMAC = "52:54:00:12:34:56"

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestComputeRate(t *testing.T) {
	testCases := []struct {
		Name string

		Prev, Cur uint64
		Elapsed   time.Duration

		Rate model.Rate
	}{{
		Name:    "ok",
		Prev:    1000,
		Cur:     3000,
		Elapsed: 2 * time.Second,
		Rate:    model.Rate{Value: 1000, Valid: true},
	}, {
		Name:    "idle",
		Prev:    1000,
		Cur:     1000,
		Elapsed: time.Second,
		Rate:    model.Rate{Value: 0, Valid: true},
	}, {
		Name:    "counter reset",
		Prev:    1000,
		Cur:     10,
		Elapsed: time.Second,
	}, {
		Name:    "zero elapsed",
		Prev:    1000,
		Cur:     2000,
		Elapsed: 0,
	}, {
		Name:    "negative elapsed",
		Prev:    1000,
		Cur:     2000,
		Elapsed: -time.Second,
	}}
	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Rate, ComputeRate(tc.Prev, tc.Cur, tc.Elapsed))
		})
	}
}

func newSampler(t *testing.T, clock *utils.ManualClock) (*Sampler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	s, err := NewSampler(Config{
		StallThreshold: time.Minute,
		ActiveTimeout:  10 * time.Minute,
		Clock:          clock,
		Registerer:     reg,
	})
	require.NoError(t, err)
	return s, reg
}

func TestRecordCounters(t *testing.T) {
	ctx := context.Background()
	clock := utils.NewManualClock(t0)
	s, _ := newSampler(t, clock)

	rates, err := s.RecordCounters(ctx, model.CounterSample{
		MAC: "52-54-00-12-34-56", DiskWrite: 100, NetRx: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, testMAC, rates.MAC)
	assert.False(t, rates.DiskWrite.Valid)

	clock.Advance(10 * time.Second)
	rates, err = s.RecordCounters(ctx, model.CounterSample{
		MAC: testMAC, DiskWrite: 2100, NetRx: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, model.Rate{Value: 200, Valid: true}, rates.DiskWrite)
	assert.Equal(t, model.Rate{Value: 0, Valid: true}, rates.DiskRead)
	assert.False(t, rates.NetRx.Valid, "counter went backwards")
	assert.Equal(t, t0.Add(10*time.Second), rates.At)
	assert.False(t, rates.Active, "no install session")

	got, ok := s.Rates(testMAC)
	assert.True(t, ok)
	assert.Equal(t, rates, got)
	_, ok = s.Rates("00:00:00:00:00:01")
	assert.False(t, ok)
}

func TestRecordCountersExplicitTimestamps(t *testing.T) {
	ctx := context.Background()
	s, _ := newSampler(t, utils.NewManualClock(t0))

	_, err := s.RecordCounters(ctx, model.CounterSample{
		MAC: testMAC, Timestamp: t0, HTTPBytes: 0,
	})
	require.NoError(t, err)
	rates, err := s.RecordCounters(ctx, model.CounterSample{
		MAC: testMAC, Timestamp: t0, HTTPBytes: 4096,
	})
	require.NoError(t, err)
	assert.False(t, rates.HTTP.Valid, "same timestamp")
}

func TestRecordCountersInvalid(t *testing.T) {
	s, _ := newSampler(t, utils.NewManualClock(t0))
	_, err := s.RecordCounters(context.Background(), model.CounterSample{})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = s.RecordCounters(context.Background(), model.CounterSample{MAC: "bogus"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestStallDetection(t *testing.T) {
	ctx := context.Background()
	clock := utils.NewManualClock(t0)
	s, reg := newSampler(t, clock)

	s.BeginSession(testMAC)
	rates, err := s.RecordCounters(ctx, model.CounterSample{MAC: testMAC, DiskWrite: 100})
	require.NoError(t, err)
	assert.True(t, rates.Active)
	assert.False(t, rates.Stalled)

	clock.Advance(30 * time.Second)
	rates, _ = s.RecordCounters(ctx, model.CounterSample{MAC: testMAC, DiskWrite: 500})
	assert.False(t, rates.Stalled)
	assert.Equal(t, t0.Add(30*time.Second), rates.LastProgress)

	// no progress for longer than the threshold
	clock.Advance(45 * time.Second)
	_, _ = s.RecordCounters(ctx, model.CounterSample{MAC: testMAC, DiskWrite: 500})
	clock.Advance(45 * time.Second)
	rates, _ = s.RecordCounters(ctx, model.CounterSample{MAC: testMAC, DiskWrite: 500})
	assert.True(t, rates.Active)
	assert.True(t, rates.Stalled)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.stalled.WithLabelValues(testMAC)))

	n, err := testutil.GatherAndCount(reg, "netboot_install_bytes_per_second")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// progress resumes
	clock.Advance(time.Second)
	rates, _ = s.RecordCounters(ctx, model.CounterSample{MAC: testMAC, DiskWrite: 900})
	assert.False(t, rates.Stalled)

	// ended sessions are never stalled
	s.EndSession(testMAC)
	clock.Advance(time.Hour)
	rates, _ = s.Rates(testMAC)
	assert.False(t, rates.Active)
	assert.False(t, rates.Stalled)
}

func TestActiveTimeout(t *testing.T) {
	ctx := context.Background()
	clock := utils.NewManualClock(t0)
	s, _ := newSampler(t, clock)

	s.BeginSession(testMAC)
	_, _ = s.RecordCounters(ctx, model.CounterSample{MAC: testMAC})
	clock.Advance(11 * time.Minute)
	rates, _ := s.Rates(testMAC)
	assert.False(t, rates.Active)
	assert.False(t, rates.Stalled)
}

func TestCustomActivePredicate(t *testing.T) {
	clock := utils.NewManualClock(t0)
	s, err := NewSampler(Config{
		StallThreshold: time.Minute,
		Clock:          clock,
		Active:         func(Session, time.Time) bool { return true },
	})
	require.NoError(t, err)

	_, _ = s.RecordCounters(context.Background(), model.CounterSample{MAC: testMAC})
	clock.Advance(2 * time.Minute)
	rates, _ := s.Rates(testMAC)
	assert.True(t, rates.Stalled)
}

func TestSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := newSampler(t, utils.NewManualClock(t0))

	ch := s.Subscribe(ctx)
	_, err := s.RecordCounters(context.Background(), model.CounterSample{MAC: testMAC})
	require.NoError(t, err)

	select {
	case rates := <-ch:
		assert.Equal(t, testMAC, rates.MAC)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestRefresh(t *testing.T) {
	clock := utils.NewManualClock(t0)
	s, _ := newSampler(t, clock)

	s.BeginSession(testMAC)
	_, _ = s.RecordCounters(context.Background(), model.CounterSample{MAC: testMAC})
	assert.Empty(t, s.refresh())

	clock.Advance(2 * time.Minute)
	changed := s.refresh()
	require.Len(t, changed, 1)
	assert.True(t, changed[0].Stalled)
	assert.Empty(t, s.refresh())
	assert.Len(t, s.All(), 1)
}
