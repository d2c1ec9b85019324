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

	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
)

var errTelemetryDisabled = errors.New("telemetry is disabled")

// RecordCounters records a counter snapshot and returns the new rates
func (a *app) RecordCounters(
	ctx context.Context,
	sample model.CounterSample,
) (*model.DeviceRates, error) {
	if a.sampler == nil {
		return nil, errTelemetryDisabled
	}
	rates, err := a.sampler.RecordCounters(ctx, sample)
	if err != nil {
		return nil, err
	}
	return &rates, nil
}

// DeviceRates returns the rates of one device, or of all devices when mac
// is empty.
func (a *app) DeviceRates(ctx context.Context, mac string) ([]model.DeviceRates, error) {
	if a.sampler == nil {
		return nil, errTelemetryDisabled
	}
	if mac == "" {
		return a.sampler.All(), nil
	}
	mac, err := model.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	rates, ok := a.sampler.Rates(mac)
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "no telemetry for %s", mac)
	}
	return []model.DeviceRates{rates}, nil
}

// SubscribeTelemetry streams rate updates until ctx is done
func (a *app) SubscribeTelemetry(ctx context.Context) <-chan model.DeviceRates {
	if a.sampler == nil {
		ch := make(chan model.DeviceRates)
		go func() {
			<-ctx.Done()
			close(ch)
		}()
		return ch
	}
	return a.sampler.Subscribe(ctx)
}
