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

package nats

import (
	"context"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	natsio "github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/netboot-orchestrator/netboot/model"
)

const (
	// Set reconnect buffer size in bytes (10 MB)
	reconnectBufSize = 10 * 1024 * 1024
	// Set reconnect interval to 1 second
	reconnectWaitTime = 1 * time.Second

	// SubjectReconcile receives external reconcile requests
	SubjectReconcile = "netboot.reconcile"
	// SubjectEventsPrefix prefixes the change event subjects
	SubjectEventsPrefix = "netboot.events."
)

// EventSubject returns the subject events of the given kind are published on
func EventSubject(kind model.EventKind) string {
	return SubjectEventsPrefix + string(kind)
}

// Client publishes change events and carries reconcile requests
//
//go:generate ../../utils/mockgen.sh
type Client interface {
	PublishEvent(ctx context.Context, ev model.Event) error
	RequestReconcile(ctx context.Context, req model.ReconcileRequest) error
	// SubscribeReconcile delivers reconcile requests to handler until ctx
	// is cancelled.
	SubscribeReconcile(ctx context.Context, handler func(model.ReconcileRequest)) error
	Close()
}

// NewClient returns a new nats client
func NewClient(url string, opts ...natsio.Option) (Client, error) {
	natsClient, err := natsio.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &client{
		nats: natsClient,
	}, nil
}

// NewClientWithDefaults returns a new nats client with default options
func NewClientWithDefaults(url string) (Client, error) {
	ctx := context.Background()
	l := log.FromContext(ctx)

	natsClient, err := NewClient(url,
		func(o *natsio.Options) error {
			o.AllowReconnect = true
			o.MaxReconnect = -1
			o.ReconnectBufSize = reconnectBufSize
			o.ReconnectWait = reconnectWaitTime
			o.RetryOnFailedConnect = true
			o.ClosedCB = func(_ *natsio.Conn) {
				l.Info("nats client closed the connection")
			}
			o.DisconnectedErrCB = func(_ *natsio.Conn, e error) {
				if e != nil {
					l.Warnf("nats client disconnected, err: %v", e)
				}
			}
			o.ReconnectedCB = func(_ *natsio.Conn) {
				l.Warn("nats client reconnected")
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return natsClient, nil
}

type client struct {
	nats *natsio.Conn
}

func (c *client) PublishEvent(ctx context.Context, ev model.Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := msgpack.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to encode event")
	}
	return errors.Wrap(c.nats.Publish(EventSubject(ev.Kind), data),
		"failed to publish event")
}

func (c *client) RequestReconcile(ctx context.Context, req model.ReconcileRequest) error {
	data, err := msgpack.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to encode reconcile request")
	}
	return errors.Wrap(c.nats.Publish(SubjectReconcile, data),
		"failed to publish reconcile request")
}

func (c *client) SubscribeReconcile(
	ctx context.Context,
	handler func(model.ReconcileRequest),
) error {
	ch := make(chan *natsio.Msg, 64)
	sub, err := c.nats.ChanSubscribe(SubjectReconcile, ch)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to reconcile requests")
	}
	go func() {
		l := log.FromContext(ctx)
		defer func() {
			if err := sub.Unsubscribe(); err != nil {
				l.Warnf("failed to unsubscribe: %v", err)
			}
		}()
		for {
			select {
			case msg := <-ch:
				var req model.ReconcileRequest
				if err := msgpack.Unmarshal(msg.Data, &req); err != nil {
					l.Warnf("dropping malformed reconcile request: %v", err)
					continue
				}
				handler(req)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (c *client) Close() {
	c.nats.Close()
}

type discard struct{}

// Discard is a Client that drops events and never receives requests
var Discard Client = discard{}

func (discard) PublishEvent(context.Context, model.Event) error { return nil }

func (discard) RequestReconcile(context.Context, model.ReconcileRequest) error { return nil }

func (discard) SubscribeReconcile(context.Context, func(model.ReconcileRequest)) error {
	return nil
}

func (discard) Close() {}
