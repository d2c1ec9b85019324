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
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natsio "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/netboot-orchestrator/netboot/model"
)

var natsPort int32 = 42069

func NewNATSTestServer(t *testing.T) (URI string) {
	port := atomic.AddInt32(&natsPort, 1)
	opts := &server.Options{
		Port: int(port),
	}
	srv, err := server.NewServer(opts)
	if err != nil {
		panic(err)
	}
	go srv.Start()
	t.Cleanup(srv.Shutdown)

	// Spinlock until go routine is listening
	for i := 0; srv.Addr() == nil && i < 1000; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == nil {
		panic("failed to setup NATS test server")
	}
	uri, err := url.Parse("nats://" + srv.Addr().String())
	if err != nil {
		panic(err)
	}

	return uri.String()
}

func TestNewClientInvalidURI(t *testing.T) {
	_, err := NewClient("bats://localhost")
	assert.Error(t, err)
}

func TestPublishEvent(t *testing.T) {
	t.Parallel()
	uri := NewNATSTestServer(t)
	c, err := NewClientWithDefaults(uri)
	require.NoError(t, err)
	defer c.Close()

	raw, err := natsio.Connect(uri)
	require.NoError(t, err)
	defer raw.Close()
	ch := make(chan *natsio.Msg, 1)
	sub, err := raw.ChanSubscribe(SubjectEventsPrefix+"*", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, raw.Flush())

	err = c.PublishEvent(context.Background(), model.Event{
		Kind:    model.EventImageLinked,
		MAC:     "aa:bb:cc:dd:ee:ff",
		ImageID: "win11",
	})
	require.NoError(t, err)

	select {
	case msg := <-ch:
		assert.Equal(t, "netboot.events.image_linked", msg.Subject)
		var ev model.Event
		require.NoError(t, msgpack.Unmarshal(msg.Data, &ev))
		assert.Equal(t, model.EventImageLinked, ev.Kind)
		assert.Equal(t, "win11", ev.ImageID)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(5 * time.Second):
		assert.FailNow(t, "timeout waiting for event")
	}
}

func TestSubscribeReconcile(t *testing.T) {
	t.Parallel()
	uri := NewNATSTestServer(t)
	c, err := NewClient(uri)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan model.ReconcileRequest, 1)
	require.NoError(t, c.SubscribeReconcile(ctx, func(req model.ReconcileRequest) {
		got <- req
	}))

	raw, err := natsio.Connect(uri)
	require.NoError(t, err)
	defer raw.Close()
	// garbage is dropped, the next request still arrives
	require.NoError(t, raw.Publish(SubjectReconcile, []byte{0xc1}))
	require.NoError(t, c.RequestReconcile(ctx, model.ReconcileRequest{MAC: "aa:bb:cc:dd:ee:ff"}))

	select {
	case req := <-got:
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", req.MAC)
	case <-time.After(5 * time.Second):
		assert.FailNow(t, "timeout waiting for reconcile request")
	}
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Discard.PublishEvent(ctx, model.Event{}))
	assert.NoError(t, Discard.RequestReconcile(ctx, model.ReconcileRequest{}))
	assert.NoError(t, Discard.SubscribeReconcile(ctx, nil))
	Discard.Close()
}
