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

package http

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/mendersoftware/go-lib-micro/rest.utils"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/netboot-orchestrator/netboot/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Websocket subprotocols of the telemetry stream; JSON text frames are
// sent unless the client asks for msgpack.
const (
	SubprotocolJSON    = "json"
	SubprotocolMsgpack = "msgpack"
)

var (
	WebsocketReadBufferSize  = 1024
	WebsocketWriteBufferSize = 1024
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  WebsocketReadBufferSize,
	WriteBufferSize: WebsocketWriteBufferSize,
	Subprotocols:    []string{SubprotocolJSON, SubprotocolMsgpack},
	CheckOrigin:     allowAllOrigins,
}

// StreamTelemetry upgrades GET /telemetry/stream to a websocket carrying
// the current rates of every device followed by every update.
func (h ManagementController) StreamTelemetry(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	l := log.FromContext(ctx)

	snapshot, err := h.app.DeviceRates(ctx, "")
	if err != nil {
		renderError(c, err)
		return
	}

	upgrader := wsUpgrader
	upgrader.Error = func(
		w http.ResponseWriter, r *http.Request, s int, e error) {
		rest.RenderError(c, s, e)
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error(errors.Wrap(err, "unable to upgrade the request to websocket protocol"))
		return
	}

	shutdownID := h.app.RegisterShutdownCancel(cancel)
	defer h.app.UnregisterShutdownCancel(shutdownID)

	updates := h.app.SubscribeTelemetry(ctx)

	// keep reading so that ping/pong and close frames are handled
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	//nolint:errcheck
	telemetryWriter(ctx, conn, snapshot, updates)
}

func encodeRates(conn *websocket.Conn, rates model.DeviceRates) (int, []byte, error) {
	if conn.Subprotocol() == SubprotocolMsgpack {
		b, err := msgpack.Marshal(rates)
		return websocket.BinaryMessage, b, err
	}
	b, err := json.Marshal(rates)
	return websocket.TextMessage, b, err
}

func websocketPing(conn *websocket.Conn) bool {
	pongWaitString := strconv.Itoa(int(pongWait.Seconds()))
	if err := conn.WriteControl(
		websocket.PingMessage,
		[]byte(pongWaitString),
		time.Now().Add(writeWait),
	); err != nil {
		return false
	}
	return true
}

func writerFinalizer(conn *websocket.Conn, e *error, l *log.Logger) {
	err := *e
	code := websocket.CloseNormalClosure
	msg := ""
	if err != nil && !websocket.IsUnexpectedCloseError(errors.Cause(err)) {
		code = websocket.CloseInternalServerErr
		msg = err.Error()
		l.Errorf("telemetry stream closed with error: %s", msg)
	}
	body := make([]byte, len(msg)+2)
	binary.BigEndian.PutUint16(body, uint16(code))
	copy(body[2:], msg)
	_ = conn.WriteControl(websocket.CloseMessage, body, time.Now().Add(writeWait))
	conn.Close()
}

// telemetryWriter is the go-routine writing to the telemetry websocket. It
// sends snapshot, then forwards updates until the channel is closed or ctx
// is done, and periodically pings the connection.
func telemetryWriter(
	ctx context.Context,
	conn *websocket.Conn,
	snapshot []model.DeviceRates,
	updates <-chan model.DeviceRates,
) (err error) {
	l := log.FromContext(ctx)
	defer writerFinalizer(conn, &err, l)

	err = conn.SetReadDeadline(time.Now().Add(pongWait))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	conn.SetPongHandler(func(string) error {
		ticker.Reset(pingPeriod)
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	send := func(rates model.DeviceRates) error {
		typ, b, err := encodeRates(conn, rates)
		if err != nil {
			return errors.Wrap(err, "failed to encode rates")
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(typ, b)
	}
	for _, rates := range snapshot {
		if err = send(rates); err != nil {
			return err
		}
	}
	for {
		select {
		case rates, ok := <-updates:
			if !ok {
				return nil
			}
			if err = send(rates); err != nil {
				return err
			}
		case <-ticker.C:
			if !websocketPing(conn) {
				return errors.New("failed to ping the telemetry stream")
			}
		case <-ctx.Done():
			return nil
		}
	}
}
