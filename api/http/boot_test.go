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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	app_mocks "github.com/netboot-orchestrator/netboot/app/mocks"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/render"
)

const (
	testMAC      = "b8:27:eb:00:00:01"
	testRemoteIP = "192.0.2.10"
)

func serve(t *testing.T, app *app_mocks.App, method, url, body string) *httptest.ResponseRecorder {
	router, err := NewRouter(app, nil)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	req.RemoteAddr = testRemoteIP + ":4321"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	var body map[string]interface{}
	if !assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)) {
		return ""
	}
	msg, _ := body["error"].(string)
	return msg
}

func TestBootCheckIn(t *testing.T) {
	testCases := []struct {
		Name  string
		Query string

		Request model.CheckInRequest
		Result  *model.CheckInResult
		Error   error

		HTTPStatus int
		HTTPError  string
	}{{
		Name:  "ok",
		Query: "?mac=" + testMAC + "&device_type=raspi&ip=10.0.0.20",

		Request: model.CheckInRequest{MAC: testMAC, DeviceType: "raspi", IP: "10.0.0.20"},
		Result: &model.CheckInResult{
			Action:     model.BootActionShowMenu,
			DeviceType: model.DeviceTypeRaspi,
			Message:    model.MessageUnknownDevice,
		},

		HTTPStatus: http.StatusOK,
	}, {
		Name:  "ok, ip from the connection",
		Query: "?mac=" + testMAC,

		Request: model.CheckInRequest{MAC: testMAC, IP: testRemoteIP},
		Result: &model.CheckInResult{
			Action:    model.BootActionBootImage,
			ImageID:   "pi-os",
			ImagePath: "/data/iscsi/images/pi-os.img",
			KernelSet: "default",
		},

		HTTPStatus: http.StatusOK,
	}, {
		Name:  "bad mac",
		Query: "?mac=nope",

		Request: model.CheckInRequest{MAC: "nope", IP: testRemoteIP},
		Error:   model.NewValidationError(errors.New(`mac "nope": invalid MAC address`)),

		HTTPStatus: http.StatusBadRequest,
		HTTPError:  `mac "nope": invalid MAC address`,
	}, {
		Name:  "internal error",
		Query: "?mac=" + testMAC,

		Request: model.CheckInRequest{MAC: testMAC, IP: testRemoteIP},
		Error:   errors.New("journal: disk full"),

		HTTPStatus: http.StatusInternalServerError,
		HTTPError:  ErrInternalError.Error(),
	}}
	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			app := app_mocks.NewApp(t)
			app.On("CheckIn", mock.Anything, tc.Request).Return(tc.Result, tc.Error)

			w := serve(t, app, http.MethodGet, APIURLBootCheckIn+tc.Query, "")
			assert.Equal(t, tc.HTTPStatus, w.Code)
			if tc.HTTPError != "" {
				assert.Equal(t, tc.HTTPError, errorBody(t, w))
				return
			}
			var result model.CheckInResult
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			assert.Equal(t, *tc.Result, result)
		})
	}
}

func TestBootMenu(t *testing.T) {
	app := app_mocks.NewApp(t)
	app.On("RenderBootMenu", mock.Anything, testMAC, testRemoteIP).
		Return("#!ipxe\nsanboot iscsi:10.0.0.1::::iqn:pi-os\n", nil)
	app.On("RenderBootMenu", mock.Anything, "", "10.0.0.9").
		Return("#!ipxe\nmenu\n", nil)

	w := serve(t, app, http.MethodGet, APIURLBootMenu+"?mac="+testMAC, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mimeIPXE, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "#!ipxe\nsanboot"))

	w = serve(t, app, http.MethodGet, APIURLBootMenu+"?ip=10.0.0.9", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#!ipxe\nmenu\n", w.Body.String())
}

func TestBootRaspiFile(t *testing.T) {
	cfg := &render.PerMacConfig{
		Config:  []byte("[all]\nkernel=kernel8.img\n"),
		Cmdline: []byte("ip=dhcp netboot.mode=menu\n"),
	}
	testCases := []struct {
		Name string
		MAC  string
		File string

		Config *render.PerMacConfig
		Error  error

		HTTPStatus int
		Body       string
	}{{
		Name: "config.txt",
		MAC:  testMAC,
		File: RaspiConfigFile,

		Config: cfg,

		HTTPStatus: http.StatusOK,
		Body:       "[all]\nkernel=kernel8.img\n",
	}, {
		Name: "cmdline.txt",
		MAC:  testMAC,
		File: RaspiCmdlineFile,

		Config: cfg,

		HTTPStatus: http.StatusOK,
		Body:       "ip=dhcp netboot.mode=menu\n",
	}, {
		Name: "unknown file",
		MAC:  testMAC,
		File: "start4.elf",

		HTTPStatus: http.StatusNotFound,
	}, {
		Name: "unregistered device",
		MAC:  "b8:27:eb:00:00:02",
		File: RaspiConfigFile,

		Error: errors.Wrap(model.ErrNotFound, "device b8:27:eb:00:00:02"),

		HTTPStatus: http.StatusNotFound,
	}}
	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			app := app_mocks.NewApp(t)
			if tc.Config != nil || tc.Error != nil {
				app.On("RenderPerMacConfig", mock.Anything, tc.MAC).
					Return(tc.Config, tc.Error)
			}
			url := strings.NewReplacer(":mac", tc.MAC, ":file", tc.File).
				Replace(APIURLBootRaspiFile)
			w := serve(t, app, http.MethodGet, url, "")
			assert.Equal(t, tc.HTTPStatus, w.Code)
			if tc.Body != "" {
				assert.Equal(t, tc.Body, w.Body.String())
			}
		})
	}
}

func TestBootLog(t *testing.T) {
	testCases := []struct {
		Name  string
		Query string
		Body  string

		Event model.BootEvent
		Error error

		HTTPStatus int
	}{{
		Name:  "query parameters",
		Query: "?mac=" + testMAC + "&event=menu_loaded&details=chain",

		Event: model.BootEvent{
			MAC: testMAC, Event: "menu_loaded", Details: "chain", IP: testRemoteIP,
		},
		HTTPStatus: http.StatusNoContent,
	}, {
		Name: "json body",
		Body: `{"mac":"` + testMAC + `","event":"install_start","ip":"10.0.0.20"}`,

		Event: model.BootEvent{
			MAC: testMAC, Event: model.BootEventInstallStart, IP: "10.0.0.20",
		},
		HTTPStatus: http.StatusNoContent,
	}, {
		Name:  "invalid event",
		Query: "?mac=" + testMAC,

		Event: model.BootEvent{MAC: testMAC, IP: testRemoteIP},
		Error: model.NewValidationError(errors.New("event: cannot be blank.")),

		HTTPStatus: http.StatusBadRequest,
	}, {
		Name: "malformed body",
		Body: `{"mac":`,

		HTTPStatus: http.StatusBadRequest,
	}}
	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			app := app_mocks.NewApp(t)
			if tc.Event.MAC != "" {
				app.On("RecordBootEvent", mock.Anything, tc.Event).Return(tc.Error)
			}
			w := serve(t, app, http.MethodPost, APIURLBootLog+tc.Query, tc.Body)
			assert.Equal(t, tc.HTTPStatus, w.Code)
		})
	}
}

func TestBootTelemetry(t *testing.T) {
	app := app_mocks.NewApp(t)
	app.On("RecordCounters", mock.Anything, model.CounterSample{
		MAC: testMAC, DiskWrite: 4096,
	}).Return(&model.DeviceRates{
		MAC:       testMAC,
		DiskWrite: model.Rate{Value: 1024, Valid: true},
		Active:    true,
	}, nil)

	w := serve(t, app, http.MethodPost, APIURLBootTelemetry,
		`{"mac":"`+testMAC+`","disk_write_bytes":4096}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var rates model.DeviceRates
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &rates))
	assert.Equal(t, 1024.0, rates.DiskWrite.Value)
	assert.True(t, rates.Active)

	w = serve(t, app, http.MethodPost, APIURLBootTelemetry, `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
