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
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	app_mocks "github.com/netboot-orchestrator/netboot/app/mocks"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/render"
)

func withParams(url string, params ...string) string {
	return strings.NewReplacer(params...).Replace(url)
}

func TestManagement(t *testing.T) {
	enabled := true
	device := &model.Device{
		MAC:        testMAC,
		DeviceType: model.DeviceTypeRaspi,
		Enabled:    true,
	}
	image := &model.Image{
		ID:         "pi-os",
		SizeGB:     8,
		DeviceType: model.DeviceTypeRaspi,
		Status:     model.ImageStatusReady,
	}
	testCases := []struct {
		Name   string
		Method string
		URL    string
		Body   string

		Setup func(app *app_mocks.App)

		HTTPStatus int
		Contains   string
	}{{
		Name:   "list devices, empty",
		Method: http.MethodGet,
		URL:    APIURLManagementDevices,
		Setup: func(app *app_mocks.App) {
			app.On("ListDevices", mock.Anything).Return(nil, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   "[]",
	}, {
		Name:   "register device",
		Method: http.MethodPost,
		URL:    APIURLManagementDevices,
		Body:   `{"mac":"` + testMAC + `","device_type":"raspi","enabled":true}`,
		Setup: func(app *app_mocks.App) {
			app.On("RegisterDevice", mock.Anything, model.DeviceRegistration{
				MAC: testMAC, DeviceType: model.DeviceTypeRaspi, Enabled: &enabled,
			}).Return(device, nil)
		},
		HTTPStatus: http.StatusCreated,
		Contains:   `"mac":"` + testMAC + `"`,
	}, {
		Name:   "register device, conflict",
		Method: http.MethodPost,
		URL:    APIURLManagementDevices,
		Body:   `{"mac":"` + testMAC + `","device_type":"raspi"}`,
		Setup: func(app *app_mocks.App) {
			app.On("RegisterDevice", mock.Anything, mock.AnythingOfType("model.DeviceRegistration")).
				Return(nil, errors.Wrapf(model.ErrConflict, "device %s already exists", testMAC))
		},
		HTTPStatus: http.StatusConflict,
		Contains:   "already exists",
	}, {
		Name:       "register device, malformed body",
		Method:     http.MethodPost,
		URL:        APIURLManagementDevices,
		Body:       `{"mac":1}`,
		HTTPStatus: http.StatusBadRequest,
	}, {
		Name:   "get device, not found",
		Method: http.MethodGet,
		URL:    withParams(APIURLManagementDevice, ":mac", testMAC),
		Setup: func(app *app_mocks.App) {
			app.On("GetDevice", mock.Anything, testMAC).
				Return(nil, errors.Wrapf(model.ErrNotFound, "device %s", testMAC))
		},
		HTTPStatus: http.StatusNotFound,
	}, {
		Name:   "update device, type mismatch",
		Method: http.MethodPatch,
		URL:    withParams(APIURLManagementDevice, ":mac", testMAC),
		Body:   `{"device_type":"x64"}`,
		Setup: func(app *app_mocks.App) {
			x64 := model.DeviceTypeX64
			app.On("UpdateDevice", mock.Anything, testMAC, model.DeviceUpdate{DeviceType: &x64}).
				Return(nil, errors.Wrap(model.ErrTypeMismatch, "device has raspi image pi-os"))
		},
		HTTPStatus: http.StatusConflict,
		Contains:   "device type mismatch",
	}, {
		Name:   "delete device",
		Method: http.MethodDelete,
		URL:    withParams(APIURLManagementDevice, ":mac", testMAC),
		Setup: func(app *app_mocks.App) {
			app.On("DeleteDevice", mock.Anything, testMAC).Return(nil)
		},
		HTTPStatus: http.StatusNoContent,
	}, {
		Name:   "render artifacts",
		Method: http.MethodGet,
		URL:    withParams(APIURLManagementDeviceRender, ":mac", testMAC),
		Setup: func(app *app_mocks.App) {
			app.On("RenderPerMacConfig", mock.Anything, testMAC).Return(&render.PerMacConfig{
				Config:  []byte("kernel=kernel8.img\n"),
				Cmdline: []byte("ip=dhcp\n"),
			}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"cmdline_txt":"ip=dhcp\n"`,
	}, {
		Name:   "list unknown devices",
		Method: http.MethodGet,
		URL:    APIURLManagementUnknownDevices,
		Setup: func(app *app_mocks.App) {
			app.On("ListUnknownDevices", mock.Anything).Return([]model.UnknownDevice{{
				MAC: testMAC, BootCount: 2, Status: model.UnknownDeviceStatusPending,
			}}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"boot_count":2`,
	}, {
		Name:   "create image",
		Method: http.MethodPost,
		URL:    APIURLManagementImages,
		Body:   `{"id":"pi-os","size_gb":8,"device_type":"raspi"}`,
		Setup: func(app *app_mocks.App) {
			app.On("CreateImage", mock.Anything, model.NewImage{
				ID: "pi-os", SizeGB: 8, DeviceType: model.DeviceTypeRaspi,
			}).Return(image, nil)
		},
		HTTPStatus: http.StatusCreated,
		Contains:   `"status":"ready"`,
	}, {
		Name:   "create image, fractional size",
		Method: http.MethodPost,
		URL:    APIURLManagementImages,
		Body:   `{"id":"tiny","size_gb":0.5,"device_type":"raspi"}`,
		Setup: func(app *app_mocks.App) {
			app.On("CreateImage", mock.Anything, model.NewImage{
				ID: "tiny", SizeGB: 0.5, DeviceType: model.DeviceTypeRaspi,
			}).Return(image, nil)
		},
		HTTPStatus: http.StatusCreated,
	}, {
		Name:   "create image, invalid",
		Method: http.MethodPost,
		URL:    APIURLManagementImages,
		Body:   `{"id":"pi-os"}`,
		Setup: func(app *app_mocks.App) {
			app.On("CreateImage", mock.Anything, model.NewImage{ID: "pi-os"}).
				Return(nil, model.NewValidationError(errors.New("size_gb: cannot be blank.")))
		},
		HTTPStatus: http.StatusBadRequest,
		Contains:   "size_gb",
	}, {
		Name:   "get image",
		Method: http.MethodGet,
		URL:    withParams(APIURLManagementImage, ":id", "pi-os"),
		Setup: func(app *app_mocks.App) {
			app.On("GetImage", mock.Anything, "pi-os").Return(image, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"id":"pi-os"`,
	}, {
		Name:   "delete image, assigned",
		Method: http.MethodDelete,
		URL:    withParams(APIURLManagementImage, ":id", "pi-os"),
		Setup: func(app *app_mocks.App) {
			app.On("DeleteImage", mock.Anything, "pi-os").
				Return(errors.Wrap(model.ErrConflict, "image pi-os is assigned"))
		},
		HTTPStatus: http.StatusConflict,
	}, {
		Name:   "link image",
		Method: http.MethodPost,
		URL:    withParams(APIURLManagementImageLink, ":id", "pi-os"),
		Body:   `{"mac":"` + testMAC + `"}`,
		Setup: func(app *app_mocks.App) {
			app.On("LinkImage", mock.Anything, "pi-os", testMAC).Return(nil)
		},
		HTTPStatus: http.StatusNoContent,
	}, {
		Name:   "link image, type mismatch",
		Method: http.MethodPost,
		URL:    withParams(APIURLManagementImageLink, ":id", "win11"),
		Body:   `{"mac":"` + testMAC + `"}`,
		Setup: func(app *app_mocks.App) {
			app.On("LinkImage", mock.Anything, "win11", testMAC).
				Return(errors.Wrap(model.ErrTypeMismatch, "image win11 is x64"))
		},
		HTTPStatus: http.StatusConflict,
		Contains:   "image win11 is x64: device type mismatch",
	}, {
		Name:   "unlink image",
		Method: http.MethodPost,
		URL:    withParams(APIURLManagementImageUnlink, ":id", "pi-os"),
		Setup: func(app *app_mocks.App) {
			app.On("UnlinkImage", mock.Anything, "pi-os").Return(nil)
		},
		HTTPStatus: http.StatusNoContent,
	}, {
		Name:   "copy image",
		Method: http.MethodPost,
		URL:    withParams(APIURLManagementImageCopy, ":id", "pi-os"),
		Body:   `{"id":"pi-os-2"}`,
		Setup: func(app *app_mocks.App) {
			app.On("CopyImage", mock.Anything, "pi-os", "pi-os-2").
				Return(&model.Image{ID: "pi-os-2", Status: model.ImageStatusReady}, nil)
		},
		HTTPStatus: http.StatusCreated,
		Contains:   `"id":"pi-os-2"`,
	}, {
		Name:   "put kernel set",
		Method: http.MethodPut,
		URL:    withParams(APIURLManagementKernelSet, ":name", "rt"),
		Body:   `{"kernel_url":"http://boot/vmlinuz-rt"}`,
		Setup: func(app *app_mocks.App) {
			ks := model.KernelSet{Name: "rt", KernelURL: "http://boot/vmlinuz-rt"}
			app.On("PutKernelSet", mock.Anything, ks).Return(&ks, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"name":"rt"`,
	}, {
		Name:   "set default kernel set",
		Method: http.MethodPut,
		URL:    withParams(APIURLManagementKernelSetDefault, ":name", "rt"),
		Setup: func(app *app_mocks.App) {
			app.On("SetDefaultKernelSet", mock.Anything, "rt").Return(nil)
		},
		HTTPStatus: http.StatusNoContent,
	}, {
		Name:   "delete default kernel set",
		Method: http.MethodDelete,
		URL:    withParams(APIURLManagementKernelSet, ":name", "default"),
		Setup: func(app *app_mocks.App) {
			app.On("DeleteKernelSet", mock.Anything, "default").
				Return(errors.Wrap(model.ErrConflict, "kernel set default is the default"))
		},
		HTTPStatus: http.StatusConflict,
	}, {
		Name:   "list kernel sets",
		Method: http.MethodGet,
		URL:    APIURLManagementKernelSets,
		Setup: func(app *app_mocks.App) {
			app.On("ListKernelSets", mock.Anything).Return([]model.KernelSet{{
				Name: model.DefaultKernelSetName, IsDefault: true,
			}}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"is_default":true`,
	}, {
		Name:   "list boot logs",
		Method: http.MethodGet,
		URL:    APIURLManagementBootLogs + "?mac=" + testMAC + "&limit=5",
		Setup: func(app *app_mocks.App) {
			app.On("ListBootLogs", mock.Anything, model.BootLogFilter{MAC: testMAC, Limit: 5}).
				Return([]model.BootLogEntry{{MAC: testMAC, Event: model.BootEventCheckIn}}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"event":"check-in"`,
	}, {
		Name:       "list boot logs, bad limit",
		Method:     http.MethodGet,
		URL:        APIURLManagementBootLogs + "?limit=-1",
		HTTPStatus: http.StatusBadRequest,
	}, {
		Name:   "reconcile",
		Method: http.MethodPost,
		URL:    withParams(APIURLManagementReconcile, ":mac", testMAC),
		Setup: func(app *app_mocks.App) {
			app.On("Reconcile", mock.Anything, testMAC).Return(&model.ReconcileReport{
				MAC: testMAC, Status: model.SyncStatusSynced,
			}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"sync_status":"synced"`,
	}, {
		Name:   "sweep",
		Method: http.MethodPost,
		URL:    APIURLManagementSweep,
		Setup: func(app *app_mocks.App) {
			app.On("Sweep", mock.Anything).Return(&model.SweepReport{
				Devices:  1,
				Findings: []model.DriftFinding{{ImageID: "pi-os", Reason: model.DriftMissingTarget}},
			}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   model.DriftMissingTarget,
	}, {
		Name:   "repair one image",
		Method: http.MethodPost,
		URL:    APIURLManagementRepair + "?image_id=pi-os",
		Setup: func(app *app_mocks.App) {
			app.On("Repair", mock.Anything, "pi-os").Return(&model.RepairReport{
				Repaired:  []model.DriftFinding{},
				Remaining: []model.DriftFinding{},
			}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"remaining":[]`,
	}, {
		Name:   "repair, target daemon down",
		Method: http.MethodPost,
		URL:    APIURLManagementRepair,
		Setup: func(app *app_mocks.App) {
			app.On("Repair", mock.Anything, "").
				Return(nil, errors.New("failed to list targets: exit status 107"))
		},
		HTTPStatus: http.StatusInternalServerError,
		Contains:   ErrInternalError.Error(),
	}, {
		Name:   "telemetry rates",
		Method: http.MethodGet,
		URL:    APIURLManagementTelemetry,
		Setup: func(app *app_mocks.App) {
			app.On("DeviceRates", mock.Anything, "").
				Return([]model.DeviceRates{{MAC: testMAC, Stalled: true}}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"stalled":true`,
	}, {
		Name:   "telemetry rates of a device",
		Method: http.MethodGet,
		URL:    withParams(APIURLManagementTelemetryDevice, ":mac", testMAC),
		Setup: func(app *app_mocks.App) {
			app.On("DeviceRates", mock.Anything, testMAC).
				Return([]model.DeviceRates{{MAC: testMAC, Active: true}}, nil)
		},
		HTTPStatus: http.StatusOK,
		Contains:   `"active":true`,
	}}
	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			app := app_mocks.NewApp(t)
			if tc.Setup != nil {
				tc.Setup(app)
			}
			w := serve(t, app, tc.Method, tc.URL, tc.Body)
			assert.Equal(t, tc.HTTPStatus, w.Code)
			if tc.Contains != "" {
				assert.Contains(t, w.Body.String(), tc.Contains)
			}
			if w.Code >= 400 {
				assert.NotEmpty(t, errorBody(t, w))
			} else if w.Code != http.StatusNoContent {
				assert.True(t, json.Valid(w.Body.Bytes()))
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	testCases := []struct {
		Name  string
		Error error
		Code  int
	}{
		{Name: "not found", Error: errors.Wrap(model.ErrNotFound, "image x"), Code: 404},
		{Name: "conflict", Error: errors.Wrap(model.ErrConflict, "image x"), Code: 409},
		{Name: "type mismatch", Error: model.ErrTypeMismatch, Code: 409},
		{Name: "validation", Error: model.NewValidationError(errors.New("mac")), Code: 400},
		{Name: "render failure", Error: model.ErrRenderFailure, Code: 500},
		{Name: "other", Error: errors.New("boom"), Code: 500},
	}
	for i := range testCases {
		tc := testCases[i]
		t.Run(tc.Name, func(t *testing.T) {
			assert.Equal(t, tc.Code, errorStatus(tc.Error))
		})
	}
}
