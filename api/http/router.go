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
	"github.com/gin-gonic/gin"
	"github.com/mendersoftware/go-lib-micro/accesslog"
	"github.com/mendersoftware/go-lib-micro/requestid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netboot-orchestrator/netboot/app"
)

// API URL used by the HTTP router
const (
	APIURLBoot       = "/api/boot/v1"
	APIURLInternal   = "/api/internal/v1/netboot"
	APIURLManagement = "/api/management/v1/netboot"

	APIURLBootCheckIn   = APIURLBoot + "/check-in"
	APIURLBootMenu      = APIURLBoot + "/ipxe/menu"
	APIURLBootRaspiFile = APIURLBoot + "/raspi/:mac/:file"
	APIURLBootLog       = APIURLBoot + "/log"
	APIURLBootTelemetry = APIURLBoot + "/telemetry"

	APIURLInternalAlive   = APIURLInternal + "/alive"
	APIURLInternalHealth  = APIURLInternal + "/health"
	APIURLInternalMetrics = APIURLInternal + "/metrics"

	APIURLManagementDevices        = APIURLManagement + "/devices"
	APIURLManagementDevice         = APIURLManagement + "/devices/:mac"
	APIURLManagementDeviceRender   = APIURLManagement + "/devices/:mac/artifacts"
	APIURLManagementUnknownDevices = APIURLManagement + "/unknown-devices"

	APIURLManagementImages      = APIURLManagement + "/images"
	APIURLManagementImage       = APIURLManagement + "/images/:id"
	APIURLManagementImageLink   = APIURLManagement + "/images/:id/link"
	APIURLManagementImageUnlink = APIURLManagement + "/images/:id/unlink"
	APIURLManagementImageCopy   = APIURLManagement + "/images/:id/copy"

	APIURLManagementKernelSets       = APIURLManagement + "/kernel-sets"
	APIURLManagementKernelSet        = APIURLManagement + "/kernel-sets/:name"
	APIURLManagementKernelSetDefault = APIURLManagement + "/kernel-sets/:name/default"

	APIURLManagementBootLogs  = APIURLManagement + "/logs"
	APIURLManagementReconcile = APIURLManagement + "/reconcile/:mac"
	APIURLManagementSweep     = APIURLManagement + "/sweep"
	APIURLManagementRepair    = APIURLManagement + "/repair"

	APIURLManagementTelemetry       = APIURLManagement + "/telemetry"
	APIURLManagementTelemetryDevice = APIURLManagement + "/telemetry/devices/:mac"
	APIURLManagementTelemetryStream = APIURLManagement + "/telemetry/stream"
)

// NewRouter returns the gin router. gatherer serves the metrics endpoint
// and defaults to the prometheus default gatherer.
func NewRouter(
	app app.App,
	gatherer prometheus.Gatherer,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	gin.DisableConsoleColor()

	router := gin.New()
	router.Use(accesslog.Middleware())
	router.Use(gin.Recovery())
	router.Use(requestid.Middleware())

	status := NewStatusController(app, gatherer)
	router.GET(APIURLInternalAlive, status.Alive)
	router.GET(APIURLInternalHealth, status.Health)
	router.GET(APIURLInternalMetrics, status.Metrics)

	boot := NewBootController(app)
	router.GET(APIURLBootCheckIn, boot.CheckIn)
	router.GET(APIURLBootMenu, boot.Menu)
	router.GET(APIURLBootRaspiFile, boot.RaspiFile)
	router.POST(APIURLBootLog, boot.Log)
	router.POST(APIURLBootTelemetry, boot.Telemetry)

	management := NewManagementController(app)
	router.GET(APIURLManagementDevices, management.ListDevices)
	router.POST(APIURLManagementDevices, management.RegisterDevice)
	router.GET(APIURLManagementDevice, management.GetDevice)
	router.PATCH(APIURLManagementDevice, management.UpdateDevice)
	router.DELETE(APIURLManagementDevice, management.DeleteDevice)
	router.GET(APIURLManagementDeviceRender, management.RenderArtifacts)
	router.GET(APIURLManagementUnknownDevices, management.ListUnknownDevices)

	router.GET(APIURLManagementImages, management.ListImages)
	router.POST(APIURLManagementImages, management.CreateImage)
	router.GET(APIURLManagementImage, management.GetImage)
	router.DELETE(APIURLManagementImage, management.DeleteImage)
	router.POST(APIURLManagementImageLink, management.LinkImage)
	router.POST(APIURLManagementImageUnlink, management.UnlinkImage)
	router.POST(APIURLManagementImageCopy, management.CopyImage)

	router.GET(APIURLManagementKernelSets, management.ListKernelSets)
	router.PUT(APIURLManagementKernelSet, management.PutKernelSet)
	router.DELETE(APIURLManagementKernelSet, management.DeleteKernelSet)
	router.PUT(APIURLManagementKernelSetDefault, management.SetDefaultKernelSet)

	router.GET(APIURLManagementBootLogs, management.ListBootLogs)
	router.POST(APIURLManagementReconcile, management.Reconcile)
	router.POST(APIURLManagementSweep, management.Sweep)
	router.POST(APIURLManagementRepair, management.Repair)

	router.GET(APIURLManagementTelemetry, management.ListRates)
	router.GET(APIURLManagementTelemetryStream, management.StreamTelemetry)
	router.GET(APIURLManagementTelemetryDevice, management.GetRates)

	return router, nil
}
