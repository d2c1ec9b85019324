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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mendersoftware/go-lib-micro/rest.utils"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/app"
	"github.com/netboot-orchestrator/netboot/model"
)

// Files served to Raspberry Pi clients over the boot API
const (
	RaspiConfigFile  = "config.txt"
	RaspiCmdlineFile = "cmdline.txt"
)

const mimeIPXE = "text/plain; charset=utf-8"

// BootController serves the unauthenticated end-points booting clients
// talk to
type BootController struct {
	app app.App
}

// NewBootController returns a new BootController
func NewBootController(app app.App) *BootController {
	return &BootController{app: app}
}

// CheckIn responds to GET /check-in?mac=&device_type=
func (h BootController) CheckIn(c *gin.Context) {
	var req model.CheckInRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		rest.RenderError(c, http.StatusBadRequest, err)
		return
	}
	if req.IP == "" {
		req.IP = c.ClientIP()
	}
	result, err := h.app.CheckIn(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Menu responds to GET /ipxe/menu with the iPXE script of the client
// named by the mac query parameter, or the generic menu without one.
func (h BootController) Menu(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		ip = c.ClientIP()
	}
	script, err := h.app.RenderBootMenu(c.Request.Context(), c.Query("mac"), ip)
	if err != nil {
		renderError(c, err)
		return
	}
	c.Data(http.StatusOK, mimeIPXE, []byte(script))
}

// RaspiFile responds to GET /raspi/:mac/:file with the per-MAC config.txt
// or cmdline.txt
func (h BootController) RaspiFile(c *gin.Context) {
	file := c.Param("file")
	if file != RaspiConfigFile && file != RaspiCmdlineFile {
		rest.RenderError(c, http.StatusNotFound, ErrUnknownFile)
		return
	}
	cfg, err := h.app.RenderPerMacConfig(c.Request.Context(), c.Param("mac"))
	if err != nil {
		renderError(c, err)
		return
	}
	data := cfg.Config
	if file == RaspiCmdlineFile {
		data = cfg.Cmdline
	}
	c.Data(http.StatusOK, mimeIPXE, data)
}

// Log responds to POST /log. iPXE clients pass the event as query
// parameters, other clients may send a JSON body.
func (h BootController) Log(c *gin.Context) {
	var (
		ev  model.BootEvent
		err error
	)
	if c.ContentType() == gin.MIMEJSON {
		err = c.ShouldBindJSON(&ev)
	} else {
		err = c.ShouldBindQuery(&ev)
	}
	if err != nil {
		rest.RenderError(c, http.StatusBadRequest, errors.Wrap(err, ErrInvalidBody.Error()))
		return
	}
	if ev.IP == "" {
		ev.IP = c.ClientIP()
	}
	if err := h.app.RecordBootEvent(c.Request.Context(), ev); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Telemetry responds to POST /telemetry with the rates derived from the
// posted counter sample
func (h BootController) Telemetry(c *gin.Context) {
	var sample model.CounterSample
	if !bindJSON(c, &sample) {
		return
	}
	rates, err := h.app.RecordCounters(c.Request.Context(), sample)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rates)
}
