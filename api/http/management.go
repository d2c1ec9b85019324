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
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mendersoftware/go-lib-micro/rest.utils"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/app"
	"github.com/netboot-orchestrator/netboot/model"
)

// Query parameters of the management end-points
const (
	ParamMAC     = "mac"
	ParamLimit   = "limit"
	ParamImageID = "image_id"
)

// ManagementController container for end-points
type ManagementController struct {
	app app.App
}

// NewManagementController returns a new ManagementController
func NewManagementController(app app.App) *ManagementController {
	return &ManagementController{app: app}
}

// LinkRequest is the body of POST /images/:id/link
type LinkRequest struct {
	MAC string `json:"mac"`
}

// CopyRequest is the body of POST /images/:id/copy
type CopyRequest struct {
	ID string `json:"id"`
}

// Artifacts is the rendered per-MAC boot configuration of a device
type Artifacts struct {
	ConfigTxt  string `json:"config_txt"`
	CmdlineTxt string `json:"cmdline_txt"`
}

// ListDevices responds to GET /devices
func (h ManagementController) ListDevices(c *gin.Context) {
	devices, err := h.app.ListDevices(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}
	c.JSON(http.StatusOK, devices)
}

// RegisterDevice responds to POST /devices
func (h ManagementController) RegisterDevice(c *gin.Context) {
	var reg model.DeviceRegistration
	if !bindJSON(c, &reg) {
		return
	}
	dev, err := h.app.RegisterDevice(c.Request.Context(), reg)
	if err != nil {
		renderError(c, err)
		return
	}
	c.Header("Location", APIURLManagement+"/devices/"+dev.MAC)
	c.JSON(http.StatusCreated, dev)
}

// GetDevice responds to GET /devices/:mac
func (h ManagementController) GetDevice(c *gin.Context) {
	dev, err := h.app.GetDevice(c.Request.Context(), c.Param("mac"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dev)
}

// UpdateDevice responds to PATCH /devices/:mac
func (h ManagementController) UpdateDevice(c *gin.Context) {
	var upd model.DeviceUpdate
	if !bindJSON(c, &upd) {
		return
	}
	dev, err := h.app.UpdateDevice(c.Request.Context(), c.Param("mac"), upd)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dev)
}

// DeleteDevice responds to DELETE /devices/:mac
func (h ManagementController) DeleteDevice(c *gin.Context) {
	if err := h.app.DeleteDevice(c.Request.Context(), c.Param("mac")); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RenderArtifacts responds to GET /devices/:mac/artifacts with the
// config.txt and cmdline.txt the device is served
func (h ManagementController) RenderArtifacts(c *gin.Context) {
	cfg, err := h.app.RenderPerMacConfig(c.Request.Context(), c.Param("mac"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, Artifacts{
		ConfigTxt:  string(cfg.Config),
		CmdlineTxt: string(cfg.Cmdline),
	})
}

// ListUnknownDevices responds to GET /unknown-devices
func (h ManagementController) ListUnknownDevices(c *gin.Context) {
	unknown, err := h.app.ListUnknownDevices(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	if unknown == nil {
		unknown = []model.UnknownDevice{}
	}
	c.JSON(http.StatusOK, unknown)
}

// ListImages responds to GET /images
func (h ManagementController) ListImages(c *gin.Context) {
	images, err := h.app.ListImages(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	if images == nil {
		images = []model.Image{}
	}
	c.JSON(http.StatusOK, images)
}

// CreateImage responds to POST /images
func (h ManagementController) CreateImage(c *gin.Context) {
	var n model.NewImage
	if !bindJSON(c, &n) {
		return
	}
	img, err := h.app.CreateImage(c.Request.Context(), n)
	if err != nil {
		renderError(c, err)
		return
	}
	c.Header("Location", APIURLManagementImages+"/"+img.ID)
	c.JSON(http.StatusCreated, img)
}

// GetImage responds to GET /images/:id
func (h ManagementController) GetImage(c *gin.Context) {
	img, err := h.app.GetImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, img)
}

// DeleteImage responds to DELETE /images/:id
func (h ManagementController) DeleteImage(c *gin.Context) {
	if err := h.app.DeleteImage(c.Request.Context(), c.Param("id")); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LinkImage responds to POST /images/:id/link
func (h ManagementController) LinkImage(c *gin.Context) {
	var req LinkRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.app.LinkImage(c.Request.Context(), c.Param("id"), req.MAC); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UnlinkImage responds to POST /images/:id/unlink
func (h ManagementController) UnlinkImage(c *gin.Context) {
	if err := h.app.UnlinkImage(c.Request.Context(), c.Param("id")); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CopyImage responds to POST /images/:id/copy
func (h ManagementController) CopyImage(c *gin.Context) {
	var req CopyRequest
	if !bindJSON(c, &req) {
		return
	}
	img, err := h.app.CopyImage(c.Request.Context(), c.Param("id"), req.ID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.Header("Location", APIURLManagementImages+"/"+img.ID)
	c.JSON(http.StatusCreated, img)
}

// ListKernelSets responds to GET /kernel-sets
func (h ManagementController) ListKernelSets(c *gin.Context) {
	sets, err := h.app.ListKernelSets(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	if sets == nil {
		sets = []model.KernelSet{}
	}
	c.JSON(http.StatusOK, sets)
}

// PutKernelSet responds to PUT /kernel-sets/:name
func (h ManagementController) PutKernelSet(c *gin.Context) {
	var ks model.KernelSet
	if !bindJSON(c, &ks) {
		return
	}
	ks.Name = c.Param("name")
	res, err := h.app.PutKernelSet(c.Request.Context(), ks)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteKernelSet responds to DELETE /kernel-sets/:name
func (h ManagementController) DeleteKernelSet(c *gin.Context) {
	if err := h.app.DeleteKernelSet(c.Request.Context(), c.Param("name")); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetDefaultKernelSet responds to PUT /kernel-sets/:name/default
func (h ManagementController) SetDefaultKernelSet(c *gin.Context) {
	if err := h.app.SetDefaultKernelSet(c.Request.Context(), c.Param("name")); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListBootLogs responds to GET /logs?mac=&limit=
func (h ManagementController) ListBootLogs(c *gin.Context) {
	filter := model.BootLogFilter{MAC: c.Query(ParamMAC)}
	if limit := c.Query(ParamLimit); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			rest.RenderError(c, http.StatusBadRequest,
				errors.Errorf("invalid %s: %q", ParamLimit, limit))
			return
		}
		filter.Limit = n
	}
	logs, err := h.app.ListBootLogs(c.Request.Context(), filter)
	if err != nil {
		renderError(c, err)
		return
	}
	if logs == nil {
		logs = []model.BootLogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}

// Reconcile responds to POST /reconcile/:mac
func (h ManagementController) Reconcile(c *gin.Context) {
	report, err := h.app.Reconcile(c.Request.Context(), c.Param("mac"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Sweep responds to POST /sweep
func (h ManagementController) Sweep(c *gin.Context) {
	report, err := h.app.Sweep(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Repair responds to POST /repair?image_id=; without an image id every
// finding is repaired
func (h ManagementController) Repair(c *gin.Context) {
	report, err := h.app.Repair(c.Request.Context(), c.Query(ParamImageID))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListRates responds to GET /telemetry
func (h ManagementController) ListRates(c *gin.Context) {
	rates, err := h.app.DeviceRates(c.Request.Context(), "")
	if err != nil {
		renderError(c, err)
		return
	}
	if rates == nil {
		rates = []model.DeviceRates{}
	}
	c.JSON(http.StatusOK, rates)
}

// GetRates responds to GET /telemetry/devices/:mac
func (h ManagementController) GetRates(c *gin.Context) {
	rates, err := h.app.DeviceRates(c.Request.Context(), c.Param("mac"))
	if err != nil {
		renderError(c, err)
		return
	} else if len(rates) == 0 {
		renderError(c, errors.Wrapf(model.ErrNotFound, "device %s", c.Param("mac")))
		return
	}
	c.JSON(http.StatusOK, rates[0])
}
