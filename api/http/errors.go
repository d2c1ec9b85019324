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
	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/mendersoftware/go-lib-micro/rest.utils"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
)

// HTTP errors
var (
	ErrInvalidBody   = errors.New("malformed request body")
	ErrUnknownFile   = errors.New("unknown boot file")
	ErrInternalError = errors.New("internal error")
)

// errorStatus maps the model error taxonomy to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTypeMismatch),
		errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// renderError writes err with the status errorStatus assigns it. Internal
// errors are logged and hidden from the client.
func renderError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.FromContext(c.Request.Context()).Error(err)
		err = ErrInternalError
	}
	rest.RenderError(c, status, err)
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		rest.RenderError(c, http.StatusBadRequest, errors.Wrap(err, ErrInvalidBody.Error()))
		return false
	}
	return true
}
