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

package model

import (
	"github.com/pkg/errors"
)

// Error taxonomy shared by the registry, the app and the reconciler. Call
// sites wrap these with context; use errors.Is to classify.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTypeMismatch  = errors.New("device type mismatch")
	ErrValidation    = errors.New("validation failed")
	ErrDriftDetected = errors.New("drift detected")
	ErrRenderFailure = errors.New("render failure")
)

type validationError struct {
	err error
}

// NewValidationError marks err as a ValidationError while keeping its
// message intact.
func NewValidationError(err error) error {
	if err == nil {
		return nil
	}
	return &validationError{err: err}
}

func (e *validationError) Error() string {
	return e.err.Error()
}

func (e *validationError) Unwrap() error {
	return e.err
}

func (e *validationError) Is(target error) bool {
	return target == ErrValidation
}
