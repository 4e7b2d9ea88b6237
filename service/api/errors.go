// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"net/http"

	"github.com/maestroio/maestro/workflow"
)

type ErrorWithStatus struct {
	StatusCode int
	Body       ResponseBody
}

func NewErrorWithStatus(statusCode int, code string, message string) *ErrorWithStatus {
	return &ErrorWithStatus{
		StatusCode: statusCode,
		Body: ResponseBody{
			Result: Result{Code: code, Message: message},
		},
	}
}

// errorToStatus maps engine errors onto the result-code catalog. Unknown
// errors are reported as storage failures without leaking internals.
func errorToStatus(err error) *ErrorWithStatus {
	switch {
	case errors.Is(err, workflow.ErrTemplateNotFound),
		errors.Is(err, workflow.ErrProcessNotFound),
		errors.Is(err, workflow.ErrTaskNotFound):
		return NewErrorWithStatus(http.StatusBadRequest, "40000", err.Error())
	case errors.Is(err, workflow.ErrProcessCompleted):
		return NewErrorWithStatus(http.StatusBadRequest, "40001", err.Error())
	default:
		return NewErrorWithStatus(http.StatusInternalServerError, "50000", "Error connecting to the DDBB")
	}
}
