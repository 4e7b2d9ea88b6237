// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package api

// Every API response carries a result envelope with an internal code that is
// more specific than the HTTP status, plus optional data.
type (
	Result struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	ResponseBody struct {
		Result Result      `json:"result"`
		Data   interface{} `json:"data,omitempty"`
		Extra  interface{} `json:"extra,omitempty"`
	}

	internalResponse struct {
		statusCode int
		code       string
		message    string
	}
)

var (
	templateRetrievedOk = internalResponse{200, "20000", "Workflow template retrieved successfully"}
	templateDeletedOk   = internalResponse{200, "20001", "Workflow template deleted successfully"}
	processStartedOk    = internalResponse{200, "20002", "Workflow process started successfully"}
	processInformedOk   = internalResponse{200, "20003", "Workflow process step completed successfully"}
	flowsRetrievedOk    = internalResponse{200, "20004", "Workflow processes retrieved successfully"}
	templateCreatedOk   = internalResponse{201, "20100", "Workflow template created successfully"}
	templateUpdatedOk   = internalResponse{201, "20101", "Workflow template updated successfully"}
)

func (r internalResponse) body(data interface{}, extra interface{}) ResponseBody {
	return ResponseBody{
		Result: Result{Code: r.code, Message: r.message},
		Data:   data,
		Extra:  extra,
	}
}
