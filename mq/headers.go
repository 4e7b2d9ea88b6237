// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package mq

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maestroio/maestro/persistence"
)

// Correlation headers are the sole mechanism binding an asynchronous task
// result back to its originating process/task. Keys are case-insensitive
// on the wire.
const (
	HeaderFlowId         = "x-flowid"
	HeaderProcessId      = "x-flowprocessid"
	HeaderTaskId         = "x-flowtaskid"
	HeaderInformTopic    = "x-flowinformtopic"
	HeaderResponseCode   = "x-flowresponsecode"
	HeaderTaskFinishedOn = "x-flowtaskfinishedon"
)

// HeaderString resolves a header value case-insensitively and renders it
// as a string. Returns "" when absent.
func HeaderString(headers persistence.JSONObject, key string) string {
	v, ok := headerValue(headers, key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// HeaderInt resolves a header value case-insensitively as an integer.
// JSON numbers arrive as float64; string values are parsed.
func HeaderInt(headers persistence.JSONObject, key string) (int, bool) {
	v, ok := headerValue(headers, key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func headerValue(headers persistence.JSONObject, key string) (interface{}, bool) {
	if headers == nil {
		return nil, false
	}
	if v, ok := headers[key]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
