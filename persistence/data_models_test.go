// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package persistence

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFieldUnmarshal(t *testing.T) {
	var filter FilterSpec
	raw := `{
		"action": "renameFields",
		"fields": ["field1", {"name": "field2", "newName": "other"}]
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &filter))

	require.Len(t, filter.Fields, 2)
	assert.Equal(t, FilterField{Name: "field1"}, filter.Fields[0])
	assert.Equal(t, FilterField{Name: "field2", NewName: "other"}, filter.Fields[1])
}

func TestFilterFieldMarshalRoundTrip(t *testing.T) {
	fields := []FilterField{
		{Name: "plain"},
		{Name: "src", NewName: "dst"},
	}
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.JSONEq(t, `["plain", {"name": "src", "newName": "dst"}]`, string(raw))

	var decoded []FilterField
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, fields, decoded)
}

func TestNewProcessSeedsLifecycle(t *testing.T) {
	template := &Template{
		Name: "someFlow",
		Tasks: []TaskDefinition{
			{Type: TaskTypeQueue, ExecutionInfo: ExecutionInfo{Topic: "a"}, ExpectedResponse: 200},
			{Type: TaskTypeHTTP, ExecutionInfo: ExecutionInfo{Url: "http://b"}, ExpectedResponse: 200},
		},
	}

	process := NewProcess(template, TriggerRequest{Payload: JSONObject{"k": "v"}, TraceId: "t1"})

	assert.NotEmpty(t, process.ProcessUuid)
	assert.Equal(t, "someFlow", process.FlowName)
	assert.Equal(t, StatusStarted, process.CurrentStatus())
	assert.False(t, process.HasEnded())
	assert.Nil(t, process.EndDate)
	assert.Equal(t, "t1", process.Request.TraceId)

	require.Len(t, process.Tasks, 2)
	seen := map[string]bool{}
	for _, task := range process.Tasks {
		assert.Equal(t, StatusCreated, task.CurrentStatus())
		assert.False(t, seen[task.TaskUuid])
		seen[task.TaskUuid] = true
	}
}

func TestProcessStatusHelpers(t *testing.T) {
	process := NewProcess(&Template{
		Name:  "someFlow",
		Tasks: []TaskDefinition{{Type: TaskTypeQueue, ExpectedResponse: 200}},
	}, TriggerRequest{})

	process.AppendStatus(StatusFailed)
	assert.Equal(t, StatusFailed, process.CurrentStatus())
	assert.True(t, process.HasEnded())

	process.AppendStatus(StatusRestarted)
	assert.False(t, process.HasEnded())
}

func TestFindTask(t *testing.T) {
	process := NewProcess(&Template{
		Name:  "someFlow",
		Tasks: []TaskDefinition{{Type: TaskTypeQueue, ExpectedResponse: 200}},
	}, TriggerRequest{})

	task := process.FindTask(process.Tasks[0].TaskUuid)
	require.NotNil(t, task)
	assert.Same(t, process.Tasks[0], task)

	assert.Nil(t, process.FindTask("unknown"))
}
