// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/maestroio/maestro/common/uuid"
)

type TaskType string

const (
	TaskTypeQueue TaskType = "QUEUE"
	TaskTypeHTTP  TaskType = "HTTP"
)

// Status is one step of the task/process lifecycle:
// CREATED -> STARTED -> {COMPLETED | FAILED} -> [RESTARTED -> ...]
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusStarted   Status = "STARTED"
	StatusCompleted Status = "COMPLETED"
	StatusRestarted Status = "RESTARTED"
	StatusFailed    Status = "FAILED"
)

// JSONObject is the generic payload tree passed between tasks
type JSONObject = map[string]interface{}

// Filter actions a FilterSpec may declare
const (
	FilterActionDeleteFields       = "deleteFields"
	FilterActionRenameFields       = "renameFields"
	FilterActionMergeFields        = "mergeFields"
	FilterActionExtractFields      = "extractFields"
	FilterActionDeleteAllButFields = "deleteAllButFields"
)

type (
	// Template is a named, ordered task-list definition used to instantiate processes.
	// It is copied by value into a Process at start time; a running Process never
	// holds a live reference back to its Template.
	Template struct {
		Name  string           `json:"name" binding:"required"`
		Tasks []TaskDefinition `json:"tasks" binding:"required,min=1,dive"`
	}

	TaskDefinition struct {
		Type             TaskType      `json:"type" binding:"required,oneof=QUEUE HTTP"`
		ExecutionInfo    ExecutionInfo `json:"executionInfo" binding:"required"`
		ExpectedResponse int           `json:"expectedResponse" binding:"required"`
		ResponseSchema   JSONObject    `json:"responseSchema,omitempty"`
		PreFilters       []FilterSpec  `json:"pre_filters,omitempty"`
		PostFilters      []FilterSpec  `json:"post_filters,omitempty"`
	}

	// ExecutionInfo describes where a task is dispatched.
	// Topic is required for QUEUE tasks; Url and Method for HTTP tasks.
	// Payload/Params/Query/Headers are optional request defaults.
	ExecutionInfo struct {
		Topic   string     `json:"topic,omitempty"`
		Url     string     `json:"url,omitempty"`
		Method  string     `json:"method,omitempty"`
		Payload JSONObject `json:"payload,omitempty"`
		Params  JSONObject `json:"params,omitempty"`
		Query   JSONObject `json:"query,omitempty"`
		Headers JSONObject `json:"headers,omitempty"`
	}

	// FilterSpec is one declarative payload-reshaping rule
	FilterSpec struct {
		Action  string        `json:"action"`
		Fields  []FilterField `json:"fields"`
		To      string        `json:"to,omitempty"`
		NewName string        `json:"newName,omitempty"`
	}

	// FilterField is either a plain field name/path, or a {name, newName}
	// pair for renameFields
	FilterField struct {
		Name    string `json:"name"`
		NewName string `json:"newName,omitempty"`
	}

	StatusEntry struct {
		Status     Status         `json:"status"`
		Date       time.Time      `json:"date"`
		FailedWith *FailureDetail `json:"failedWith,omitempty"`
	}

	FailureDetail struct {
		ReceivedCode     int        `json:"receivedCode"`
		ReceivedResponse JSONObject `json:"receivedResponse,omitempty"`
	}

	// TriggerRequest is the original request that started a process
	TriggerRequest struct {
		Payload JSONObject `json:"payload"`
		TraceId string     `json:"traceId,omitempty"`
	}

	// TaskRequest is the resolved request actually sent for a task
	TaskRequest struct {
		Payload JSONObject `json:"payload,omitempty"`
		Params  JSONObject `json:"params,omitempty"`
		Query   JSONObject `json:"query,omitempty"`
		Headers JSONObject `json:"headers,omitempty"`
	}

	// TaskExecution is one task of a Process, a copy of its TaskDefinition
	// enriched with runtime state. Its Status sequence is append-only.
	TaskExecution struct {
		TaskUuid         string       `json:"taskUuid"`
		Type             TaskType     `json:"type"`
		ExecutionInfo    ExecutionInfo `json:"executionInfo"`
		ExpectedResponse int          `json:"expectedResponse"`
		ResponseSchema   JSONObject   `json:"responseSchema,omitempty"`
		PreFilters       []FilterSpec `json:"pre_filters,omitempty"`
		PostFilters      []FilterSpec `json:"post_filters,omitempty"`

		DateStarted  *time.Time    `json:"dateStarted"`
		DateFinished *time.Time    `json:"dateFinished"`
		Request      *TaskRequest  `json:"request"`
		ReceivedCode *int          `json:"receivedCode"`
		Response     JSONObject    `json:"response"`
		Status       []StatusEntry `json:"status"`
	}

	// Process is one execution instance of a Template.
	// The task list order is fixed at creation and never reordered.
	Process struct {
		ProcessUuid string           `json:"processUuid"`
		FlowName    string           `json:"flowName"`
		StartDate   time.Time        `json:"startDate"`
		EndDate     *time.Time       `json:"endDate"`
		Status      []StatusEntry    `json:"status"`
		Request     TriggerRequest   `json:"request"`
		Tasks       []*TaskExecution `json:"tasks"`
	}
)

// UnmarshalJSON accepts either a bare string ("field1") or an object
// ({"name": "field1", "newName": "other"}) for a filter field
func (f *FilterField) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		f.Name = name
		f.NewName = ""
		return nil
	}
	type plain FilterField
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("filter field must be a string or a {name, newName} object: %w", err)
	}
	*f = FilterField(p)
	return nil
}

func (f FilterField) MarshalJSON() ([]byte, error) {
	if f.NewName == "" {
		return json.Marshal(f.Name)
	}
	type plain FilterField
	return json.Marshal(plain(f))
}

// NewProcess builds a fresh Process from a template and the trigger request.
// The template's task list is copied by value; every task gets its own uuid
// and a seeded CREATED status. The process itself starts as STARTED.
func NewProcess(template *Template, request TriggerRequest) *Process {
	now := time.Now()
	tasks := make([]*TaskExecution, 0, len(template.Tasks))
	for _, def := range template.Tasks {
		tasks = append(tasks, &TaskExecution{
			TaskUuid:         uuid.MustNewUUID(),
			Type:             def.Type,
			ExecutionInfo:    def.ExecutionInfo,
			ExpectedResponse: def.ExpectedResponse,
			ResponseSchema:   def.ResponseSchema,
			PreFilters:       def.PreFilters,
			PostFilters:      def.PostFilters,
			Status: []StatusEntry{{
				Status: StatusCreated,
				Date:   now,
			}},
		})
	}
	return &Process{
		ProcessUuid: uuid.MustNewUUID(),
		FlowName:    template.Name,
		StartDate:   now,
		Status: []StatusEntry{{
			Status: StatusStarted,
			Date:   now,
		}},
		Request: request,
		Tasks:   tasks,
	}
}

// CurrentStatus returns the last appended status entry of the process
func (p *Process) CurrentStatus() Status {
	return lastStatus(p.Status)
}

// HasEnded reports whether the process reached a terminal status
func (p *Process) HasEnded() bool {
	s := p.CurrentStatus()
	return s == StatusCompleted || s == StatusFailed
}

// AppendStatus appends one entry to the process status sequence
func (p *Process) AppendStatus(status Status) {
	p.Status = append(p.Status, StatusEntry{Status: status, Date: time.Now()})
}

// FindTask returns the task with the given uuid, or nil
func (p *Process) FindTask(taskUuid string) *TaskExecution {
	for _, t := range p.Tasks {
		if t.TaskUuid == taskUuid {
			return t
		}
	}
	return nil
}

// CurrentStatus returns the last appended status entry of the task
func (t *TaskExecution) CurrentStatus() Status {
	return lastStatus(t.Status)
}

// AppendStatus appends one entry to the task status sequence
func (t *TaskExecution) AppendStatus(entry StatusEntry) {
	t.Status = append(t.Status, entry)
}

func lastStatus(entries []StatusEntry) Status {
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].Status
}
