// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/common/ptr"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence"
)

type (
	// FinishedTask carries a task result callback into the engine. Headers
	// hold the correlation values the executor echoed back.
	FinishedTask struct {
		ProcessUuid string
		TaskUuid    string
		Headers     persistence.JSONObject
		Payload     persistence.JSONObject
		TraceId     string
	}

	// ProcessListQuery filters the started-processes listing. Status is a
	// comma separated, case-insensitive list matched against each process's
	// current status.
	ProcessListQuery struct {
		From        *time.Time
		To          *time.Time
		ProcessName string
		ProcessUuid string
		Status      string
	}

	// Engine drives processes through their lifecycle. All operations load
	// the process document, advance it in memory and write it back whole.
	Engine interface {
		// StartFlow instantiates a process from the named template and
		// persists it, returning the new process uuid. The first task is not
		// dispatched here; callers follow up with ExecuteNextProcessTask.
		StartFlow(ctx context.Context, flowName string, request persistence.TriggerRequest) (string, error)
		// ExecuteNextProcessTask dispatches the task after the most recently
		// completed one, or finishes the process when none remains. A nil
		// payload means "use the previous task's stored response".
		ExecuteNextProcessTask(ctx context.Context, processUuid string, payload persistence.JSONObject) error
		// HandleFinishedTask records a task result and either completes the
		// task and signals continuation, or fails the task and the process.
		HandleFinishedTask(ctx context.Context, finished FinishedTask) error
		// ResumeErroredFlow re-dispatches the first failed task of a process
		ResumeErroredFlow(ctx context.Context, processUuid string, processName string) error
		// GetStartedProcesses lists processes matching the query
		GetStartedProcesses(ctx context.Context, query ProcessListQuery) ([]*persistence.Process, error)
	}
)

type engineImpl struct {
	templates persistence.TemplateStore
	processes persistence.ProcessStore
	publisher mq.Publisher
	gateway   DispatchGateway
	validator SchemaValidator
	topics    config.TopicsConfig
	logger    log.Logger
}

func NewEngine(
	templates persistence.TemplateStore,
	processes persistence.ProcessStore,
	publisher mq.Publisher,
	topics config.TopicsConfig,
	logger log.Logger,
) Engine {
	return &engineImpl{
		templates: templates,
		processes: processes,
		publisher: publisher,
		gateway:   NewDispatchGateway(publisher, topics),
		validator: NewJSONSchemaValidator(),
		topics:    topics,
		logger:    logger,
	}
}

func (e *engineImpl) StartFlow(ctx context.Context, flowName string, request persistence.TriggerRequest) (string, error) {
	template, err := e.templates.Fetch(ctx, flowName)
	if err != nil {
		return "", fmt.Errorf("fetching template %v: %w", flowName, err)
	}
	if template == nil {
		// park the trigger on a side channel so the request is not lost
		e.logger.Warn("no template found for requested flow",
			tag.FlowName(flowName), tag.TraceId(request.TraceId))
		pubErr := e.publisher.Publish(ctx, e.topics.UnhandledFlows, mq.Message{
			Headers: persistence.JSONObject{mq.HeaderFlowId: flowName},
			Payload: persistence.JSONObject{
				"flowName": flowName,
				"payload":  request.Payload,
				"traceId":  request.TraceId,
			},
		})
		if pubErr != nil {
			e.logger.Error("failed to publish unhandled flow", tag.Error(pubErr), tag.FlowName(flowName))
		}
		return "", ErrTemplateNotFound
	}

	process := persistence.NewProcess(template, request)
	if err := e.processes.Save(ctx, process); err != nil {
		return "", fmt.Errorf("saving process %v: %w", process.ProcessUuid, err)
	}
	e.logger.Info("workflow process started",
		tag.FlowName(flowName), tag.ProcessUuid(process.ProcessUuid), tag.TraceId(request.TraceId))
	return process.ProcessUuid, nil
}

func (e *engineImpl) ExecuteNextProcessTask(ctx context.Context, processUuid string, payload persistence.JSONObject) error {
	process, err := e.processes.Fetch(ctx, processUuid)
	if err != nil {
		return fmt.Errorf("fetching process %v: %w", processUuid, err)
	}
	if process == nil {
		return ErrProcessNotFound
	}

	if process.HasEnded() {
		// the continuation signal is delivered at least once, duplicates for
		// a settled process are acked without touching its history
		return nil
	}

	lastCompleted := lastCompletedTaskIndex(process)
	next := lastCompleted + 1
	if next >= len(process.Tasks) {
		setProcessFinish(process, process.Tasks[len(process.Tasks)-1])
		if err := e.processes.UpdateProcess(ctx, processUuid, process); err != nil {
			return fmt.Errorf("updating process %v: %w", processUuid, err)
		}
		e.logger.Info("workflow process finished",
			tag.ProcessUuid(processUuid), tag.FlowName(process.FlowName),
			tag.Value(string(process.CurrentStatus())))
		return nil
	}

	if payload == nil && lastCompleted >= 0 {
		payload = responsePayload(process.Tasks[lastCompleted])
	}
	task := process.Tasks[next]
	if current := task.CurrentStatus(); current == persistence.StatusStarted || current == persistence.StatusRestarted {
		// already in flight, a redelivered continuation signal must not
		// dispatch it a second time
		return nil
	}
	e.startTask(task, payload, persistence.StatusStarted)

	if err := e.gateway.Dispatch(ctx, processUuid, task); err != nil {
		return fmt.Errorf("dispatching task %v: %w", task.TaskUuid, err)
	}
	if err := e.processes.UpdateProcess(ctx, processUuid, process); err != nil {
		return fmt.Errorf("updating process %v: %w", processUuid, err)
	}
	e.logger.Info("task dispatched",
		tag.ProcessUuid(processUuid), tag.TaskUuid(task.TaskUuid), tag.TaskType(string(task.Type)))
	return nil
}

func (e *engineImpl) HandleFinishedTask(ctx context.Context, finished FinishedTask) error {
	process, err := e.processes.Fetch(ctx, finished.ProcessUuid)
	if err != nil {
		return fmt.Errorf("fetching process %v: %w", finished.ProcessUuid, err)
	}
	if process == nil {
		return ErrProcessNotFound
	}
	task := process.FindTask(finished.TaskUuid)
	if task == nil {
		return ErrTaskNotFound
	}
	if current := task.CurrentStatus(); current != persistence.StatusStarted && current != persistence.StatusRestarted {
		if current == persistence.StatusCompleted && !process.HasEnded() {
			// the completion is already persisted, so this redelivery means
			// the continuation signal may have been lost before the ack.
			// Re-signalling is safe, the advance path tolerates duplicates.
			e.logger.Warn("re-signalling continuation for a completed task",
				tag.ProcessUuid(finished.ProcessUuid), tag.TaskUuid(finished.TaskUuid))
			return e.signalContinuation(ctx, finished.ProcessUuid)
		}
		// duplicate or stale callback, already settled
		e.logger.Warn("dropping callback for task not in flight",
			tag.ProcessUuid(finished.ProcessUuid), tag.TaskUuid(finished.TaskUuid),
			tag.Value(string(current)))
		return nil
	}

	finishedOn := parseFinishedOn(finished.Headers)
	receivedCode, _ := mq.HeaderInt(finished.Headers, mq.HeaderResponseCode)
	task.DateFinished = &finishedOn
	task.ReceivedCode = ptr.Any(receivedCode)
	task.Response = ApplyFilters(NewFilterDocument(finished.Payload), task.PostFilters)

	valid := receivedCode == task.ExpectedResponse
	if valid && task.ResponseSchema != nil {
		e.checkResponseSchema(ctx, process, task, finished)
	}

	if !valid {
		task.AppendStatus(persistence.StatusEntry{
			Status: persistence.StatusFailed,
			Date:   finishedOn,
			FailedWith: &persistence.FailureDetail{
				ReceivedCode:     receivedCode,
				ReceivedResponse: finished.Payload,
			},
		})
		setProcessFinish(process, task)
		if err := e.processes.UpdateProcess(ctx, finished.ProcessUuid, process); err != nil {
			return fmt.Errorf("updating process %v: %w", finished.ProcessUuid, err)
		}
		e.logger.Warn("task failed, process stopped",
			tag.ProcessUuid(finished.ProcessUuid), tag.TaskUuid(finished.TaskUuid),
			tag.StatusCode(receivedCode), tag.TraceId(finished.TraceId))
		return nil
	}

	task.AppendStatus(persistence.StatusEntry{
		Status: persistence.StatusCompleted,
		Date:   finishedOn,
	})
	if err := e.processes.UpdateProcess(ctx, finished.ProcessUuid, process); err != nil {
		return fmt.Errorf("updating process %v: %w", finished.ProcessUuid, err)
	}
	// continuation happens asynchronously through the queue so a crash here
	// never loses the recorded completion
	if err := e.signalContinuation(ctx, finished.ProcessUuid); err != nil {
		return err
	}
	e.logger.Info("task completed",
		tag.ProcessUuid(finished.ProcessUuid), tag.TaskUuid(finished.TaskUuid),
		tag.StatusCode(receivedCode), tag.TraceId(finished.TraceId))
	return nil
}

func (e *engineImpl) ResumeErroredFlow(ctx context.Context, processUuid string, processName string) error {
	process, err := e.processes.Fetch(ctx, processUuid)
	if err != nil {
		return fmt.Errorf("fetching process %v: %w", processUuid, err)
	}
	if process == nil || process.FlowName != processName {
		return ErrProcessNotFound
	}
	if process.CurrentStatus() == persistence.StatusCompleted {
		return ErrProcessCompleted
	}

	process.AppendStatus(persistence.StatusRestarted)

	var failed *persistence.TaskExecution
	failedIdx := -1
	for i, t := range process.Tasks {
		if t.CurrentStatus() == persistence.StatusFailed {
			failed = t
			failedIdx = i
			break
		}
	}
	if failed == nil {
		// nothing to redo, the failure was at the process level only
		process.AppendStatus(persistence.StatusCompleted)
		if err := e.processes.UpdateProcess(ctx, processUuid, process); err != nil {
			return fmt.Errorf("updating process %v: %w", processUuid, err)
		}
		return nil
	}

	payload := process.Request.Payload
	if failedIdx > 0 {
		payload = responsePayload(process.Tasks[failedIdx-1])
	}
	e.startTask(failed, payload, persistence.StatusRestarted)

	if err := e.gateway.Dispatch(ctx, processUuid, failed); err != nil {
		return fmt.Errorf("dispatching task %v: %w", failed.TaskUuid, err)
	}
	if err := e.processes.UpdateProcess(ctx, processUuid, process); err != nil {
		return fmt.Errorf("updating process %v: %w", processUuid, err)
	}
	e.logger.Info("failed task restarted",
		tag.ProcessUuid(processUuid), tag.TaskUuid(failed.TaskUuid), tag.FlowName(processName))
	return nil
}

func (e *engineImpl) GetStartedProcesses(ctx context.Context, query ProcessListQuery) ([]*persistence.Process, error) {
	processes, err := e.processes.GetCompletedProcesses(ctx, persistence.ProcessQuery{
		From:        query.From,
		To:          query.To,
		ProcessName: query.ProcessName,
		ProcessUuid: query.ProcessUuid,
	})
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	if query.Status == "" {
		return processes, nil
	}

	wanted := map[string]bool{}
	for _, s := range strings.Split(query.Status, ",") {
		if s = strings.TrimSpace(s); s != "" {
			wanted[strings.ToUpper(s)] = true
		}
	}
	filtered := make([]*persistence.Process, 0, len(processes))
	for _, p := range processes {
		if wanted[string(p.CurrentStatus())] {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// signalContinuation asks the continue consumer to advance the process. An
// error nacks the inform message so the broker retries the signal.
func (e *engineImpl) signalContinuation(ctx context.Context, processUuid string) error {
	if err := e.publisher.Publish(ctx, e.topics.Continue, mq.Message{
		Payload: persistence.JSONObject{"processUuid": processUuid},
	}); err != nil {
		return fmt.Errorf("signalling continuation for process %v: %w", processUuid, err)
	}
	return nil
}

// startTask resolves the task's outbound request from the incoming payload
// through its pre-filters and marks it in flight
func (e *engineImpl) startTask(
	task *persistence.TaskExecution,
	payload persistence.JSONObject,
	status persistence.Status,
) {
	data := ApplyFilters(NewFilterDocument(payload), task.PreFilters)

	headers := persistence.JSONObject{}
	for k, v := range task.ExecutionInfo.Headers {
		headers[k] = v
	}
	if extracted, ok := data["headers"].(map[string]interface{}); ok {
		for k, v := range extracted {
			headers[k] = v
		}
	}
	task.Request = &persistence.TaskRequest{
		Payload: payloadOf(data),
		Params:  task.ExecutionInfo.Params,
		Query:   task.ExecutionInfo.Query,
		Headers: headers,
	}

	now := time.Now()
	task.DateStarted = &now
	task.DateFinished = nil
	task.AppendStatus(persistence.StatusEntry{Status: status, Date: now})
}

// lastCompletedTaskIndex returns the highest index whose task currently
// stands COMPLETED, or -1
func lastCompletedTaskIndex(process *persistence.Process) int {
	for i := len(process.Tasks) - 1; i >= 0; i-- {
		if process.Tasks[i].CurrentStatus() == persistence.StatusCompleted {
			return i
		}
	}
	return -1
}

// responsePayload unwraps the payload from a task's stored post-filter
// response document
func responsePayload(task *persistence.TaskExecution) persistence.JSONObject {
	if task.Response == nil {
		return nil
	}
	if payload, ok := task.Response["payload"].(map[string]interface{}); ok {
		return payload
	}
	return nil
}

// setProcessFinish seals the process with the terminal status of its last
// settled task. The end date is written exactly once.
func setProcessFinish(process *persistence.Process, task *persistence.TaskExecution) {
	finishedOn := time.Now()
	if task.DateFinished != nil {
		finishedOn = *task.DateFinished
	}
	if process.EndDate == nil {
		process.EndDate = &finishedOn
	}
	status := task.CurrentStatus()
	if status != persistence.StatusCompleted && status != persistence.StatusFailed {
		status = persistence.StatusFailed
	}
	process.Status = append(process.Status, persistence.StatusEntry{
		Status: status,
		Date:   finishedOn,
	})
}

// checkResponseSchema reports schema mismatches on a side channel without
// failing the task
func (e *engineImpl) checkResponseSchema(
	ctx context.Context,
	process *persistence.Process,
	task *persistence.TaskExecution,
	finished FinishedTask,
) {
	issues, err := e.validator.Validate(finished.Payload, task.ResponseSchema)
	if err != nil {
		e.logger.Error("response schema could not be evaluated",
			tag.ProcessUuid(process.ProcessUuid), tag.TaskUuid(task.TaskUuid), tag.Error(err))
		return
	}
	if len(issues) == 0 {
		return
	}
	e.logger.Warn("task response does not match its declared schema",
		tag.ProcessUuid(process.ProcessUuid), tag.TaskUuid(task.TaskUuid),
		tag.TraceId(finished.TraceId))
	pubErr := e.publisher.Publish(ctx, e.topics.InconsistentResponses, mq.Message{
		Payload: persistence.JSONObject{
			"process": process.ProcessUuid,
			"task":    task.TaskUuid,
			"request": persistence.JSONObject{
				"payload": finished.Payload,
				"traceId": finished.TraceId,
			},
			"errors": issues,
		},
	})
	if pubErr != nil {
		e.logger.Error("failed to publish inconsistent response",
			tag.ProcessUuid(process.ProcessUuid), tag.TaskUuid(task.TaskUuid), tag.Error(pubErr))
	}
}

func parseFinishedOn(headers persistence.JSONObject) time.Time {
	raw := mq.HeaderString(headers, mq.HeaderTaskFinishedOn)
	if raw == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Now()
}
