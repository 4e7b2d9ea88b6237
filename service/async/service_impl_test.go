// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence"
	"github.com/maestroio/maestro/workflow"
)

type recordingEngine struct {
	startedFlows   []string
	executedNext   []string
	finishedTasks  []workflow.FinishedTask
	startErr       error
	handleErr      error
	executeNextErr error
}

func (r *recordingEngine) StartFlow(_ context.Context, flowName string, _ persistence.TriggerRequest) (string, error) {
	r.startedFlows = append(r.startedFlows, flowName)
	if r.startErr != nil {
		return "", r.startErr
	}
	return "process-1", nil
}

func (r *recordingEngine) ExecuteNextProcessTask(_ context.Context, processUuid string, _ persistence.JSONObject) error {
	r.executedNext = append(r.executedNext, processUuid)
	return r.executeNextErr
}

func (r *recordingEngine) HandleFinishedTask(_ context.Context, finished workflow.FinishedTask) error {
	r.finishedTasks = append(r.finishedTasks, finished)
	return r.handleErr
}

func (r *recordingEngine) ResumeErroredFlow(_ context.Context, _ string, _ string) error {
	return nil
}

func (r *recordingEngine) GetStartedProcesses(_ context.Context, _ workflow.ProcessListQuery) ([]*persistence.Process, error) {
	return nil, nil
}

func newTestService(engine *recordingEngine) *serviceImpl {
	cfg := config.Config{}
	cfg.AsyncService.Topics = config.TopicsConfig{
		Execute:  "t.execute",
		Inform:   "t.inform",
		Continue: "t.continue",
	}
	return &serviceImpl{
		cfg:    cfg,
		engine: engine,
		logger: log.NewDevelopmentLogger(),
	}
}

func TestHandleExecuteStartsAndDispatches(t *testing.T) {
	engine := &recordingEngine{}
	svc := newTestService(engine)

	err := svc.handleExecute(context.Background(), mq.Message{
		Headers: persistence.JSONObject{mq.HeaderFlowId: "someFlow"},
		Payload: persistence.JSONObject{"k": "v"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"someFlow"}, engine.startedFlows)
	assert.Equal(t, []string{"process-1"}, engine.executedNext)
}

func TestHandleExecuteUnknownTemplateIsAcked(t *testing.T) {
	engine := &recordingEngine{startErr: workflow.ErrTemplateNotFound}
	svc := newTestService(engine)

	err := svc.handleExecute(context.Background(), mq.Message{
		Headers: persistence.JSONObject{mq.HeaderFlowId: "ghost"},
	})

	assert.NoError(t, err)
	assert.Empty(t, engine.executedNext)
}

func TestHandleExecuteMissingFlowIdIsDropped(t *testing.T) {
	engine := &recordingEngine{}
	svc := newTestService(engine)

	err := svc.handleExecute(context.Background(), mq.Message{
		Payload: persistence.JSONObject{"k": "v"},
	})

	assert.NoError(t, err)
	assert.Empty(t, engine.startedFlows)
}

func TestHandleInformForwardsCorrelation(t *testing.T) {
	engine := &recordingEngine{}
	svc := newTestService(engine)

	err := svc.handleInform(context.Background(), mq.Message{
		Headers: persistence.JSONObject{
			mq.HeaderProcessId:    "process-1",
			mq.HeaderTaskId:       "task-1",
			mq.HeaderResponseCode: float64(200),
			"x-traceid":           "trace-1",
		},
		Payload: persistence.JSONObject{"result": "ok"},
	})

	require.NoError(t, err)
	require.Len(t, engine.finishedTasks, 1)
	finished := engine.finishedTasks[0]
	assert.Equal(t, "process-1", finished.ProcessUuid)
	assert.Equal(t, "task-1", finished.TaskUuid)
	assert.Equal(t, "trace-1", finished.TraceId)
	assert.Equal(t, persistence.JSONObject{"result": "ok"}, finished.Payload)
}

func TestHandleInformUnknownProcessIsAcked(t *testing.T) {
	engine := &recordingEngine{handleErr: workflow.ErrProcessNotFound}
	svc := newTestService(engine)

	err := svc.handleInform(context.Background(), mq.Message{
		Headers: persistence.JSONObject{
			mq.HeaderProcessId: "ghost",
			mq.HeaderTaskId:    "task-1",
		},
	})

	assert.NoError(t, err)
}

func TestHandleInformMissingHeadersIsDropped(t *testing.T) {
	engine := &recordingEngine{}
	svc := newTestService(engine)

	err := svc.handleInform(context.Background(), mq.Message{
		Payload: persistence.JSONObject{"result": "ok"},
	})

	assert.NoError(t, err)
	assert.Empty(t, engine.finishedTasks)
}

func TestHandleContinueAdvancesProcess(t *testing.T) {
	engine := &recordingEngine{}
	svc := newTestService(engine)

	err := svc.handleContinue(context.Background(), mq.Message{
		Payload: persistence.JSONObject{"processUuid": "process-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"process-1"}, engine.executedNext)
}

func TestHandleContinueStorageErrorIsRetried(t *testing.T) {
	engine := &recordingEngine{executeNextErr: assert.AnError}
	svc := newTestService(engine)

	err := svc.handleContinue(context.Background(), mq.Message{
		Payload: persistence.JSONObject{"processUuid": "process-1"},
	})

	assert.Error(t, err)
}
