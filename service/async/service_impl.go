// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"
	"errors"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence"
	"github.com/maestroio/maestro/worker"
	"github.com/maestroio/maestro/workflow"
)

type serviceImpl struct {
	cfg      config.Config
	consumer mq.Consumer
	engine   workflow.Engine
	worker   *worker.HttpWorker
	logger   log.Logger
}

func NewAsyncServiceImpl(
	cfg config.Config,
	consumer mq.Consumer,
	engine workflow.Engine,
	httpWorker *worker.HttpWorker,
	logger log.Logger,
) Service {
	return &serviceImpl{
		cfg:      cfg,
		consumer: consumer,
		engine:   engine,
		worker:   httpWorker,
		logger:   logger,
	}
}

func (s *serviceImpl) Start() error {
	topics := s.cfg.AsyncService.Topics
	s.consumer.Subscribe(topics.Execute, s.handleExecute)
	s.consumer.Subscribe(topics.Inform, s.handleInform)
	s.consumer.Subscribe(topics.Continue, s.handleContinue)
	s.consumer.Subscribe(topics.HandleHttp, s.worker.Handle)
	return s.consumer.Start()
}

func (s *serviceImpl) Stop(_ context.Context) error {
	return s.consumer.Stop()
}

// handleExecute starts a flow from a queue trigger, the queue equivalent of
// POST /executeFlow
func (s *serviceImpl) handleExecute(ctx context.Context, message mq.Message) error {
	flowName := mq.HeaderString(message.Headers, mq.HeaderFlowId)
	if flowName == "" {
		s.logger.Warn("execute message has no flow id header, dropping", tag.Value(message.Headers))
		return nil
	}
	request := persistence.TriggerRequest{
		Payload: message.Payload,
		TraceId: mq.HeaderString(message.Headers, "x-traceid"),
	}

	processUuid, err := s.engine.StartFlow(ctx, flowName, request)
	if err != nil {
		if errors.Is(err, workflow.ErrTemplateNotFound) {
			// already parked on the unhandled-flows topic
			return nil
		}
		return err
	}
	return s.engine.ExecuteNextProcessTask(ctx, processUuid, request.Payload)
}

// handleInform settles a task with the result its executor reported
func (s *serviceImpl) handleInform(ctx context.Context, message mq.Message) error {
	processUuid := mq.HeaderString(message.Headers, mq.HeaderProcessId)
	taskUuid := mq.HeaderString(message.Headers, mq.HeaderTaskId)
	if processUuid == "" || taskUuid == "" {
		s.logger.Warn("inform message lacks correlation headers, dropping", tag.Value(message.Headers))
		return nil
	}

	err := s.engine.HandleFinishedTask(ctx, workflow.FinishedTask{
		ProcessUuid: processUuid,
		TaskUuid:    taskUuid,
		Headers:     message.Headers,
		Payload:     message.Payload,
		TraceId:     mq.HeaderString(message.Headers, "x-traceid"),
	})
	if errors.Is(err, workflow.ErrProcessNotFound) || errors.Is(err, workflow.ErrTaskNotFound) {
		// retrying cannot make the process appear
		s.logger.Warn("inform message references an unknown process or task, dropping",
			tag.ProcessUuid(processUuid), tag.TaskUuid(taskUuid))
		return nil
	}
	return err
}

// handleContinue advances a process after one of its tasks completed
func (s *serviceImpl) handleContinue(ctx context.Context, message mq.Message) error {
	processUuid, _ := message.Payload["processUuid"].(string)
	if processUuid == "" {
		s.logger.Warn("continue message has no processUuid, dropping", tag.Value(message.Payload))
		return nil
	}
	err := s.engine.ExecuteNextProcessTask(ctx, processUuid, nil)
	if errors.Is(err, workflow.ErrProcessNotFound) {
		s.logger.Warn("continue message references an unknown process, dropping",
			tag.ProcessUuid(processUuid))
		return nil
	}
	return err
}
