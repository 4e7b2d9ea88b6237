// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/persistence"
	"github.com/maestroio/maestro/workflow"
)

var allowedHttpMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

type serviceImpl struct {
	cfg       config.Config
	templates persistence.TemplateStore
	engine    workflow.Engine
	logger    log.Logger
}

func NewServiceImpl(
	cfg config.Config, templates persistence.TemplateStore, engine workflow.Engine, logger log.Logger,
) Service {
	return &serviceImpl{
		cfg:       cfg,
		templates: templates,
		engine:    engine,
		logger:    logger,
	}
}

func (s *serviceImpl) CreateTemplate(ctx context.Context, template *persistence.Template) *ErrorWithStatus {
	if err := validateTemplate(template); err != nil {
		return NewErrorWithStatus(http.StatusBadRequest, "40000", err.Error())
	}
	if err := s.templates.Save(ctx, template); err != nil {
		return s.handleUnknownError(err)
	}
	s.logger.Info("workflow template created", tag.FlowName(template.Name))
	return nil
}

func (s *serviceImpl) UpdateTemplate(ctx context.Context, name string, template *persistence.Template) *ErrorWithStatus {
	if err := validateTemplate(template); err != nil {
		return NewErrorWithStatus(http.StatusBadRequest, "40000", err.Error())
	}
	updated, err := s.templates.UpdateTemplate(ctx, name, template)
	if err != nil {
		return s.handleUnknownError(err)
	}
	if !updated {
		return errorToStatus(workflow.ErrTemplateNotFound)
	}
	s.logger.Info("workflow template updated", tag.FlowName(name))
	return nil
}

func (s *serviceImpl) GetTemplates(ctx context.Context) ([]*persistence.Template, *ErrorWithStatus) {
	templates, err := s.templates.FetchAll(ctx)
	if err != nil {
		return nil, s.handleUnknownError(err)
	}
	return templates, nil
}

func (s *serviceImpl) GetTemplate(ctx context.Context, name string) (*persistence.Template, *ErrorWithStatus) {
	template, err := s.templates.Fetch(ctx, name)
	if err != nil {
		return nil, s.handleUnknownError(err)
	}
	if template == nil {
		return nil, errorToStatus(workflow.ErrTemplateNotFound)
	}
	return template, nil
}

func (s *serviceImpl) DeleteTemplate(ctx context.Context, name string) *ErrorWithStatus {
	if err := s.templates.RemoveTemplate(ctx, name); err != nil {
		return s.handleUnknownError(err)
	}
	s.logger.Info("workflow template deleted", tag.FlowName(name))
	return nil
}

func (s *serviceImpl) ExecuteFlow(
	ctx context.Context, flowName string, request persistence.TriggerRequest,
) (string, *ErrorWithStatus) {
	processUuid, err := s.engine.StartFlow(ctx, flowName, request)
	if err != nil {
		return "", errorToStatus(err)
	}

	// the caller gets the ack as soon as the process exists, the first task
	// is dispatched in the background as best effort
	go func() {
		dispatchCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := s.engine.ExecuteNextProcessTask(dispatchCtx, processUuid, request.Payload); err != nil {
			s.logger.Error("failed to dispatch the first task of a new process",
				tag.ProcessUuid(processUuid), tag.FlowName(flowName), tag.Error(err))
		}
	}()
	return processUuid, nil
}

func (s *serviceImpl) ContinueFlow(ctx context.Context, processUuid string, processName string) *ErrorWithStatus {
	if err := s.engine.ResumeErroredFlow(ctx, processUuid, processName); err != nil {
		return errorToStatus(err)
	}
	return nil
}

func (s *serviceImpl) GetFlows(
	ctx context.Context, query workflow.ProcessListQuery,
) ([]*persistence.Process, *ErrorWithStatus) {
	processes, err := s.engine.GetStartedProcesses(ctx, query)
	if err != nil {
		return nil, s.handleUnknownError(err)
	}
	return processes, nil
}

func (s *serviceImpl) handleUnknownError(err error) *ErrorWithStatus {
	s.logger.Error("unknown error on operation", tag.Error(err))
	return errorToStatus(err)
}

// validateTemplate checks what the binding tags cannot express: each task
// must carry the execution info its type requires
func validateTemplate(template *persistence.Template) error {
	for i, task := range template.Tasks {
		switch task.Type {
		case persistence.TaskTypeQueue:
			if task.ExecutionInfo.Topic == "" {
				return fmt.Errorf("task %v: a QUEUE task requires executionInfo.topic", i)
			}
		case persistence.TaskTypeHTTP:
			if task.ExecutionInfo.Url == "" {
				return fmt.Errorf("task %v: an HTTP task requires executionInfo.url", i)
			}
			// an absent method defaults to GET at dispatch time
			if m := strings.ToUpper(task.ExecutionInfo.Method); m != "" && !allowedHttpMethods[m] {
				return fmt.Errorf("task %v: unsupported http method %q", i, task.ExecutionInfo.Method)
			}
		}
	}
	return nil
}
