// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/maestroio/maestro/persistence"
	"github.com/maestroio/maestro/workflow"
)

type (
	// Server is the API server that serves HTTP requests
	Server interface {
		// Start starts the server in a non-blocking way
		Start() error
		// Stop stops the server gracefully until the ctx expires
		Stop(ctx context.Context) error
	}

	// Service is the API logic, independent of the HTTP framework
	Service interface {
		CreateTemplate(ctx context.Context, template *persistence.Template) *ErrorWithStatus
		UpdateTemplate(ctx context.Context, name string, template *persistence.Template) *ErrorWithStatus
		GetTemplates(ctx context.Context) ([]*persistence.Template, *ErrorWithStatus)
		GetTemplate(ctx context.Context, name string) (*persistence.Template, *ErrorWithStatus)
		DeleteTemplate(ctx context.Context, name string) *ErrorWithStatus

		// ExecuteFlow starts a process and returns as soon as it is persisted.
		// The first task is dispatched in the background.
		ExecuteFlow(ctx context.Context, flowName string, request persistence.TriggerRequest) (string, *ErrorWithStatus)
		// ContinueFlow re-dispatches the failed task of an errored process
		ContinueFlow(ctx context.Context, processUuid string, processName string) *ErrorWithStatus
		GetFlows(ctx context.Context, query workflow.ProcessListQuery) ([]*persistence.Process, *ErrorWithStatus)
	}
)
