// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package persistence

import (
	"context"
	"time"
)

type (
	// TemplateStore persists versioned task-list definitions, keyed by name.
	// Updates are whole-document replacements without version checks.
	TemplateStore interface {
		Save(ctx context.Context, template *Template) error
		// UpdateTemplate replaces the template stored under name,
		// returning false when nothing matched
		UpdateTemplate(ctx context.Context, name string, template *Template) (bool, error)
		// Fetch returns nil without error when the template does not exist
		Fetch(ctx context.Context, name string) (*Template, error)
		FetchAll(ctx context.Context) ([]*Template, error)
		RemoveTemplate(ctx context.Context, name string) error
		Close() error
	}

	// ProcessQuery filters GetCompletedProcesses. All fields are optional.
	ProcessQuery struct {
		From        *time.Time
		To          *time.Time
		ProcessName string
		ProcessUuid string
	}

	// ProcessStore persists process instances, keyed by uuid.
	// Writes are whole-document replacements, last writer wins.
	ProcessStore interface {
		Save(ctx context.Context, process *Process) error
		UpdateProcess(ctx context.Context, processUuid string, process *Process) error
		// Fetch returns nil without error when the process does not exist
		Fetch(ctx context.Context, processUuid string) (*Process, error)
		GetCompletedProcesses(ctx context.Context, query ProcessQuery) ([]*Process, error)
		Close() error
	}
)
