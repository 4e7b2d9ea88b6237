// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import "errors"

// Domain errors surfaced to the API facade. Anything else coming out of the
// engine is a storage/publish failure and maps to a 500.
var (
	ErrTemplateNotFound = errors.New("no workflow template was found with the specified parameters")
	ErrProcessNotFound  = errors.New("no workflow process was found")
	ErrTaskNotFound     = errors.New("no task was found in the process for the received callback")
	ErrProcessCompleted = errors.New("the workflow cant continue because is already completed")
)
