// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package async

import "context"

type (
	// Server is the async service that consumes the workflow topics
	Server interface {
		// Start starts the server in a non-blocking way
		Start() error
		// Stop stops the server gracefully
		Stop(ctx context.Context) error
	}

	// Service binds the queue topics to the engine and the http worker
	Service interface {
		Start() error
		Stop(ctx context.Context) error
	}
)
