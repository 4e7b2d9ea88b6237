// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/worker"
	"github.com/maestroio/maestro/workflow"
)

type defaultServer struct {
	rootCtx context.Context
	cfg     config.Config
	logger  log.Logger
	svc     Service
}

func NewDefaultAsyncServer(
	rootCtx context.Context,
	cfg config.Config,
	consumer mq.Consumer,
	engine workflow.Engine,
	httpWorker *worker.HttpWorker,
	logger log.Logger,
) Server {
	svc := NewAsyncServiceImpl(cfg, consumer, engine, httpWorker, logger)
	return &defaultServer{
		rootCtx: rootCtx,
		cfg:     cfg,
		logger:  logger,
		svc:     svc,
	}
}

func (s defaultServer) Start() error {
	if err := s.svc.Start(); err != nil {
		return err
	}
	s.logger.Info("Async service is started",
		tag.Value(s.cfg.AsyncService.Topics))
	return nil
}

func (s defaultServer) Stop(ctx context.Context) error {
	return s.svc.Stop(ctx)
}
