// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/persistence"
	"github.com/maestroio/maestro/workflow"
)

const (
	PathTemplates    = "/templates"
	PathTemplateById = "/templates/:templateId"
	PathExecuteFlow  = "/executeFlow/:flowId"
	PathContinueFlow = "/continueFlow"
	PathFlows        = "/flows"
)

type defaultServer struct {
	rootCtx    context.Context
	cfg        config.Config
	logger     log.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func NewDefaultAPIServerWithGin(
	rootCtx context.Context,
	cfg config.Config,
	templates persistence.TemplateStore,
	wfEngine workflow.Engine,
	logger log.Logger,
) Server {
	engine := gin.Default()

	handler := newGinHandler(cfg, templates, wfEngine, logger)

	engine.POST(PathTemplates, handler.CreateTemplate)
	engine.GET(PathTemplates, handler.GetTemplates)
	engine.GET(PathTemplateById, handler.GetTemplate)
	engine.PATCH(PathTemplateById, handler.UpdateTemplate)
	engine.DELETE(PathTemplateById, handler.DeleteTemplate)
	engine.POST(PathExecuteFlow, handler.ExecuteFlow)
	engine.POST(PathContinueFlow, handler.ContinueFlow)
	engine.GET(PathFlows, handler.GetFlows)

	svrCfg := cfg.ApiService.HttpServer
	httpServer := &http.Server{
		Addr:              svrCfg.Address,
		ReadTimeout:       svrCfg.ReadTimeout,
		WriteTimeout:      svrCfg.WriteTimeout,
		ReadHeaderTimeout: svrCfg.ReadHeaderTimeout,
		IdleTimeout:       svrCfg.IdleTimeout,
		MaxHeaderBytes:    svrCfg.MaxHeaderBytes,
		TLSConfig:         svrCfg.TLSConfig,
		Handler:           engine,
		BaseContext: func(listener net.Listener) context.Context {
			// for graceful shutdown
			return rootCtx
		},
	}

	return &defaultServer{
		rootCtx:    rootCtx,
		cfg:        cfg,
		logger:     logger,
		engine:     engine,
		httpServer: httpServer,
	}
}

func (s defaultServer) Start() error {
	go func() {
		err := s.httpServer.ListenAndServe()
		s.logger.Info("Http Server for API service is closed", tag.Error(err))
	}()

	return nil
}

func (s defaultServer) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
