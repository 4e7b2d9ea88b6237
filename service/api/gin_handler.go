// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence"
	"github.com/maestroio/maestro/workflow"
)

type ginHandler struct {
	config config.Config
	logger log.Logger
	svc    Service
}

func newGinHandler(
	cfg config.Config, templates persistence.TemplateStore, engine workflow.Engine, logger log.Logger,
) *ginHandler {
	svc := NewServiceImpl(cfg, templates, engine, logger)
	return &ginHandler{
		config: cfg,
		logger: logger,
		svc:    svc,
	}
}

func (h *ginHandler) CreateTemplate(c *gin.Context) {
	var template persistence.Template
	if err := c.ShouldBindJSON(&template); err != nil {
		invalidRequestSchema(c, err)
		return
	}
	if errResp := h.svc.CreateTemplate(c.Request.Context(), &template); errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Body)
		return
	}
	c.JSON(templateCreatedOk.statusCode, templateCreatedOk.body(nil, nil))
}

func (h *ginHandler) UpdateTemplate(c *gin.Context) {
	var template persistence.Template
	if err := c.ShouldBindJSON(&template); err != nil {
		invalidRequestSchema(c, err)
		return
	}
	if errResp := h.svc.UpdateTemplate(c.Request.Context(), c.Param("templateId"), &template); errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Body)
		return
	}
	c.JSON(templateUpdatedOk.statusCode, templateUpdatedOk.body(nil, nil))
}

func (h *ginHandler) GetTemplates(c *gin.Context) {
	templates, errResp := h.svc.GetTemplates(c.Request.Context())
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Body)
		return
	}
	c.JSON(templateRetrievedOk.statusCode, templateRetrievedOk.body(templates, nil))
}

func (h *ginHandler) GetTemplate(c *gin.Context) {
	template, errResp := h.svc.GetTemplate(c.Request.Context(), c.Param("templateId"))
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Body)
		return
	}
	c.JSON(templateRetrievedOk.statusCode, templateRetrievedOk.body(template, nil))
}

func (h *ginHandler) DeleteTemplate(c *gin.Context) {
	if errResp := h.svc.DeleteTemplate(c.Request.Context(), c.Param("templateId")); errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Body)
		return
	}
	c.JSON(templateDeletedOk.statusCode, templateDeletedOk.body(nil, nil))
}

func (h *ginHandler) ExecuteFlow(c *gin.Context) {
	var payload persistence.JSONObject
	if err := c.ShouldBindJSON(&payload); err != nil {
		invalidRequestSchema(c, err)
		return
	}

	// the flow to run comes from the x-flowid header, defaulting to the path
	flowName := c.GetHeader(mq.HeaderFlowId)
	if flowName == "" {
		flowName = c.Param("flowId")
	}
	request := persistence.TriggerRequest{
		Payload: payload,
		TraceId: c.GetHeader("x-traceid"),
	}

	processUuid, errResp := h.svc.ExecuteFlow(c.Request.Context(), flowName, request)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Body)
		return
	}
	c.JSON(processStartedOk.statusCode,
		processStartedOk.body(nil, persistence.JSONObject{"processUuid": processUuid}))
}

func (h *ginHandler) ContinueFlow(c *gin.Context) {
	var req struct {
		ProcessUuid string `json:"processUuid" binding:"required"`
		ProcessName string `json:"processName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestSchema(c, err)
		return
	}
	if errResp := h.svc.ContinueFlow(c.Request.Context(), req.ProcessUuid, req.ProcessName); errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Body)
		return
	}
	c.JSON(processInformedOk.statusCode, processInformedOk.body(nil, nil))
}

func (h *ginHandler) GetFlows(c *gin.Context) {
	query := workflow.ProcessListQuery{
		ProcessName: c.Query("processName"),
		ProcessUuid: c.Query("processUuid"),
		Status:      c.Query("status"),
	}
	var err error
	if query.From, err = parseDateQuery(c.Query("from")); err != nil {
		invalidRequestSchema(c, err)
		return
	}
	if query.To, err = parseDateQuery(c.Query("to")); err != nil {
		invalidRequestSchema(c, err)
		return
	}

	processes, errResp := h.svc.GetFlows(c.Request.Context(), query)
	if errResp != nil {
		c.JSON(errResp.StatusCode, errResp.Body)
		return
	}
	c.JSON(flowsRetrievedOk.statusCode, flowsRetrievedOk.body(processes, nil))
}

func parseDateQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q, expected RFC3339 or YYYY-MM-DD", raw)
}

func invalidRequestSchema(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ResponseBody{
		Result: Result{Code: "40000", Message: "invalid request schema: " + err.Error()},
	})
}
