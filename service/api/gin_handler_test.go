// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence"
)

func newTestRouter(engine *stubEngine) (*gin.Engine, *stubTemplateStore) {
	gin.SetMode(gin.TestMode)
	store := &stubTemplateStore{templates: map[string]*persistence.Template{}}
	handler := newGinHandler(config.Config{}, store, engine, log.NewDevelopmentLogger())

	router := gin.New()
	router.POST(PathTemplates, handler.CreateTemplate)
	router.GET(PathTemplates, handler.GetTemplates)
	router.GET(PathTemplateById, handler.GetTemplate)
	router.PATCH(PathTemplateById, handler.UpdateTemplate)
	router.DELETE(PathTemplateById, handler.DeleteTemplate)
	router.POST(PathExecuteFlow, handler.ExecuteFlow)
	router.POST(PathContinueFlow, handler.ContinueFlow)
	router.GET(PathFlows, handler.GetFlows)
	return router, store
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) ResponseBody {
	t.Helper()
	var body ResponseBody
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestTemplateEndpoints(t *testing.T) {
	router, store := newTestRouter(&stubEngine{})

	recorder := doRequest(t, router, http.MethodPost, "/templates", queueTemplate("someFlow"), nil)
	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "20100", decodeBody(t, recorder).Result.Code)
	assert.Contains(t, store.templates, "someFlow")

	recorder = doRequest(t, router, http.MethodGet, "/templates", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "20000", body.Result.Code)
	assert.NotNil(t, body.Data)

	recorder = doRequest(t, router, http.MethodPatch, "/templates/someFlow", queueTemplate("someFlow"), nil)
	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "20101", decodeBody(t, recorder).Result.Code)

	recorder = doRequest(t, router, http.MethodDelete, "/templates/someFlow", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "20001", decodeBody(t, recorder).Result.Code)

	recorder = doRequest(t, router, http.MethodGet, "/templates/someFlow", nil, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "40000", decodeBody(t, recorder).Result.Code)
}

func TestCreateTemplateRejectsInvalidBody(t *testing.T) {
	router, _ := newTestRouter(&stubEngine{})

	recorder := doRequest(t, router, http.MethodPost, "/templates",
		persistence.JSONObject{"name": "noTasks"}, nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "40000", decodeBody(t, recorder).Result.Code)
}

func TestExecuteFlowUsesPathParamAsDefaultFlowId(t *testing.T) {
	engine := &stubEngine{startedUuid: "uuid-1", dispatchCalls: make(chan string, 1)}
	router, _ := newTestRouter(engine)

	recorder := doRequest(t, router, http.MethodPost, "/executeFlow/pathFlow",
		persistence.JSONObject{"k": "v"}, nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	assert.Equal(t, "20002", body.Result.Code)
	assert.Equal(t, "pathFlow", engine.startedFlow)
	extra, ok := body.Extra.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "uuid-1", extra["processUuid"])

	select {
	case <-engine.dispatchCalls:
	case <-time.After(time.Second):
		t.Fatal("first task was never dispatched")
	}
}

func TestExecuteFlowHeaderOverridesPath(t *testing.T) {
	engine := &stubEngine{startedUuid: "uuid-1", dispatchCalls: make(chan string, 1)}
	router, _ := newTestRouter(engine)

	recorder := doRequest(t, router, http.MethodPost, "/executeFlow/pathFlow",
		persistence.JSONObject{"k": "v"}, map[string]string{mq.HeaderFlowId: "headerFlow"})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "headerFlow", engine.startedFlow)
	select {
	case <-engine.dispatchCalls:
	case <-time.After(time.Second):
		t.Fatal("first task was never dispatched")
	}
}

func TestContinueFlowRequiresBothFields(t *testing.T) {
	router, _ := newTestRouter(&stubEngine{})

	recorder := doRequest(t, router, http.MethodPost, "/continueFlow",
		persistence.JSONObject{"processUuid": "p"}, nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "40000", decodeBody(t, recorder).Result.Code)
}

func TestGetFlowsRejectsBadDates(t *testing.T) {
	router, _ := newTestRouter(&stubEngine{})

	recorder := doRequest(t, router, http.MethodGet, "/flows?from=notadate", nil, nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
