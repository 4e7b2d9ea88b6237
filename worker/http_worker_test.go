// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence"
)

type capturedPublish struct {
	topic   string
	message mq.Message
}

type capturingPublisher struct {
	published []capturedPublish
}

func (c *capturingPublisher) Publish(_ context.Context, topic string, message mq.Message) error {
	c.published = append(c.published, capturedPublish{topic: topic, message: message})
	return nil
}

func (c *capturingPublisher) Close() error { return nil }

func newTestWorker() (*HttpWorker, *capturingPublisher) {
	publisher := &capturingPublisher{}
	cfg := config.Config{}
	cfg.AsyncService.HttpWorker.RequestTimeout = 5 * time.Second
	return NewHttpWorker(cfg, publisher, log.NewDevelopmentLogger()), publisher
}

func taskMessage(url string) mq.Message {
	return mq.Message{
		Headers: persistence.JSONObject{
			mq.HeaderProcessId:   "process-1",
			mq.HeaderTaskId:      "task-1",
			mq.HeaderInformTopic: "test.inform",
		},
		Payload: persistence.JSONObject{
			"request": map[string]interface{}{
				"url":     url,
				"method":  "POST",
				"payload": map[string]interface{}{"k": "v"},
				"query":   map[string]interface{}{"page": float64(2)},
				"headers": map[string]interface{}{"x-custom": "yes"},
			},
		},
	}
}

func TestHandlePublishesResultOnInformTopic(t *testing.T) {
	var received struct {
		method string
		query  string
		header string
		body   map[string]interface{}
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.method = r.Method
		received.query = r.URL.Query().Get("page")
		received.header = r.Header.Get("x-custom")
		_ = json.NewDecoder(r.Body).Decode(&received.body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created":true}`))
	}))
	defer server.Close()

	worker, publisher := newTestWorker()
	require.NoError(t, worker.Handle(context.Background(), taskMessage(server.URL)))

	assert.Equal(t, "POST", received.method)
	assert.Equal(t, "2", received.query)
	assert.Equal(t, "yes", received.header)
	assert.Equal(t, map[string]interface{}{"k": "v"}, received.body)

	require.Len(t, publisher.published, 1)
	result := publisher.published[0]
	assert.Equal(t, "test.inform", result.topic)
	assert.Equal(t, "process-1", result.message.Headers[mq.HeaderProcessId])
	assert.Equal(t, "task-1", result.message.Headers[mq.HeaderTaskId])
	assert.Equal(t, http.StatusCreated, result.message.Headers[mq.HeaderResponseCode])
	assert.NotEmpty(t, result.message.Headers[mq.HeaderTaskFinishedOn])
	assert.Equal(t, persistence.JSONObject{"created": true}, result.message.Payload)
}

func TestHandleReportsErrorStatusWithoutFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream"}`))
	}))
	defer server.Close()

	worker, publisher := newTestWorker()
	require.NoError(t, worker.Handle(context.Background(), taskMessage(server.URL)))

	require.Len(t, publisher.published, 1)
	assert.Equal(t, http.StatusBadGateway, publisher.published[0].message.Headers[mq.HeaderResponseCode])
}

func TestHandleWrapsNonJsonBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer server.Close()

	worker, publisher := newTestWorker()
	require.NoError(t, worker.Handle(context.Background(), taskMessage(server.URL)))

	require.Len(t, publisher.published, 1)
	assert.Equal(t, persistence.JSONObject{"body": "plain text"}, publisher.published[0].message.Payload)
}

func TestHandleTransportFailureReturnsError(t *testing.T) {
	worker, publisher := newTestWorker()
	err := worker.Handle(context.Background(), taskMessage("http://127.0.0.1:1/unreachable"))
	assert.Error(t, err)
	assert.Empty(t, publisher.published)
}

func TestHandleDropsMalformedEnvelope(t *testing.T) {
	worker, publisher := newTestWorker()
	require.NoError(t, worker.Handle(context.Background(), mq.Message{
		Payload: persistence.JSONObject{"nope": true},
	}))
	assert.Empty(t, publisher.published)
}
