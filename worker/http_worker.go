// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence"
)

// HttpWorker executes HTTP tasks on behalf of the engine. It consumes the
// request envelope the dispatch gateway published, performs the call and
// publishes the outcome on the inform topic named in the correlation
// headers, so the engine sees HTTP tasks exactly like queue tasks.
type HttpWorker struct {
	client    *http.Client
	publisher mq.Publisher
	logger    log.Logger
}

func NewHttpWorker(cfg config.Config, publisher mq.Publisher, logger log.Logger) *HttpWorker {
	return &HttpWorker{
		client: &http.Client{
			Timeout: cfg.AsyncService.HttpWorker.RequestTimeout,
		},
		publisher: publisher,
		logger:    logger,
	}
}

// Handle processes one dispatched HTTP task. Transport failures return an
// error so the broker redelivers; an HTTP response of any status code is a
// completed call and is reported back as-is for the engine to judge.
func (w *HttpWorker) Handle(ctx context.Context, message mq.Message) error {
	request, ok := message.Payload["request"].(map[string]interface{})
	if !ok {
		w.logger.Error("http task message has no request object", tag.Value(message.Payload))
		return nil
	}
	targetUrl, _ := request["url"].(string)
	method, _ := request["method"].(string)
	if targetUrl == "" || method == "" {
		w.logger.Error("http task request is missing url or method", tag.Value(request))
		return nil
	}
	informTopic := mq.HeaderString(message.Headers, mq.HeaderInformTopic)
	if informTopic == "" {
		w.logger.Error("http task message has no inform topic", tag.Value(message.Headers))
		return nil
	}

	statusCode, body, err := w.perform(ctx, method, targetUrl, request)
	if err != nil {
		w.logger.Error("http task call failed, message will be redelivered",
			tag.Value(targetUrl), tag.Error(err))
		return err
	}

	headers := persistence.JSONObject{
		mq.HeaderProcessId:      mq.HeaderString(message.Headers, mq.HeaderProcessId),
		mq.HeaderTaskId:         mq.HeaderString(message.Headers, mq.HeaderTaskId),
		mq.HeaderResponseCode:   statusCode,
		mq.HeaderTaskFinishedOn: time.Now().Format(time.RFC3339Nano),
	}
	if err := w.publisher.Publish(ctx, informTopic, mq.Message{
		Headers: headers,
		Payload: body,
	}); err != nil {
		return fmt.Errorf("publishing http task result: %w", err)
	}
	w.logger.Debug("http task executed",
		tag.Value(targetUrl), tag.StatusCode(statusCode), tag.Topic(informTopic))
	return nil
}

func (w *HttpWorker) perform(ctx context.Context, method, targetUrl string, request map[string]interface{}) (int, persistence.JSONObject, error) {
	fullUrl, err := buildUrl(targetUrl, request["query"])
	if err != nil {
		return 0, nil, err
	}

	var body io.Reader
	if payload, ok := request["payload"].(map[string]interface{}); ok && method != http.MethodGet {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullUrl, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := request["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, decodeBody(raw), nil
}

func buildUrl(targetUrl string, query interface{}) (string, error) {
	params, ok := query.(map[string]interface{})
	if !ok || len(params) == 0 {
		return targetUrl, nil
	}
	parsed, err := url.Parse(targetUrl)
	if err != nil {
		return "", err
	}
	values := parsed.Query()
	for k, v := range params {
		values.Set(k, fmt.Sprintf("%v", v))
	}
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}

// decodeBody keeps non-JSON bodies by wrapping the raw text
func decodeBody(raw []byte) persistence.JSONObject {
	if len(raw) == 0 {
		return persistence.JSONObject{}
	}
	var body persistence.JSONObject
	if err := json.Unmarshal(raw, &body); err != nil {
		return persistence.JSONObject{"body": string(raw)}
	}
	return body
}
