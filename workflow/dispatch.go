// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence"
)

// DispatchGateway hands a started task to its executor. QUEUE tasks go
// straight to the task's own topic; HTTP tasks are wrapped for the http
// worker, which performs the request and publishes the result back on
// the inform topic named in the correlation headers.
type DispatchGateway interface {
	Dispatch(ctx context.Context, processUuid string, task *persistence.TaskExecution) error
}

type dispatchGateway struct {
	publisher mq.Publisher
	topics    config.TopicsConfig
}

func NewDispatchGateway(publisher mq.Publisher, topics config.TopicsConfig) DispatchGateway {
	return &dispatchGateway{
		publisher: publisher,
		topics:    topics,
	}
}

func (d *dispatchGateway) Dispatch(ctx context.Context, processUuid string, task *persistence.TaskExecution) error {
	switch task.Type {
	case persistence.TaskTypeQueue:
		return d.dispatchQueue(ctx, processUuid, task)
	case persistence.TaskTypeHTTP:
		return d.dispatchHTTP(ctx, processUuid, task)
	default:
		return fmt.Errorf("task %v has unsupported type %v", task.TaskUuid, task.Type)
	}
}

func (d *dispatchGateway) dispatchQueue(ctx context.Context, processUuid string, task *persistence.TaskExecution) error {
	headers := persistence.JSONObject{}
	for k, v := range task.Request.Headers {
		headers[k] = v
	}
	headers[mq.HeaderProcessId] = processUuid
	headers[mq.HeaderTaskId] = task.TaskUuid
	headers[mq.HeaderInformTopic] = d.topics.Inform

	return d.publisher.Publish(ctx, task.ExecutionInfo.Topic, mq.Message{
		Headers: headers,
		Payload: task.Request.Payload,
		Params:  task.Request.Params,
		Query:   task.Request.Query,
	})
}

// dispatchHTTP publishes the full request description for the http worker.
// The worker-facing envelope nests the original request under payload.request
// so the task's own headers travel with the request instead of on the
// message envelope.
func (d *dispatchGateway) dispatchHTTP(ctx context.Context, processUuid string, task *persistence.TaskExecution) error {
	method := strings.ToUpper(task.ExecutionInfo.Method)
	if method == "" {
		method = "GET"
	}
	request := persistence.JSONObject{
		"url":     task.ExecutionInfo.Url,
		"method":  method,
		"payload": task.Request.Payload,
		"params":  task.Request.Params,
		"query":   task.Request.Query,
		"headers": task.Request.Headers,
	}
	return d.publisher.Publish(ctx, d.topics.HandleHttp, mq.Message{
		Headers: persistence.JSONObject{
			mq.HeaderProcessId:   processUuid,
			mq.HeaderTaskId:      task.TaskUuid,
			mq.HeaderInformTopic: d.topics.Inform,
		},
		Payload: persistence.JSONObject{"request": request},
	})
}
