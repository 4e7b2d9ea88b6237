// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package mq

import (
	"context"

	"github.com/maestroio/maestro/persistence"
)

type (
	// Message is the envelope published on every topic. It mirrors the task
	// request shape so a QUEUE task's request can be published as-is.
	Message struct {
		Headers persistence.JSONObject `json:"headers,omitempty"`
		Payload persistence.JSONObject `json:"payload,omitempty"`
		Params  persistence.JSONObject `json:"params,omitempty"`
		Query   persistence.JSONObject `json:"query,omitempty"`
	}

	// Publisher is the outbound side of the queue collaborator.
	// Fire-and-forget with at-least-once delivery assumed from the broker.
	Publisher interface {
		Publish(ctx context.Context, topic string, message Message) error
		Close() error
	}

	// Handler consumes one inbound message. Returning an error nacks the
	// message so the broker redelivers it.
	Handler func(ctx context.Context, message Message) error

	// Consumer routes inbound topics to handlers
	Consumer interface {
		// Subscribe registers the handler for a topic. Must be called before Start.
		Subscribe(topic string, handler Handler)
		Start() error
		Stop() error
	}
)
