// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package mq

import (
	"context"
	"strings"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/goccy/go-json"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/config"
)

type pulsarConsumer struct {
	rootCtx  context.Context
	cfg      config.Config
	client   pulsar.Client
	consumer pulsar.Consumer
	handlers map[string]Handler
	stopCh   chan struct{}
	logger   log.Logger
}

// NewPulsarConsumer routes the registered topics to their handlers over a
// shared subscription. A handler error nacks the message and the broker's
// redelivery policy takes it from there.
func NewPulsarConsumer(rootCtx context.Context, cfg config.Config, client pulsar.Client, logger log.Logger) Consumer {
	return &pulsarConsumer{
		rootCtx:  rootCtx,
		cfg:      cfg,
		client:   client,
		handlers: map[string]Handler{},
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (p *pulsarConsumer) Subscribe(topic string, handler Handler) {
	p.handlers[topic] = handler
}

func (p *pulsarConsumer) Start() error {
	topics := make([]string, 0, len(p.handlers))
	for topic := range p.handlers {
		topics = append(topics, topic)
	}
	consumer, err := p.client.Subscribe(pulsar.ConsumerOptions{
		Topics:           topics,
		SubscriptionName: p.cfg.AsyncService.MessageQueue.Pulsar.Subscription,
		Type:             pulsar.Shared,
	})
	if err != nil {
		return err
	}
	p.consumer = consumer
	// processing logic in a goroutine
	go p.processMessages()
	return nil
}

func (p *pulsarConsumer) Stop() error {
	close(p.stopCh)
	if p.consumer != nil {
		p.consumer.Close()
	}
	return nil
}

func (p *pulsarConsumer) processMessages() {
	msgCh := p.consumer.Chan()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				p.logger.Info("message channel is closed")
				return
			}
			p.handleMessage(msg)
		case <-p.stopCh:
			p.logger.Info("message processor is closed")
			return
		}
	}
}

func (p *pulsarConsumer) handleMessage(msg pulsar.ConsumerMessage) {
	topic := shortTopicName(msg.Message.Topic())
	handler, ok := p.handlers[topic]
	if !ok {
		p.logger.Warn("no handler registered for topic", tag.Topic(topic))
		_ = p.consumer.Ack(msg)
		return
	}

	var message Message
	if err := json.Unmarshal(msg.Message.Payload(), &message); err != nil {
		// a malformed envelope will never become valid, drop it
		p.logger.Error("failed to decode message envelope",
			tag.Topic(topic), tag.Error(err), tag.Value(string(msg.Message.Payload())))
		_ = p.consumer.Ack(msg)
		return
	}

	if err := handler(p.rootCtx, message); err != nil {
		p.logger.Error("handler failed, message will be redelivered",
			tag.Topic(topic), tag.Error(err))
		p.consumer.Nack(msg)
		return
	}
	if err := p.consumer.Ack(msg); err != nil {
		p.logger.Error("failed to ack the message after processing",
			tag.Topic(topic), tag.Error(err))
	}
}

// shortTopicName strips the persistent://tenant/namespace/ prefix pulsar
// reports on consumed messages
func shortTopicName(fullTopic string) string {
	idx := strings.LastIndex(fullTopic, "/")
	if idx < 0 {
		return fullTopic
	}
	return fullTopic[idx+1:]
}
