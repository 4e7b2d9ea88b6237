// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package mq

import (
	"context"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/goccy/go-json"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/config"
)

type pulsarPublisher struct {
	client pulsar.Client
	logger log.Logger

	mu        sync.Mutex
	producers map[string]pulsar.Producer
}

func NewPulsarPublisher(cfg config.Config, logger log.Logger) (Publisher, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: cfg.AsyncService.MessageQueue.Pulsar.BrokerURL,
	})
	if err != nil {
		return nil, err
	}
	return &pulsarPublisher{
		client:    client,
		logger:    logger,
		producers: map[string]pulsar.Producer{},
	}, nil
}

// NewPulsarPublisherWithClient shares an existing client with the consumer
func NewPulsarPublisherWithClient(client pulsar.Client, logger log.Logger) Publisher {
	return &pulsarPublisher{
		client:    client,
		logger:    logger,
		producers: map[string]pulsar.Producer{},
	}
}

func (p *pulsarPublisher) Publish(ctx context.Context, topic string, message Message) error {
	producer, err := p.producerFor(topic)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	_, err = producer.Send(ctx, &pulsar.ProducerMessage{
		Payload: payload,
	})
	if err != nil {
		p.logger.Error("failed to publish message", tag.Topic(topic), tag.Error(err))
		return err
	}
	p.logger.Debug("message published", tag.Topic(topic))
	return nil
}

// producerFor lazily creates one producer per topic and caches it
func (p *pulsarPublisher) producerFor(topic string) (pulsar.Producer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if producer, ok := p.producers[topic]; ok {
		return producer, nil
	}
	producer, err := p.client.CreateProducer(pulsar.ProducerOptions{
		Topic: topic,
	})
	if err != nil {
		return nil, err
	}
	p.producers[topic] = producer
	return producer, nil
}

func (p *pulsarPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, producer := range p.producers {
		producer.Close()
	}
	p.producers = map[string]pulsar.Producer{}
	return nil
}
