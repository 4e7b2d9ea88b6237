// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package config

type (
	MessageQueueConfig struct {
		// Pulsar is the Apache Pulsar broker config.
		// It is the only supported message queue for now.
		Pulsar *PulsarMQConfig `yaml:"pulsar"`
	}

	PulsarMQConfig struct {
		// BrokerURL is the pulsar service URL, e.g. pulsar://localhost:6650
		BrokerURL string `yaml:"brokerURL"`
		// Subscription is the shared subscription name used by the consumer.
		// If not specified then "maestro-workflow" is used.
		Subscription string `yaml:"subscription"`
	}
)
