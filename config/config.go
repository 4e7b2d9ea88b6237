// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		// Log is the logging config
		Log Logger `yaml:"log"`

		// Database is the database holding templates and processes
		Database DatabaseConfig `yaml:"database"`

		// ApiService is the API service config
		ApiService ApiServiceConfig `yaml:"apiService"`

		// AsyncService is config for the async (queue-driven) service
		AsyncService AsyncServiceConfig `yaml:"asyncService"`
	}

	DatabaseConfig struct {
		// SQL is the SQL database config
		SQL *SQL `yaml:"sql"`
	}

	ApiServiceConfig struct {
		// HttpServer is the config for starting http.Server
		HttpServer HttpServerConfig `yaml:"httpServer"`
	}

	AsyncServiceConfig struct {
		// MessageQueue is the broker config
		MessageQueue MessageQueueConfig `yaml:"messageQueue"`
		// Topics is the map of inbound/outbound topics
		Topics TopicsConfig `yaml:"topics"`
		// HttpWorker is the config for the generic HTTP-calling worker
		HttpWorker HttpWorkerConfig `yaml:"httpWorker"`
	}

	// HttpServerConfig is the config that will be mapped into http.Server
	HttpServerConfig struct {
		// Address optionally specifies the TCP address for the server to listen on,
		// in the form "host:port". If empty, ":http" (port 80) is used.
		// For more details, see https://blog.cloudflare.com/the-complete-guide-to-golang-net-http-timeouts/
		Address string `yaml:"address"`
		// ReadTimeout is the maximum duration for reading the entire
		// request, including the body.
		ReadTimeout time.Duration `yaml:"readTimeout"`
		// WriteTimeout is the maximum duration before timing out
		// writes of the response.
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		// TLSConfig optionally provides a TLS configuration for use
		// by ServeTLS and ListenAndServeTLS
		TLSConfig *tls.Config `yaml:"tlsConfig"`
		// the rest are less frequently used
		ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
		IdleTimeout       time.Duration `yaml:"idleTimeout"`
		MaxHeaderBytes    int           `yaml:"maxHeaderBytes"`
	}

	// TopicsConfig names every topic the engine publishes to or consumes from.
	// The correlation headers carry Inform back to the callback consumer, so
	// all task types flow through the same queue-based mechanism.
	TopicsConfig struct {
		// Execute is the inbound topic to trigger a flow, equivalent to POST /executeFlow
		Execute string `yaml:"execute"`
		// Inform is the task completion callback topic
		Inform string `yaml:"inform"`
		// Continue carries the internal continuation signal {payload:{processUuid}}
		Continue string `yaml:"continue"`
		// HandleHttp is consumed by the generic HTTP-calling worker
		HandleHttp string `yaml:"handleHttp"`
		// UnhandledFlows receives trigger requests for unknown templates, for manual triage
		UnhandledFlows string `yaml:"unhandledFlows"`
		// InconsistentResponses receives schema-mismatch diagnostics
		InconsistentResponses string `yaml:"inconsistentResponses"`
	}

	HttpWorkerConfig struct {
		// RequestTimeout caps a single outbound HTTP call made on behalf of a task.
		// If not specified then the default value of 30 seconds is used.
		RequestTimeout time.Duration `yaml:"requestTimeout"`
	}
)

// NewConfig returns a new decoded Config struct
func NewConfig(configPath string) (*Config, error) {
	log.Printf("Loading configFile=%v\n", configPath)

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)

	if err := d.Decode(&config); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) ValidateAndSetDefaults() error {
	if c.Database.SQL == nil {
		return fmt.Errorf("sql config is required")
	}
	sql := c.Database.SQL
	if anyAbsent(sql.DatabaseName, sql.ConnectAddr, sql.User) {
		return fmt.Errorf("some required configs are missing: sql.DatabaseName, sql.ConnectAddr, sql.User")
	}
	mq := &c.AsyncService.MessageQueue
	if mq.Pulsar == nil {
		return fmt.Errorf("pulsar config is required")
	}
	if mq.Pulsar.BrokerURL == "" {
		return fmt.Errorf("asyncService.messageQueue.pulsar.brokerURL cannot be empty")
	}
	if mq.Pulsar.Subscription == "" {
		mq.Pulsar.Subscription = "maestro-workflow"
	}
	topics := &c.AsyncService.Topics
	if topics.Execute == "" {
		topics.Execute = "maestro.workflow.execute"
	}
	if topics.Inform == "" {
		topics.Inform = "maestro.workflow.inform"
	}
	if topics.Continue == "" {
		topics.Continue = "maestro.workflow.continue"
	}
	if topics.HandleHttp == "" {
		topics.HandleHttp = "maestro.http"
	}
	if topics.UnhandledFlows == "" {
		topics.UnhandledFlows = "maestro.workflow.unhandled"
	}
	if topics.InconsistentResponses == "" {
		topics.InconsistentResponses = "maestro.workflow.inconsistent"
	}
	if c.AsyncService.HttpWorker.RequestTimeout == 0 {
		c.AsyncService.HttpWorker.RequestTimeout = 30 * time.Second
	}
	return nil
}

func anyAbsent(strs ...string) bool {
	for _, s := range strs {
		if s == "" {
			return true
		}
	}
	return false
}

// String converts the config object into a string
func (c *Config) String() string {
	out, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		panic(err)
	}
	return string(out)
}
