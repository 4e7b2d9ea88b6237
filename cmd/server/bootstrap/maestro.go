// Copyright (c) 2023 Maestro Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"fmt"
	rawLog "log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/maestroio/maestro/common/log"
	"github.com/maestroio/maestro/common/log/tag"
	"github.com/maestroio/maestro/config"
	"github.com/maestroio/maestro/mq"
	"github.com/maestroio/maestro/persistence/sql"
	"github.com/maestroio/maestro/service/api"
	"github.com/maestroio/maestro/service/async"
	"github.com/maestroio/maestro/worker"
	"github.com/maestroio/maestro/workflow"
)

const ApiServiceName = "api"
const AsyncServiceName = "async"

const FlagConfig = "config"
const FlagService = "service"

func StartMaestroServerCli(c *cli.Context) {
	// register interrupt signal for graceful shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := c.String(FlagConfig)
	services := getServices(c)

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		rawLog.Fatalf("Unable to load config for path %v because of error %v", configPath, err)
	}
	shutdownFunc := StartMaestroServer(rootCtx, cfg, services)
	// wait for os signals
	<-rootCtx.Done()

	ctx, cancF := context.WithTimeout(context.Background(), time.Second*10)
	defer cancF()
	err = shutdownFunc(ctx)
	if err != nil {
		fmt.Println("shutdown error:", err)
	}
}

type GracefulShutdown func(ctx context.Context) error

func StartMaestroServer(rootCtx context.Context, cfg *config.Config, services map[string]bool) GracefulShutdown {
	if len(services) == 0 {
		services = map[string]bool{ApiServiceName: true, AsyncServiceName: true}
	}

	zapLogger, err := cfg.Log.NewZapLogger()
	if err != nil {
		rawLog.Fatalf("Unable to create a new zap logger %v", err)
	}
	logger := log.NewLogger(zapLogger)
	logger.Info("config is loaded", tag.Value(cfg.String()))
	err = cfg.ValidateAndSetDefaults()
	if err != nil {
		logger.Fatal("config is invalid", tag.Error(err))
	}

	db, err := sql.NewSQLSession(cfg.Database.SQL)
	if err != nil {
		logger.Fatal("error on persistence setup", tag.Error(err))
	}
	templateStore := sql.NewSQLTemplateStoreWithDB(db, logger)
	processStore := sql.NewSQLProcessStoreWithDB(db, logger)

	pulsarClient, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: cfg.AsyncService.MessageQueue.Pulsar.BrokerURL,
	})
	if err != nil {
		logger.Fatal("error on message queue setup", tag.Error(err))
	}
	publisher := mq.NewPulsarPublisherWithClient(pulsarClient, logger)

	engine := workflow.NewEngine(
		templateStore, processStore, publisher, cfg.AsyncService.Topics, logger)

	var apiServer api.Server
	if services[ApiServiceName] {
		apiServer = api.NewDefaultAPIServerWithGin(
			rootCtx, *cfg, templateStore, engine, logger.WithTags(tag.Service(ApiServiceName)))
		err = apiServer.Start()
		if err != nil {
			logger.Fatal("Failed to start api server", tag.Error(err))
		}
	}

	var asyncServer async.Server
	if services[AsyncServiceName] {
		consumer := mq.NewPulsarConsumer(rootCtx, *cfg, pulsarClient, logger)
		httpWorker := worker.NewHttpWorker(*cfg, publisher, logger)
		asyncServer = async.NewDefaultAsyncServer(
			rootCtx, *cfg, consumer, engine, httpWorker, logger.WithTags(tag.Service(AsyncServiceName)))
		err = asyncServer.Start()
		if err != nil {
			logger.Fatal("Failed to start async server", tag.Error(err))
		}
	}

	return func(ctx context.Context) error {
		// graceful shutdown
		var errs error
		// first stop taking new requests
		if apiServer != nil {
			err := apiServer.Stop(ctx)
			if err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		if asyncServer != nil {
			err := asyncServer.Stop(ctx)
			if err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		if err := publisher.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
		pulsarClient.Close()
		if err := templateStore.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
		if err := processStore.Close(); err != nil {
			errs = multierr.Append(errs, err)
		}
		return errs
	}
}

func getServices(c *cli.Context) map[string]bool {
	val := strings.TrimSpace(c.String(FlagService))
	tokens := strings.Split(val, ",")

	if len(tokens) == 0 {
		rawLog.Fatal("No services specified for starting")
	}

	services := map[string]bool{}
	for _, token := range tokens {
		t := strings.TrimSpace(token)
		services[t] = true
	}

	return services
}
