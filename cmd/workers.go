/*
Copyright 2025 Surgecart Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/surgecart/surge/broker"
	"github.com/surgecart/surge/config"
	redis_db "github.com/surgecart/surge/internal/redis-db"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// processOrderCreated handles an order-created task from the queue. The
// handler is idempotent, so asynq may redeliver freely.
func (s *surgeInstance) processOrderCreated(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("surge.orders.worker").Start(ctx, "Process Order From Queue")
	defer span.End()

	return s.surge.ProcessOrderCreated(ctx, t.Payload())
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.OrderExchange] = 3
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisOption.Addr,
			Password: redisOption.Password,
			DB:       redisOption.DB,
		},
		asynq.Config{
			Concurrency: conf.Queue.Concurrency,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(s *surgeInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(broker.TaskName(cfg.Queue.OrderExchange, cfg.Queue.OrderRoutingKey), s.processOrderCreated)
}

// workerCommands defines the "workers" command that consumes order-created
// messages from the queue.
func workerCommands(s *surgeInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start surge workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(s, mux)

			// Start asynqmon server for health checks and monitoring
			redisOption, _ := redis_db.ParseRedisURL(conf.Redis.Dns)
			h := asynqmon.New(asynqmon.Options{
				RootPath: "/monitoring",
				RedisConnOpt: asynq.RedisClientOpt{
					Addr:     redisOption.Addr,
					Password: redisOption.Password,
					DB:       redisOption.DB,
				},
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
