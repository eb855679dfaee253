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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	BrokerAsynq = "asynq"
	BrokerAMQP  = "amqp"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"SURGE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"SURGE_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"SURGE_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"SURGE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"SURGE_REDIS_DNS"`
}

// RateLimitConfig carries the admission ceilings. Zero values are replaced by
// the documented defaults on load, so an empty config still yields a working
// gate.
type RateLimitConfig struct {
	IPPerSecond      float64 `json:"ip_per_second" envconfig:"SURGE_RATE_LIMIT_IP_RPS"`
	IPBurst          float64 `json:"ip_burst" envconfig:"SURGE_RATE_LIMIT_IP_BURST"`
	UserPerSecond    float64 `json:"user_per_second" envconfig:"SURGE_RATE_LIMIT_USER_RPS"`
	UserBurst        float64 `json:"user_burst" envconfig:"SURGE_RATE_LIMIT_USER_BURST"`
	SeckillPerSecond float64 `json:"seckill_per_second" envconfig:"SURGE_RATE_LIMIT_SECKILL_RPS"`
	SeckillBurst     float64 `json:"seckill_burst" envconfig:"SURGE_RATE_LIMIT_SECKILL_BURST"`
	BucketTTLSec     int     `json:"bucket_ttl_sec" envconfig:"SURGE_RATE_LIMIT_BUCKET_TTL_SEC"`
	// FailOpen admits traffic when the bucket store is unreachable. The
	// default is fail-closed: a store outage rejects requests with a
	// distinguishable error instead of silently letting a flood through.
	FailOpen bool `json:"fail_open" envconfig:"SURGE_RATE_LIMIT_FAIL_OPEN"`
	// GlobalPerSecond caps the whole process before any per-key check runs.
	// Disabled when zero.
	GlobalPerSecond float64 `json:"global_per_second" envconfig:"SURGE_RATE_LIMIT_GLOBAL_RPS"`
}

// OutboxConfig tunes the delivery scanner.
type OutboxConfig struct {
	ScanIntervalSec   int `json:"scan_interval_sec" envconfig:"SURGE_OUTBOX_SCAN_INTERVAL_SEC"`
	BatchSize         int `json:"batch_size" envconfig:"SURGE_OUTBOX_BATCH_SIZE"`
	MaxRetry          int `json:"max_retry" envconfig:"SURGE_OUTBOX_MAX_RETRY"`
	RetryDelaySec     int `json:"retry_delay_sec" envconfig:"SURGE_OUTBOX_RETRY_DELAY_SEC"`
	PublishTimeoutSec int `json:"publish_timeout_sec" envconfig:"SURGE_OUTBOX_PUBLISH_TIMEOUT_SEC"`
}

type QueueConfig struct {
	Broker          string `json:"broker" envconfig:"SURGE_QUEUE_BROKER"`
	AmqpDns         string `json:"amqp_dns" envconfig:"SURGE_QUEUE_AMQP_DNS"`
	OrderExchange   string `json:"order_exchange" envconfig:"SURGE_QUEUE_ORDER_EXCHANGE"`
	OrderRoutingKey string `json:"order_routing_key" envconfig:"SURGE_QUEUE_ORDER_ROUTING_KEY"`
	ConsumerName    string `json:"consumer_name" envconfig:"SURGE_QUEUE_CONSUMER_NAME"`
	MonitoringPort  string `json:"monitoring_port" envconfig:"SURGE_QUEUE_MONITORING_PORT"`
	Concurrency     int    `json:"concurrency" envconfig:"SURGE_QUEUE_CONCURRENCY"`
}

type AuthConfig struct {
	JwtSecret string `json:"jwt_secret" envconfig:"SURGE_AUTH_JWT_SECRET"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"SURGE_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Outbox       OutboxConfig     `json:"outbox"`
	Queue        QueueConfig      `json:"queue"`
	Auth         AuthConfig       `json:"auth"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("surge", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called surge.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Surge Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.applyRateLimitDefaults()
	cnf.applyOutboxDefaults()
	return cnf.applyQueueDefaults()
}

func (cnf *Configuration) applyRateLimitDefaults() {
	rl := &cnf.RateLimit
	if rl.IPPerSecond <= 0 {
		rl.IPPerSecond = 100
	}
	if rl.UserPerSecond <= 0 {
		rl.UserPerSecond = 50
	}
	if rl.SeckillPerSecond <= 0 {
		rl.SeckillPerSecond = 10
	}
	// Burst defaults to the sustained rate, a bucket holding one second of
	// traffic.
	if rl.IPBurst <= 0 {
		rl.IPBurst = rl.IPPerSecond
	}
	if rl.UserBurst <= 0 {
		rl.UserBurst = rl.UserPerSecond
	}
	if rl.SeckillBurst <= 0 {
		rl.SeckillBurst = rl.SeckillPerSecond
	}
	if rl.BucketTTLSec <= 0 {
		rl.BucketTTLSec = 300
	}
}

func (cnf *Configuration) applyOutboxDefaults() {
	ob := &cnf.Outbox
	if ob.ScanIntervalSec <= 0 {
		ob.ScanIntervalSec = 5
	}
	if ob.BatchSize <= 0 {
		ob.BatchSize = 50
	}
	if ob.MaxRetry <= 0 {
		ob.MaxRetry = 3
	}
	if ob.RetryDelaySec <= 0 {
		ob.RetryDelaySec = 30
	}
	if ob.PublishTimeoutSec <= 0 {
		ob.PublishTimeoutSec = 5
	}
}

func (cnf *Configuration) applyQueueDefaults() error {
	q := &cnf.Queue
	if q.Broker == "" {
		q.Broker = BrokerAsynq
	}
	if q.Broker != BrokerAsynq && q.Broker != BrokerAMQP {
		return errors.New("queue broker must be either asynq or amqp")
	}
	if q.Broker == BrokerAMQP && q.AmqpDns == "" {
		return errors.New("amqp DNS is required when the amqp broker is selected")
	}
	if q.OrderExchange == "" {
		q.OrderExchange = "seckill.order"
	}
	if q.OrderRoutingKey == "" {
		q.OrderRoutingKey = "order.created"
	}
	if q.ConsumerName == "" {
		q.ConsumerName = "surge-order-consumer"
	}
	if q.MonitoringPort == "" {
		q.MonitoringPort = "5002"
	}
	if q.Concurrency <= 0 {
		q.Concurrency = 1
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
