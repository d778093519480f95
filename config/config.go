/*
Copyright 2024 Blnk Finance Authors.

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
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT             = "5005"
	DEFAULT_LOOKAHEAD        = 5
	DEFAULT_SYNC_CRON        = "0 2 * * *"
	DEFAULT_TIMEZONE         = "UTC"
	DEFAULT_LOCK_TIMEOUT_SEC = 300
	DEFAULT_LOCK_WAIT_SEC    = 30
	DEFAULT_SYNC_QUEUE       = "dispatch_sync"
	DEFAULT_MONITORING_PORT  = "5006"
	DEFAULT_PROJECT_NAME     = "Dispatch"
	DEFAULT_CONFIG_FILE      = "dispatch.json"
	maxLookahead             = 366
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"DISPATCH_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"DISPATCH_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"DISPATCH_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"DISPATCH_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"DISPATCH_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"DISPATCH_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	SyncQueue      string `json:"sync_queue" envconfig:"DISPATCH_QUEUE_SYNC_QUEUE"`
	MonitoringPort string `json:"monitoring_port" envconfig:"DISPATCH_QUEUE_MONITORING_PORT"`
}

// SyncConfig controls recurring-order sync runs.
type SyncConfig struct {
	Lookahead      int    `json:"lookahead" envconfig:"DISPATCH_SYNC_LOOKAHEAD"`
	Cron           string `json:"cron" envconfig:"DISPATCH_SYNC_CRON"`
	Timezone       string `json:"timezone" envconfig:"DISPATCH_SYNC_TIMEZONE"`
	LockTimeoutSec int    `json:"lock_timeout_sec" envconfig:"DISPATCH_SYNC_LOCK_TIMEOUT_SEC"`
	LockWaitSec    int    `json:"lock_wait_sec" envconfig:"DISPATCH_SYNC_LOCK_WAIT_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"DISPATCH_SLACK_WEBHOOK_URL"`
}

// TelemetryConfig enables OpenTelemetry tracing. Endpoint is a full OTLP/HTTP
// URL; when empty the exporter reads the standard OTEL_EXPORTER_OTLP_*
// variables.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"DISPATCH_TELEMETRY_ENABLED"`
	Endpoint string `json:"endpoint" envconfig:"DISPATCH_TELEMETRY_ENDPOINT"`
	Insecure bool   `json:"insecure" envconfig:"DISPATCH_TELEMETRY_INSECURE"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"DISPATCH_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Sync         SyncConfig       `json:"sync"`
	Notification Notification     `json:"notification"`
	Telemetry    TelemetryConfig  `json:"telemetry"`
}

// Location is the zone in which "today" is read for sync runs.
func (s SyncConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s SyncConfig) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutSec) * time.Second
}

func (s SyncConfig) LockWait() time.Duration {
	return time.Duration(s.LockWaitSec) * time.Second
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("dispatch", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called dispatch.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Sync.Cron = strings.TrimSpace(cnf.Sync.Cron)
	cnf.Sync.Timezone = strings.TrimSpace(cnf.Sync.Timezone)
	cnf.Telemetry.Endpoint = strings.TrimSpace(cnf.Telemetry.Endpoint)

	if cnf.ProjectName == "" {
		cnf.ProjectName = DEFAULT_PROJECT_NAME
	}

	if cnf.DataSource.Dns == "" {
		logrus.Error("data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		logrus.Warn("redis DNS is empty: sync locks and the job queue are disabled")
	}

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		logrus.Infof("port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Server.Secure && cnf.Server.SecretKey == "" {
		return errors.New("secret key is required when secure mode is enabled")
	}

	if cnf.Queue.SyncQueue == "" {
		cnf.Queue.SyncQueue = DEFAULT_SYNC_QUEUE
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = DEFAULT_MONITORING_PORT
	}

	if err := cnf.Telemetry.validate(); err != nil {
		return err
	}

	return cnf.Sync.validateAndAddDefaults()
}

func (t TelemetryConfig) validate() error {
	if t.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(t.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid telemetry endpoint %q: expected an http(s) URL", t.Endpoint)
	}
	return nil
}

func (s *SyncConfig) validateAndAddDefaults() error {
	if s.Lookahead <= 0 {
		s.Lookahead = DEFAULT_LOOKAHEAD
	}
	if s.Lookahead > maxLookahead {
		return fmt.Errorf("sync lookahead %d exceeds maximum of %d", s.Lookahead, maxLookahead)
	}

	if s.Cron == "" {
		s.Cron = DEFAULT_SYNC_CRON
	}
	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return fmt.Errorf("invalid sync cron %q: %w", s.Cron, err)
	}

	if s.Timezone == "" {
		s.Timezone = DEFAULT_TIMEZONE
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid sync timezone %q: %w", s.Timezone, err)
	}

	if s.LockTimeoutSec <= 0 {
		s.LockTimeoutSec = DEFAULT_LOCK_TIMEOUT_SEC
	}
	if s.LockWaitSec <= 0 {
		s.LockWaitSec = DEFAULT_LOCK_WAIT_SEC
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
