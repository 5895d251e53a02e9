package main

import "log/slog"

type ServerConfig struct {
	Server struct {
		Host string `yaml:"host" envconfig:"SERVER_HOST"`
		Port int    `yaml:"port" default:"8600" envconfig:"SERVER_PORT"`

		LogLevel slog.Level `yaml:"log_level"`
	} `yaml:"server"`
	Scheduler struct {
		// SigningKeys are the shared secrets the external scheduler signs
		// check-trigger requests with. An empty list rejects every request.
		SigningKeys          []string `yaml:"signing_keys" envconfig:"SCHEDULER_SIGNING_KEYS"`
		SignatureSkewMinutes int      `yaml:"signature_skew_minutes" default:"5"`
		MaxConcurrentChecks  int64    `yaml:"max_concurrent_checks" default:"10"`
	} `yaml:"scheduler"`
	Database struct {
		Path string `yaml:"path" default:"vigil.db" envconfig:"DATABASE_PATH"`
	} `yaml:"database"`
	TaskQueue struct {
		Results struct {
			ProducerAddress string `yaml:"producer_address" default:"mem://result_tasks"`
			ConsumerAddress string `yaml:"consumer_address" default:"mem://result_tasks"`
		} `yaml:"results"`
		Alarms struct {
			ProducerAddress string `yaml:"producer_address" default:"mem://alarm_tasks"`
			ConsumerAddress string `yaml:"consumer_address" default:"mem://alarm_tasks"`
		} `yaml:"alarms"`
	} `yaml:"task_queue"`
	Probe struct {
		TimeoutSeconds  int    `yaml:"timeout_seconds" default:"30"`
		UserAgent       string `yaml:"user_agent" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"`
		MaxRedirects    int    `yaml:"max_redirects" default:"10"`
		SkipBodyCapture bool   `yaml:"skip_body_capture"`
		Region          string `yaml:"region" default:"default" envconfig:"PROBE_REGION"`
		IpEchoUrl       string `yaml:"ip_echo_url" default:"https://api.ipify.org" envconfig:"PROBE_IP_ECHO_URL"`
	} `yaml:"probe"`
	Dataset struct {
		RetentionDays int `yaml:"retention_days" default:"90"`
	} `yaml:"dataset"`
	Alerting struct {
		DashboardBaseUrl string `yaml:"dashboard_base_url"`
		Email            struct {
			Host     string `yaml:"host" envconfig:"SMTP_HOST"`
			Port     int    `yaml:"port" default:"587" envconfig:"SMTP_PORT"`
			Username string `yaml:"username" envconfig:"SMTP_USERNAME"`
			Password string `yaml:"password" envconfig:"SMTP_PASSWORD"`
			From     string `yaml:"from" envconfig:"SMTP_FROM"`
		} `yaml:"email"`
	} `yaml:"alerting"`
	Sentry struct {
		Dsn                   string  `yaml:"dsn" envconfig:"SENTRY_DSN"`
		ErrorSampleRate       float64 `yaml:"error_sample_rate" default:"1.0"`
		TracesSampleRate      float64 `yaml:"traces_sample_rate" default:"1.0"`
		ProfilingSampleRate   float64 `yaml:"profiling_sample_rate" default:"0.1"`
		Debug                 bool    `yaml:"debug" default:"false"`
		TraceOutgoingRequests bool    `yaml:"trace_outgoing_requests" default:"false"`
	} `yaml:"sentry"`
}
