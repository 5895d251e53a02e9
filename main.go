package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/natspubsub"
	_ "gocloud.dev/pubsub/rabbitpubsub"

	_ "github.com/marcboeker/go-duckdb/v2"
)

func main() {
	mode := flag.String("mode", "server", "The mode of the current process, possible values are: server, migrate")
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	monitorPath := flag.String("monitor", "monitor.yaml", "Path to monitor file")
	alarmPath := flag.String("alarm", "alarm.yaml", "Path to alarm file")
	flag.Parse()

	if mode == nil {
		slog.Error("mode flag is required")
		os.Exit(1)
		return
	}

	serverConfig, err := loadServerConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: serverConfig.Server.LogLevel,
	})))

	switch *mode {
	case "server":
		monitorConfigFile, err := os.ReadFile(*monitorPath)
		if err != nil {
			slog.Error("failed to read monitor file", slog.String("error", err.Error()))
			os.Exit(1)
		}

		var monitorConfig MonitorConfig
		if err := yaml.Unmarshal(monitorConfigFile, &monitorConfig); err != nil {
			slog.Error("failed to unmarshal monitor file", slog.String("error", err.Error()))
			os.Exit(1)
		}

		var alarmConfig AlarmConfig
		alarmConfigFile, err := os.ReadFile(*alarmPath)
		if err == nil {
			if err := yaml.Unmarshal(alarmConfigFile, &alarmConfig); err != nil {
				slog.Error("failed to unmarshal alarm file", slog.String("error", err.Error()))
				os.Exit(1)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to read alarm file", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if err := runServer(serverConfig, monitorConfig, alarmConfig); err != nil {
			slog.Error("server exited with error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case "migrate":
		db, err := sql.Open("duckdb", serverConfig.Database.Path)
		if err != nil {
			slog.Error("failed to open database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()

		if err := Migrate(db, context.Background(), true); err != nil {
			slog.Error("failed to run migration", slog.String("error", err.Error()))
			os.Exit(1)
		}

		slog.Info("migration completed", slog.String("database_path", serverConfig.Database.Path))
	default:
		slog.Error("unknown mode", "mode", *mode)
		os.Exit(1)
	}
}

// loadServerConfig applies struct defaults and environment overrides first,
// then lets the yaml file override both.
func loadServerConfig(path string) (ServerConfig, error) {
	var serverConfig ServerConfig
	if err := envconfig.Process("", &serverConfig); err != nil {
		return ServerConfig{}, err
	}

	configFile, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(configFile, &serverConfig); err != nil {
			return ServerConfig{}, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return ServerConfig{}, err
	}

	return serverConfig, nil
}

func runServer(serverConfig ServerConfig, monitorConfig MonitorConfig, alarmConfig AlarmConfig) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              serverConfig.Sentry.Dsn,
		SampleRate:       serverConfig.Sentry.ErrorSampleRate,
		EnableTracing:    serverConfig.Sentry.TracesSampleRate > 0,
		TracesSampleRate: serverConfig.Sentry.TracesSampleRate,
		Debug:            serverConfig.Sentry.Debug,
		EnableLogs:       true,
	})
	if err != nil {
		return err
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("duckdb", serverConfig.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := Migrate(db, ctx, false); err != nil {
		return err
	}

	resultProducer, err := pubsub.OpenTopic(ctx, serverConfig.TaskQueue.Results.ProducerAddress)
	if err != nil {
		return err
	}
	defer resultProducer.Shutdown(ctx)

	resultConsumer, err := pubsub.OpenSubscription(ctx, serverConfig.TaskQueue.Results.ConsumerAddress)
	if err != nil {
		return err
	}
	defer resultConsumer.Shutdown(ctx)

	alarmProducer, err := pubsub.OpenTopic(ctx, serverConfig.TaskQueue.Alarms.ProducerAddress)
	if err != nil {
		return err
	}
	defer alarmProducer.Shutdown(ctx)

	alarmConsumer, err := pubsub.OpenSubscription(ctx, serverConfig.TaskQueue.Alarms.ConsumerAddress)
	if err != nil {
		return err
	}
	defer alarmConsumer.Shutdown(ctx)

	stateStore := NewDuckDBStateStore(db)
	resultStore := NewCheckResultStore(db)
	historyStore := NewDuckDBTriggerHistoryStore(db)

	prober := NewProber(ProberOptions{
		Config: ProberConfig{
			Timeout:         time.Duration(serverConfig.Probe.TimeoutSeconds) * time.Second,
			UserAgent:       serverConfig.Probe.UserAgent,
			MaxRedirects:    serverConfig.Probe.MaxRedirects,
			SkipBodyCapture: serverConfig.Probe.SkipBodyCapture,
		},
	})

	checker, err := NewChecker(CheckerOptions{
		Prober:        prober,
		CertInspector: NewCertificateInspector(CertificateInspectorOptions{}),
		ContextProvider: NewProbeContextProvider(ProbeContextProviderOptions{
			Region:  serverConfig.Probe.Region,
			EchoURL: serverConfig.Probe.IpEchoUrl,
		}),
		States: stateStore,
	})
	if err != nil {
		return err
	}

	engine, err := NewAlarmEngine(AlarmEngineOptions{
		Alarms:     NewConfigAlarmStore(alarmConfig),
		History:    historyStore,
		Dispatcher: NewNotificationDispatcher(),
		EmailSettings: EmailSettings{
			Host:     serverConfig.Alerting.Email.Host,
			Port:     serverConfig.Alerting.Email.Port,
			Username: serverConfig.Alerting.Email.Username,
			Password: serverConfig.Alerting.Email.Password,
			From:     serverConfig.Alerting.Email.From,
		},
		DashboardBaseUrl: serverConfig.Alerting.DashboardBaseUrl,
	})
	if err != nil {
		return err
	}

	verifier := NewHMACVerifier(HMACVerifierOptions{
		Keys: serverConfig.Scheduler.SigningKeys,
		Skew: time.Duration(serverConfig.Scheduler.SignatureSkewMinutes) * time.Minute,
	})

	server, err := NewServer(ServerOptions{
		ServerConfig:   serverConfig,
		MonitorConfig:  monitorConfig,
		Verifier:       verifier,
		Checker:        checker,
		States:         stateStore,
		Results:        resultStore,
		ResultProducer: resultProducer,
		AlarmProducer:  alarmProducer,
	})
	if err != nil {
		return err
	}

	ingestWorker := NewIngestWorker(resultStore, resultConsumer, serverConfig.Dataset.RetentionDays)
	alarmWorker := NewAlarmWorker(engine, alarmConsumer)

	go func() {
		if err := ingestWorker.Start(); err != nil {
			slog.ErrorContext(ctx, "ingest worker stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		if err := alarmWorker.Start(); err != nil {
			slog.ErrorContext(ctx, "alarm worker stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		slog.InfoContext(ctx, "starting http server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server stopped", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutting down http server", slog.String("error", err.Error()))
	}
	if err := ingestWorker.Stop(); err != nil {
		slog.Error("stopping ingest worker", slog.String("error", err.Error()))
	}
	if err := alarmWorker.Stop(); err != nil {
		slog.Error("stopping alarm worker", slog.String("error", err.Error()))
	}

	return nil
}
