package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/rs/cors"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/semaphore"
)

type Server struct {
	*http.Server
	serverConfig   ServerConfig
	monitorConfig  MonitorConfig
	verifier       RequestVerifier
	checker        *Checker
	states         MonitorStateStore
	results        *CheckResultStore
	resultProducer *pubsub.Topic
	alarmProducer  *pubsub.Topic
	checkSlots     *semaphore.Weighted
}

type ServerOptions struct {
	ServerConfig   ServerConfig
	MonitorConfig  MonitorConfig
	Verifier       RequestVerifier
	Checker        *Checker
	States         MonitorStateStore
	Results        *CheckResultStore
	ResultProducer *pubsub.Topic
	AlarmProducer  *pubsub.Topic
}

func NewServer(options ServerOptions) (*Server, error) {
	if options.Verifier == nil {
		return nil, fmt.Errorf("server requires a request verifier")
	}
	if options.Checker == nil {
		return nil, fmt.Errorf("server requires a checker")
	}

	maxConcurrent := options.ServerConfig.Scheduler.MaxConcurrentChecks
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	s := &Server{
		serverConfig:   options.ServerConfig,
		monitorConfig:  options.MonitorConfig,
		verifier:       options.Verifier,
		checker:        options.Checker,
		states:         options.States,
		results:        options.Results,
		resultProducer: options.ResultProducer,
		alarmProducer:  options.AlarmProducer,
		checkSlots:     semaphore.NewWeighted(maxConcurrent),
	}

	sentryMiddleware := sentryhttp.New(sentryhttp.Options{
		Repanic:         true,
		WaitForDelivery: true,
		Timeout:         2 * time.Second,
	})

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173"},
		AllowedMethods: []string{http.MethodGet},
	})

	mux := http.NewServeMux()
	mux.Handle("POST /checks/trigger", sentryMiddleware.HandleFunc(s.TriggerCheck))
	mux.Handle("GET /monitors/{id}/state", corsMiddleware.Handler(sentryMiddleware.HandleFunc(s.MonitorState)))
	mux.Handle("GET /monitors/{id}/results", corsMiddleware.Handler(sentryMiddleware.HandleFunc(s.MonitorResults)))
	mux.Handle("GET /healthz", http.HandlerFunc(s.Healthz))

	srv := &http.Server{
		Addr:    net.JoinHostPort(s.serverConfig.Server.Host, strconv.Itoa(s.serverConfig.Server.Port)),
		Handler: mux,
	}

	s.Server = srv

	return s, nil
}

type CommonErrorResponse struct {
	Error string `json:"error"`
}

type TriggerCheckRequest struct {
	MonitorID string `json:"monitor_id"`
	Attempt   int    `json:"attempt"`
}

// TriggerCheck runs one uptime check on demand. The request must carry a
// valid signature; nothing touches the network or the database before the
// signature is accepted.
func (s *Server) TriggerCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "reading request body failed")
		return
	}

	if err := s.verifier.Verify(r.Header.Get("X-Signature"), r.Header.Get("X-Timestamp"), body); err != nil {
		slog.WarnContext(ctx, "rejecting unsigned trigger request", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusUnauthorized, "invalid request signature")
		return
	}

	var request TriggerCheckRequest
	if err := json.Unmarshal(body, &request); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	monitor, found := s.monitorConfig.FindMonitor(request.MonitorID)
	if !found {
		writeJSONError(w, http.StatusNotFound, "monitor not found")
		return
	}

	if err := s.checkSlots.Acquire(ctx, 1); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "check capacity exhausted")
		return
	}
	defer s.checkSlots.Release(1)

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.Scope().SetTag("vigil.monitor_id", monitor.ID)
	}
	if span := sentry.SpanFromContext(ctx); span != nil {
		span.SetData("vigil.monitor_id", monitor.ID)
	}

	timeout := time.Duration(s.serverConfig.Probe.TimeoutSeconds) * time.Second
	if monitor.TimeoutSeconds.Valid && monitor.TimeoutSeconds.Int64 > 0 {
		timeout = time.Duration(monitor.TimeoutSeconds.Int64) * time.Second
	}

	result, err := s.checker.CheckUptime(ctx, monitor.ID, monitor.Url, request.Attempt, CheckOptions{
		Timeout:        timeout,
		JsonExtraction: monitor.JsonExtraction,
	})
	if err != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(fmt.Errorf("running uptime check: %w", err))
		}
		slog.ErrorContext(ctx, "running uptime check",
			slog.String("monitor_id", monitor.ID),
			slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "check execution failed")
		return
	}

	s.enqueueCheckOutputs(ctx, monitor.ID, result)

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// enqueueCheckOutputs publishes the result to the ingest queue and a
// matching evaluation task to the alarm queue. Publishing is best effort;
// the check result was already persisted to monitor state and is returned
// to the caller either way.
func (s *Server) enqueueCheckOutputs(ctx context.Context, monitorID string, result CheckResult) {
	resultBody, err := json.Marshal(result)
	if err != nil {
		slog.ErrorContext(ctx, "marshaling check result for queue", slog.String("error", err.Error()))
		return
	}

	task := AlarmEvaluationTask{
		MonitorID:           monitorID,
		Result:              result,
		ConsecutiveFailures: result.FailureStreak,
		PreviousStatus:      result.PreviousStatus,
	}
	taskBody, err := json.Marshal(task)
	if err != nil {
		slog.ErrorContext(ctx, "marshaling alarm evaluation task", slog.String("error", err.Error()))
		return
	}

	metadata := map[string]string{
		"monitor_id":  monitorID,
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}

	wg := sync.WaitGroup{}
	wg.Go(func() {
		if err := s.resultProducer.Send(ctx, &pubsub.Message{Body: resultBody, Metadata: metadata}); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue check result", slog.String("error", err.Error()))
		}
	})
	wg.Go(func() {
		if err := s.alarmProducer.Send(ctx, &pubsub.Message{Body: taskBody, Metadata: metadata}); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue alarm evaluation task", slog.String("error", err.Error()))
		}
	})
	wg.Wait()
}

func (s *Server) MonitorState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	monitorID := r.PathValue("id")
	if _, found := s.monitorConfig.FindMonitor(monitorID); !found {
		writeJSONError(w, http.StatusNotFound, "monitor not found")
		return
	}

	state, err := s.states.Get(ctx, monitorID)
	if err != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(fmt.Errorf("loading monitor state: %w", err))
		}
		slog.ErrorContext(ctx, "loading monitor state", slog.String("monitor_id", monitorID), slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to load monitor state")
		return
	}
	if state == nil {
		state = &MonitorState{MonitorID: monitorID, Status: StatusPending}
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(state)
}

type MonitorResultsResponse struct {
	MonitorID string        `json:"monitor_id"`
	Results   []CheckResult `json:"results"`
}

func (s *Server) MonitorResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	monitorID := r.PathValue("id")
	if _, found := s.monitorConfig.FindMonitor(monitorID); !found {
		writeJSONError(w, http.StatusNotFound, "monitor not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	results, err := s.results.RecentByMonitor(ctx, monitorID, limit)
	if err != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(fmt.Errorf("fetching recent check results: %w", err))
		}
		slog.ErrorContext(ctx, "fetching recent check results", slog.String("monitor_id", monitorID), slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to fetch check results")
		return
	}
	if results == nil {
		results = []CheckResult{}
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(MonitorResultsResponse{
		MonitorID: monitorID,
		Results:   results,
	})
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(CommonErrorResponse{Error: message})
}
