package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/guregu/null/v5"
)

const checkTypeHttp = "http"

// Checker composes the prober, the certificate inspector, the probe context
// provider and the monitor state store into one check invocation. It owns
// MonitorState exclusively: exactly one upsert per call, all other I/O is
// read-only against external services.
type Checker struct {
	prober          *Prober
	certInspector   *CertificateInspector
	contextProvider *ProbeContextProvider
	states          MonitorStateStore
	now             func() time.Time
}

type CheckerOptions struct {
	Prober          *Prober
	CertInspector   *CertificateInspector
	ContextProvider *ProbeContextProvider
	States          MonitorStateStore
	Now             func() time.Time
}

func NewChecker(options CheckerOptions) (*Checker, error) {
	if options.Prober == nil {
		return nil, fmt.Errorf("checker requires a prober")
	}
	if options.States == nil {
		return nil, fmt.Errorf("checker requires a monitor state store")
	}
	if options.CertInspector == nil {
		options.CertInspector = NewCertificateInspector(CertificateInspectorOptions{})
	}
	if options.ContextProvider == nil {
		options.ContextProvider = NewProbeContextProvider(ProbeContextProviderOptions{})
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Checker{
		prober:          options.Prober,
		certInspector:   options.CertInspector,
		contextProvider: options.ContextProvider,
		states:          options.States,
		now:             options.Now,
	}, nil
}

// CheckOptions carry per-monitor overrides into a single invocation.
type CheckOptions struct {
	Timeout        time.Duration
	JsonExtraction null.String
}

// CheckUptime performs one check. A returned error means the check could not
// be executed or recorded (state store failure); an unreachable endpoint is
// a normal result with StatusDown, not an error.
func (c *Checker) CheckUptime(ctx context.Context, monitorID string, rawURL string, attempt int, options CheckOptions) (CheckResult, error) {
	span := sentry.StartSpan(ctx, "function", sentry.WithDescription("Check Uptime"))
	ctx = span.Context()
	defer span.Finish()
	span.SetData("monitor_id", monitorID)

	// The probe, the certificate inspection and the context lookup share no
	// state and are joined before any mutation, so they run in parallel.
	var outcome ProbeOutcome
	var certInfo CertificateInfo
	var probeContext ProbeContext

	wg := sync.WaitGroup{}
	wg.Go(func() {
		outcome = c.prober.Probe(ctx, rawURL, options.Timeout)
	})
	wg.Go(func() {
		certInfo = c.certInspector.Inspect(ctx, rawURL)
	})
	wg.Go(func() {
		probeContext = c.contextProvider.Resolve(ctx)
	})
	wg.Wait()

	previous, err := c.states.Get(ctx, monitorID)
	if err != nil {
		return CheckResult{}, fmt.Errorf("loading monitor state: %w", err)
	}

	status := StatusDown
	if outcome.Success {
		status = StatusUp
	}

	// Streak rule: up resets to 0; the first down after an up or unknown
	// state is exactly 1; consecutive downs increment by 1.
	streak := 0
	if status == StatusDown {
		if previous != nil && previous.Status == StatusDown {
			streak = previous.ConsecutiveFailures + 1
		} else {
			streak = 1
		}
	}

	now := c.now()
	lastChangeAt := now
	if previous != nil && previous.Status == status {
		lastChangeAt = previous.LastChangeAt
	}

	if err := c.states.Upsert(ctx, MonitorState{
		MonitorID:           monitorID,
		Status:              status,
		ConsecutiveFailures: streak,
		LastChangeAt:        lastChangeAt,
		LastCheckedAt:       now,
	}); err != nil {
		return CheckResult{}, fmt.Errorf("recording monitor state: %w", err)
	}

	var previousStatus null.Value[MonitorStatus]
	if previous != nil {
		previousStatus = null.NewValue(previous.Status, true)
	}

	var jsonData null.String
	if outcome.Success && options.JsonExtraction.Valid {
		extracted, err := extractJsonData(ctx, options.JsonExtraction.String, outcome.Body)
		if err != nil {
			slog.WarnContext(ctx, "applying json extraction",
				slog.String("monitor_id", monitorID),
				slog.String("error", err.Error()))
		} else if extracted != "" {
			jsonData = null.StringFrom(extracted)
		}
	}

	sslValid := 0
	if certInfo.Valid {
		sslValid = 1
	}

	slog.InfoContext(ctx, "completed uptime check",
		slog.String("monitor_id", monitorID),
		slog.String("status", status.String()),
		slog.Int("attempt", attempt),
		slog.Int("http_code", outcome.StatusCode),
		slog.Int64("total_ms", outcome.TotalMs),
		slog.Int("failure_streak", streak),
		slog.Bool("head_succeeded", outcome.HeadSucceeded))

	return CheckResult{
		MonitorID:      monitorID,
		Url:            normalizeProbeUrl(rawURL),
		Timestamp:      now,
		Status:         status,
		HttpCode:       outcome.StatusCode,
		TtfbMs:         outcome.TtfbMs,
		TotalMs:        outcome.TotalMs,
		RedirectCount:  outcome.RedirectCount,
		ResponseBytes:  outcome.ResponseBytes,
		ContentHash:    outcome.ContentHash,
		Error:          outcome.Error,
		FailureStreak:  streak,
		PreviousStatus: previousStatus,
		ProbeRegion:    probeContext.Region,
		ProbeIp:        probeContext.Ip,
		CheckType:      checkTypeHttp,
		UserAgent:      c.prober.config.UserAgent,
		SslValid:       sslValid,
		SslExpiry:      certInfo.Expiry,
		JsonData:       jsonData,
	}, nil
}
