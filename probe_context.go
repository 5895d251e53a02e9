package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultIpLookupTimeout = 5 * time.Second
	unknownProbeIp         = "unknown"
)

// ProbeContext tags every check result so results from multiple probe
// locations can be correlated.
type ProbeContext struct {
	Ip     string `json:"ip"`
	Region string `json:"region"`
}

// ProbeContextProvider resolves the probe's egress IP via an IP echo service
// and carries a statically configured region. Lookups are best-effort: any
// failure degrades to "unknown" rather than failing the check.
type ProbeContextProvider struct {
	region     string
	echoURL    string
	timeout    time.Duration
	httpClient *http.Client

	// The egress IP does not change between checks; resolve once and reuse.
	mu       sync.Mutex
	cachedIp string
}

type ProbeContextProviderOptions struct {
	Region     string
	EchoURL    string
	Timeout    time.Duration
	HttpClient *http.Client
}

func NewProbeContextProvider(options ProbeContextProviderOptions) *ProbeContextProvider {
	if options.Timeout <= 0 {
		options.Timeout = defaultIpLookupTimeout
	}
	if options.HttpClient == nil {
		options.HttpClient = http.DefaultClient
	}
	if options.Region == "" {
		options.Region = "default"
	}
	return &ProbeContextProvider{
		region:     options.Region,
		echoURL:    options.EchoURL,
		timeout:    options.Timeout,
		httpClient: options.HttpClient,
	}
}

func (p *ProbeContextProvider) Resolve(ctx context.Context) ProbeContext {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedIp != "" {
		return ProbeContext{Ip: p.cachedIp, Region: p.region}
	}

	ip := p.lookupEgressIp(ctx)
	if ip != unknownProbeIp {
		p.cachedIp = ip
	}
	return ProbeContext{Ip: ip, Region: p.region}
}

func (p *ProbeContextProvider) lookupEgressIp(ctx context.Context) string {
	if p.echoURL == "" {
		return unknownProbeIp
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.echoURL, nil)
	if err != nil {
		slog.WarnContext(ctx, "building ip echo request", slog.String("error", err.Error()))
		return unknownProbeIp
	}

	response, err := p.httpClient.Do(request)
	if err != nil {
		slog.WarnContext(ctx, "resolving egress ip", slog.String("error", err.Error()))
		return unknownProbeIp
	}
	defer func() {
		if response.Body != nil {
			_ = response.Body.Close()
		}
	}()

	if response.StatusCode != http.StatusOK {
		slog.WarnContext(ctx, "ip echo returned non-200", slog.Int("status_code", response.StatusCode))
		return unknownProbeIp
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, 64))
	if err != nil {
		slog.WarnContext(ctx, "reading ip echo response", slog.String("error", err.Error()))
		return unknownProbeIp
	}

	candidate := strings.TrimSpace(string(body))
	if net.ParseIP(candidate) == nil {
		slog.WarnContext(ctx, "ip echo returned unparseable address", slog.String("body", candidate))
		return unknownProbeIp
	}
	return candidate
}
