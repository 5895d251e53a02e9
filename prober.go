package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"
)

const (
	defaultProbeTimeout = 30 * time.Second
	defaultMaxRedirects = 10
)

type ProberConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	// SkipBodyCapture skips the GET refetch after a successful HEAD; the
	// response size is then taken from the Content-Length header and no
	// content hash is produced.
	SkipBodyCapture bool
}

// Prober performs one logical reachability check against a URL: HEAD first
// with a GET fallback, manual redirect chasing, and timing/byte/content-hash
// accounting. Transport failures never escape as errors; they come back as
// failure outcomes.
type Prober struct {
	config     ProberConfig
	httpClient *http.Client
}

type ProberOptions struct {
	Config     ProberConfig
	HttpClient *http.Client
}

func NewProber(options ProberOptions) *Prober {
	if options.Config.Timeout <= 0 {
		options.Config.Timeout = defaultProbeTimeout
	}
	if options.Config.MaxRedirects <= 0 {
		options.Config.MaxRedirects = defaultMaxRedirects
	}
	if options.HttpClient == nil {
		// Redirects are followed manually so the chain can be counted and
		// capped; the client must hand back 3xx responses untouched.
		options.HttpClient = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Prober{
		config:     options.Config,
		httpClient: options.HttpClient,
	}
}

type ProbeOutcome struct {
	Success       bool
	StatusCode    int
	TtfbMs        int64
	TotalMs       int64
	RedirectCount int
	ResponseBytes int64
	ContentType   string
	ContentHash   string
	Body          []byte
	HeadSucceeded bool
	Error         string
}

// Probe runs the reachability check. A timeout of 0 uses the configured
// default. The context is honored on top of the timeout.
func (p *Prober) Probe(ctx context.Context, rawURL string, timeout time.Duration) ProbeOutcome {
	if timeout <= 0 {
		timeout = p.config.Timeout
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracer := NewProbeTracer()
	ctx = httptrace.WithClientTrace(ctx, tracer.GetClientTrace())

	currentURL, err := url.Parse(normalizeProbeUrl(rawURL))
	if err != nil {
		return ProbeOutcome{Error: fmt.Sprintf("invalid url: %s", err.Error())}
	}

	var outcome ProbeOutcome
	method := http.MethodHead

	for {
		request, err := http.NewRequestWithContext(ctx, method, currentURL.String(), nil)
		if err != nil {
			outcome.TotalMs = time.Since(start).Milliseconds()
			outcome.Error = err.Error()
			return outcome
		}
		p.setBrowserHeaders(request)

		response, err := p.httpClient.Do(request)
		if err != nil {
			outcome.TtfbMs = tracer.TtfbSince(start)
			outcome.TotalMs = time.Since(start).Milliseconds()
			outcome.Error = p.classifyTransportError(ctx, err, timeout)
			return outcome
		}

		// Some servers reject HEAD outright; retry the same URL with GET.
		if method == http.MethodHead && response.StatusCode == http.StatusMethodNotAllowed {
			drainBody(response)
			method = http.MethodGet
			continue
		}

		if location := response.Header.Get("Location"); response.StatusCode >= 300 && response.StatusCode < 400 && location != "" {
			drainBody(response)
			outcome.RedirectCount++
			if outcome.RedirectCount > p.config.MaxRedirects {
				outcome.TtfbMs = tracer.TtfbSince(start)
				outcome.TotalMs = time.Since(start).Milliseconds()
				outcome.Error = fmt.Sprintf("Too many redirects (more than %d)", p.config.MaxRedirects)
				return outcome
			}
			next, err := currentURL.Parse(location)
			if err != nil {
				outcome.TtfbMs = tracer.TtfbSince(start)
				outcome.TotalMs = time.Since(start).Milliseconds()
				outcome.Error = fmt.Sprintf("invalid redirect location %q: %s", location, err.Error())
				return outcome
			}
			currentURL = next
			continue
		}

		outcome.StatusCode = response.StatusCode

		if response.StatusCode < 200 || response.StatusCode >= 300 {
			drainBody(response)
			outcome.TtfbMs = tracer.TtfbSince(start)
			outcome.TotalMs = time.Since(start).Milliseconds()
			outcome.Error = http.StatusText(response.StatusCode)
			if outcome.Error == "" {
				outcome.Error = fmt.Sprintf("HTTP %d", response.StatusCode)
			}
			return outcome
		}

		if method == http.MethodHead {
			outcome.HeadSucceeded = true
			if p.config.SkipBodyCapture {
				if response.ContentLength > 0 {
					outcome.ResponseBytes = response.ContentLength
				}
				drainBody(response)
				outcome.TtfbMs = tracer.TtfbSince(start)
				outcome.TotalMs = time.Since(start).Milliseconds()
				outcome.Success = true
				return outcome
			}
			// Refetch with GET to obtain a body for hashing.
			drainBody(response)
			method = http.MethodGet
			continue
		}

		body, err := io.ReadAll(response.Body)
		_ = response.Body.Close()
		outcome.TtfbMs = tracer.TtfbSince(start)
		outcome.TotalMs = time.Since(start).Milliseconds()
		if err != nil {
			outcome.StatusCode = 0
			outcome.Error = p.classifyTransportError(ctx, err, timeout)
			return outcome
		}

		outcome.ContentType = response.Header.Get("Content-Type")
		outcome.Body = body
		outcome.ResponseBytes = int64(len(body))
		outcome.ContentHash = hashProbeContent(normalizeProbeContent(body, outcome.ContentType))
		outcome.Success = true
		return outcome
	}
}

func (p *Prober) classifyTransportError(ctx context.Context, err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("Timeout after %dms", timeout.Milliseconds())
	}
	return err.Error()
}

// setBrowserHeaders emulates an ordinary browser navigation. Plenty of
// endpoints sit behind bot protection that would fail a bare client, which
// would surface as a false down.
func (p *Prober) setBrowserHeaders(request *http.Request) {
	request.Header.Set("User-Agent", p.config.UserAgent)
	request.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	request.Header.Set("Accept-Language", "en-US,en;q=0.9")
	request.Header.Set("Cache-Control", "no-cache")
}

func normalizeProbeUrl(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		return "https://" + rawURL
	}
	return rawURL
}

// normalizeProbeContent re-serializes JSON bodies so that formatting noise
// (whitespace, key ordering from re-encoding) does not churn the content
// hash. Anything that fails to parse is hashed as-is.
func normalizeProbeContent(body []byte, contentType string) []byte {
	if !strings.Contains(strings.ToLower(contentType), "json") {
		return body
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return body
	}
	return normalized
}

func hashProbeContent(body []byte) string {
	digest := sha256.Sum256(body)
	return hex.EncodeToString(digest[:])
}

func drainBody(response *http.Response) {
	if response.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		_ = response.Body.Close()
	}
}
