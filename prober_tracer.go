package main

import (
	"net/http/httptrace"
	"sync"
	"time"
)

// ProbeTracer records when the first response byte of a probe arrives.
// A single probe may issue several requests (method fallback, redirect
// chasing); only the very first header receipt counts, so time-to-first-byte
// stays anchored to the start of the logical check.
type ProbeTracer struct {
	sync.Mutex
	firstResponseByte time.Time
}

func NewProbeTracer() *ProbeTracer {
	return &ProbeTracer{}
}

func (pt *ProbeTracer) GetClientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			pt.Lock()
			if pt.firstResponseByte.IsZero() {
				pt.firstResponseByte = time.Now()
			}
			pt.Unlock()
		},
	}
}

// TtfbSince returns the elapsed milliseconds between start and the first
// response byte, or 0 when no response byte ever arrived.
func (pt *ProbeTracer) TtfbSince(start time.Time) int64 {
	pt.Lock()
	defer pt.Unlock()

	if pt.firstResponseByte.IsZero() {
		return 0
	}
	return pt.firstResponseByte.Sub(start).Milliseconds()
}
