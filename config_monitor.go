package main

import (
	"github.com/guregu/null/v5"
)

type Monitor struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description null.String `yaml:"description" json:"description"`
	Url         string      `yaml:"url" json:"url"`
	// TimeoutSeconds overrides the probe-level timeout for this monitor.
	TimeoutSeconds null.Int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// JsonExtraction is a jq expression applied to JSON response bodies; its
	// first output value is attached to the check result as json_data.
	JsonExtraction null.String `yaml:"json_extraction" json:"-"`
}

type MonitorConfig struct {
	Monitors []Monitor `yaml:"monitors"`
}

// FindMonitor returns the monitor definition for the given id.
func (mc MonitorConfig) FindMonitor(id string) (Monitor, bool) {
	for _, m := range mc.Monitors {
		if m.ID == id {
			return m, true
		}
	}
	return Monitor{}, false
}
