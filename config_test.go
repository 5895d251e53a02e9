package main

import (
	"testing"

	"github.com/goccy/go-yaml"
)

func TestMonitorConfig_FindMonitor(t *testing.T) {
	config := MonitorConfig{Monitors: []Monitor{
		{ID: "mon-a", Name: "a", Url: "https://a.example.com"},
		{ID: "mon-b", Name: "b", Url: "https://b.example.com"},
	}}

	monitor, found := config.FindMonitor("mon-b")
	if !found {
		t.Fatal("expected mon-b to be found")
	}
	if monitor.Url != "https://b.example.com" {
		t.Errorf("unexpected monitor: %+v", monitor)
	}

	if _, found := config.FindMonitor("mon-c"); found {
		t.Error("expected mon-c to be absent")
	}
}

func TestMonitorConfig_Yaml(t *testing.T) {
	raw := []byte(`
monitors:
  - id: api
    name: Public API
    url: https://api.example.com/health
    timeout_seconds: 10
    json_extraction: ".version"
  - id: website
    name: Website
    url: https://www.example.com
`)

	var config MonitorConfig
	if err := yaml.Unmarshal(raw, &config); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(config.Monitors) != 2 {
		t.Fatalf("expected 2 monitors, got %d", len(config.Monitors))
	}
	api := config.Monitors[0]
	if !api.TimeoutSeconds.Valid || api.TimeoutSeconds.Int64 != 10 {
		t.Errorf("expected timeout override, got %+v", api.TimeoutSeconds)
	}
	if !api.JsonExtraction.Valid || api.JsonExtraction.String != ".version" {
		t.Errorf("expected json extraction, got %+v", api.JsonExtraction)
	}
	if config.Monitors[1].TimeoutSeconds.Valid {
		t.Error("expected no timeout override for the website monitor")
	}
}

func TestAlarmConfig_Yaml(t *testing.T) {
	raw := []byte(`
alarms:
  - id: api-down
    name: API availability
    enabled: true
    monitor_ids: [api, website]
    channels:
      slack_webhook_url: https://hooks.slack.com/services/T000/B000/XXX
      email_recipients:
        - ops@example.com
    trigger_conditions:
      consecutive_failures: 2
      cooldown_minutes: 15
`)

	var config AlarmConfig
	if err := yaml.Unmarshal(raw, &config); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(config.Alarms) != 1 {
		t.Fatalf("expected 1 alarm, got %d", len(config.Alarms))
	}
	alarm := config.Alarms[0]
	if !alarm.Enabled || len(alarm.MonitorIDs) != 2 {
		t.Errorf("unexpected alarm: %+v", alarm)
	}
	conditions := alarm.ResolvedTriggerConditions()
	if conditions.ConsecutiveFailures != 2 || conditions.CooldownMinutes != 15 {
		t.Errorf("unexpected trigger conditions: %+v", conditions)
	}
}

func TestAlarm_ResolvedTriggerConditions(t *testing.T) {
	t.Run("nil falls back to defaults", func(t *testing.T) {
		conditions := Alarm{}.ResolvedTriggerConditions()
		if conditions.ConsecutiveFailures != 3 || conditions.CooldownMinutes != 5 {
			t.Errorf("unexpected defaults: %+v", conditions)
		}
	})

	t.Run("zero fields fall back individually", func(t *testing.T) {
		alarm := Alarm{TriggerConditions: &TriggerConditions{ConsecutiveFailures: 7}}
		conditions := alarm.ResolvedTriggerConditions()
		if conditions.ConsecutiveFailures != 7 {
			t.Errorf("expected explicit threshold to survive, got %d", conditions.ConsecutiveFailures)
		}
		if conditions.CooldownMinutes != 5 {
			t.Errorf("expected default cooldown, got %d", conditions.CooldownMinutes)
		}
	})
}

func TestConfigAlarmStore_ListEnabledForMonitor(t *testing.T) {
	store := NewConfigAlarmStore(AlarmConfig{Alarms: []Alarm{
		{ID: "a1", Enabled: true, MonitorIDs: []string{"mon-1", "mon-2"}},
		{ID: "a2", Enabled: false, MonitorIDs: []string{"mon-1"}},
		{ID: "a3", Enabled: true, MonitorIDs: []string{"mon-3"}},
	}})

	alarms, err := store.ListEnabledForMonitor(t.Context(), "mon-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alarms) != 1 || alarms[0].ID != "a1" {
		t.Errorf("expected only the enabled scoped alarm, got %+v", alarms)
	}
}

func TestMonitorStatus_String(t *testing.T) {
	cases := map[MonitorStatus]string{
		StatusDown:        "down",
		StatusUp:          "up",
		StatusPending:     "pending",
		StatusMaintenance: "maintenance",
		MonitorStatus(42): "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("MonitorStatus(%d).String() = %q, want %q", int(status), got, want)
		}
	}
}
