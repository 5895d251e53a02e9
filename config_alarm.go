package main

import "context"

const (
	defaultTriggerConsecutiveFailures = 3
	defaultTriggerCooldownMinutes     = 5
)

// TriggerConditions gate down-event notifications. ConsecutiveFailures is
// expected in [1,10] and CooldownMinutes in [1,1440]; range validation is
// the configuration layer's job, not this module's.
type TriggerConditions struct {
	ConsecutiveFailures int `yaml:"consecutive_failures" json:"consecutive_failures"`
	CooldownMinutes     int `yaml:"cooldown_minutes" json:"cooldown_minutes"`
}

type AlarmChannels struct {
	SlackWebhookUrl   string            `yaml:"slack_webhook_url" json:"slack_webhook_url"`
	DiscordWebhookUrl string            `yaml:"discord_webhook_url" json:"discord_webhook_url"`
	EmailRecipients   []string          `yaml:"email_recipients" json:"email_recipients"`
	WebhookUrl        string            `yaml:"webhook_url" json:"webhook_url"`
	WebhookHmacSecret string            `yaml:"webhook_hmac_secret" json:"-"`
	WebhookHeaders    map[string]string `yaml:"webhook_headers" json:"webhook_headers"`
}

// Alarm definitions are owned by an external configuration layer and are
// read-only here.
type Alarm struct {
	ID                string             `yaml:"id" json:"id"`
	Name              string             `yaml:"name" json:"name"`
	Enabled           bool               `yaml:"enabled" json:"enabled"`
	MonitorIDs        []string           `yaml:"monitor_ids" json:"monitor_ids"`
	Channels          AlarmChannels      `yaml:"channels" json:"channels"`
	TriggerConditions *TriggerConditions `yaml:"trigger_conditions" json:"trigger_conditions"`
}

// ResolvedTriggerConditions returns the alarm's trigger conditions, falling
// back to the defaults (3 consecutive failures, 5 minute cooldown) when the
// alarm has none set.
func (a Alarm) ResolvedTriggerConditions() TriggerConditions {
	if a.TriggerConditions == nil {
		return TriggerConditions{
			ConsecutiveFailures: defaultTriggerConsecutiveFailures,
			CooldownMinutes:     defaultTriggerCooldownMinutes,
		}
	}
	resolved := *a.TriggerConditions
	if resolved.ConsecutiveFailures == 0 {
		resolved.ConsecutiveFailures = defaultTriggerConsecutiveFailures
	}
	if resolved.CooldownMinutes == 0 {
		resolved.CooldownMinutes = defaultTriggerCooldownMinutes
	}
	return resolved
}

type AlarmConfig struct {
	Alarms []Alarm `yaml:"alarms"`
}

// AlarmStore is the boundary to whatever owns alarm definitions. The alarm
// engine only ever asks for the enabled alarms scoped to one monitor.
type AlarmStore interface {
	ListEnabledForMonitor(ctx context.Context, monitorID string) ([]Alarm, error)
}

// ConfigAlarmStore serves alarm definitions from a loaded configuration
// snapshot.
type ConfigAlarmStore struct {
	config AlarmConfig
}

func NewConfigAlarmStore(config AlarmConfig) *ConfigAlarmStore {
	return &ConfigAlarmStore{config: config}
}

func (s *ConfigAlarmStore) ListEnabledForMonitor(_ context.Context, monitorID string) ([]Alarm, error) {
	var alarms []Alarm
	for _, alarm := range s.config.Alarms {
		if !alarm.Enabled {
			continue
		}
		for _, id := range alarm.MonitorIDs {
			if id == monitorID {
				alarms = append(alarms, alarm)
				break
			}
		}
	}
	return alarms, nil
}
