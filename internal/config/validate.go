package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"coursebell/internal/reminder"
	"coursebell/internal/trigger"
)

const dateLayout = "2006-01-02"

// Validate checks cross-field rules the decoder cannot. It is the default
// hot-reload validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(cfg.Reminder.Lead) != "" {
		if _, err := reminder.ParseLeadTime(cfg.Reminder.Lead); err != nil {
			errs = append(errs, fmt.Errorf("reminder.lead: %w", err))
		}
	}
	if _, err := trigger.ParseSchedule(cfg.Trigger.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("trigger.schedule: %w", err))
	}
	if tz := strings.TrimSpace(cfg.Trigger.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("trigger.timezone: %w", err))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Source.Kind)) {
	case "file":
		if strings.TrimSpace(cfg.Source.Path) == "" {
			errs = append(errs, errors.New("source.path is required for kind=file"))
		}
	case "http":
		if strings.TrimSpace(cfg.Source.URL) == "" {
			errs = append(errs, errors.New("source.url is required for kind=http"))
		}
	case "lms":
		if strings.TrimSpace(cfg.Source.URL) == "" {
			errs = append(errs, errors.New("source.url is required for kind=lms"))
		}
		if _, err := cfg.Source.SemesterStartDate(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind: unknown %q (use file, http or lms)", cfg.Source.Kind))
	}
	if _, err := ParseDurationField("source.timeout", cfg.Source.Timeout); err != nil {
		errs = append(errs, err)
	}

	if n := cfg.Notifier; n != nil {
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.send_timeout":    n.SendTimeout,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if s := cfg.Storage; s != nil {
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Reminder.PersistMarks && (cfg.Storage == nil || isNone(cfg.Storage.Driver)) {
		errs = append(errs, errors.New("reminder.persist_marks requires storage"))
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SemesterStartDate parses semester_start as a UTC date.
func (s SourceConfig) SemesterStartDate() (time.Time, error) {
	raw := strings.TrimSpace(s.SemesterStart)
	if raw == "" {
		return time.Time{}, errors.New("source.semester_start is required for kind=lms")
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("source.semester_start: want YYYY-MM-DD, got %q", raw)
	}
	return t, nil
}

// LeadTime returns the configured default lead, or reminder.DefaultLead.
func (r ReminderConfig) LeadTime() reminder.LeadTime {
	l, err := reminder.ParseLeadTime(r.Lead)
	if err != nil {
		return reminder.DefaultLead
	}
	return l
}

func isNone(driver string) bool {
	d := strings.ToLower(strings.TrimSpace(driver))
	return d == "" || d == "none"
}
