package app

import (
	"strings"
	"time"

	"coursebell/internal/config"
	"coursebell/internal/notifier"
	"coursebell/internal/source"
	"coursebell/internal/transport/telegram"
	"coursebell/internal/trigger"
	logx "coursebell/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: poll,
		ParseMode:   cfg.Telegram.ParseMode,
	}, nil
}

// mapNotifierConfig falls back to config.DefaultNotifier for an omitted
// section and for zero fields.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	def := config.DefaultNotifier()
	nc := def
	if cfg != nil && cfg.Notifier != nil {
		nc = *cfg.Notifier
	}
	if nc.Workers == 0 {
		nc.Workers = def.Workers
	}
	if nc.QueueSize == 0 {
		nc.QueueSize = def.QueueSize
	}
	if nc.RatePerSec == 0 {
		nc.RatePerSec = def.RatePerSec
	}

	base, err := config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", nc.SendTimeout, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:       nc.Enabled,
		Workers:       nc.Workers,
		QueueSize:     nc.QueueSize,
		RatePerSec:    nc.RatePerSec,
		RetryMax:      nc.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
		SendTimeout:   sendTimeout,
	}, nil
}

func mapSourceConfig(cfg *config.Config) (source.Config, error) {
	sc := cfg.Source
	timeout, err := config.ParseDurationOrDefault("source.timeout", sc.Timeout, 15*time.Second)
	if err != nil {
		return source.Config{}, err
	}
	out := source.Config{
		Kind:        sc.Kind,
		Path:        sc.Path,
		URL:         sc.URL,
		Headers:     sc.Headers,
		Cookie:      sc.Cookie,
		Timeout:     timeout,
		Concurrency: sc.Concurrency,
	}
	if strings.EqualFold(strings.TrimSpace(sc.Kind), "lms") {
		start, err := sc.SemesterStartDate()
		if err != nil {
			return source.Config{}, err
		}
		out.SemesterStart = start
	}
	return out, nil
}

func mapTriggerConfig(cfg *config.Config) trigger.Config {
	return trigger.Config{
		Schedule:   cfg.Trigger.Schedule,
		Timezone:   cfg.Trigger.Timezone,
		RunOnStart: cfg.Trigger.RunsOnStart(),
	}
}
