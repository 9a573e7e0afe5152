package config

import (
	"reflect"
	"strings"

	logx "coursebell/pkg/logx"
)

// SummarizeChange lists changed sections and safe structured attrs for
// logging. Secrets (bot token, cookie, headers) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || !reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		ot.ChatID != nt.ChatID || ot.ThreadID != nt.ThreadID || ot.PollTimeout != nt.PollTimeout || ot.ParseMode != nt.ParseMode {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(nt.Token) != ""),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Int64("telegram.chat_id", nt.ChatID),
		)
	}

	if !reflect.DeepEqual(oldCfg.Source, newCfg.Source) {
		changed = append(changed, "source")
		attrs = append(attrs,
			logx.String("source.kind", newCfg.Source.Kind),
			logx.Bool("source.cookie_set", newCfg.Source.Cookie != ""),
		)
	}

	if oldCfg.Reminder != newCfg.Reminder {
		changed = append(changed, "reminder")
		attrs = append(attrs,
			logx.String("reminder.lead", newCfg.Reminder.Lead),
			logx.Bool("reminder.persist_marks", newCfg.Reminder.PersistMarks),
		)
	}

	if oldCfg.Trigger.Schedule != newCfg.Trigger.Schedule || oldCfg.Trigger.Timezone != newCfg.Trigger.Timezone ||
		oldCfg.Trigger.RunsOnStart() != newCfg.Trigger.RunsOnStart() {
		changed = append(changed, "trigger")
		attrs = append(attrs,
			logx.String("trigger.schedule", newCfg.Trigger.Schedule),
			logx.String("trigger.timezone", newCfg.Trigger.Timezone),
		)
	}

	on, nn := DefaultNotifier(), DefaultNotifier()
	if oldCfg.Notifier != nil {
		on = *oldCfg.Notifier
	}
	if newCfg.Notifier != nil {
		nn = *newCfg.Notifier
	}
	if on != nn {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", nn.Enabled),
			logx.Int("notifier.workers", nn.Workers),
			logx.Int("notifier.rate_per_sec", nn.RatePerSec),
		)
	}

	var oldStore, newStore StorageConfig
	if oldCfg.Storage != nil {
		oldStore = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newStore = *newCfg.Storage
	}
	if oldStore != newStore {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newStore.Driver))
	}
	return changed, attrs
}
