package config

// Config is the whole coursebell configuration file (JSON or YAML).
//
// All durations are Go duration strings ("500ms", "10s", "1m").
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Source   SourceConfig   `json:"source"`
	Reminder ReminderConfig `json:"reminder"`
	Trigger  TriggerConfig  `json:"trigger"`

	// Notifier defaults to enabled when the section is omitted.
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TelegramConfig enables the bot transport. With an empty token reminders
// go to the console.
type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// ChatID receives reminders. 0 means "the first owner who talks to the bot".
	ChatID      int64  `json:"chat_id,omitempty"`
	ThreadID    int    `json:"thread_id,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	ParseMode   string `json:"parse_mode,omitempty"`
}

// SourceConfig selects where the course feed comes from.
//
// Example:
//
//	"source": { "kind": "file", "path": "./feed.json" }
//	"source": { "kind": "lms", "url": "https://learn.example.ac.kr", "cookie": "MoodleSession=...", "semester_start": "2024-09-02" }
type SourceConfig struct {
	Kind    string            `json:"kind"`
	Path    string            `json:"path,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Cookie  string            `json:"cookie,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
	// SemesterStart is a date ("2006-01-02"); lms only.
	SemesterStart string `json:"semester_start,omitempty"`
	Concurrency   int    `json:"concurrency,omitempty"`
}

type ReminderConfig struct {
	// Lead is the default lead time (3h, 6h, 12h, 1d, 3d) until one is
	// selected with /lead.
	Lead string `json:"lead"`
	// PersistMarks keeps already scheduled reminders across restarts.
	// Requires storage.
	PersistMarks bool `json:"persist_marks,omitempty"`
	// Concurrency bounds in-flight schedule calls during a pass.
	Concurrency int `json:"concurrency,omitempty"`
}

type TriggerConfig struct {
	// Schedule is a cron expression or interval ("10m", "*/10 * * * *").
	Schedule   string `json:"schedule"`
	Timezone   string `json:"timezone,omitempty"`
	RunOnStart *bool  `json:"run_on_start,omitempty"`
}

// NotifierConfig controls the async delivery pipeline.
type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	Workers       int    `json:"workers"`
	QueueSize     int    `json:"queue_size"`
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/coursebell.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// DefaultNotifier is used when the notifier section is omitted.
func DefaultNotifier() NotifierConfig {
	return NotifierConfig{
		Enabled:       true,
		Workers:       2,
		QueueSize:     256,
		RatePerSec:    3,
		RetryMax:      3,
		RetryBase:     "500ms",
		RetryMaxDelay: "10s",
		SendTimeout:   "10s",
	}
}

// RunOnStart defaults to true.
func (t TriggerConfig) RunsOnStart() bool { return t.RunOnStart == nil || *t.RunOnStart }
