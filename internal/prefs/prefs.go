// Package prefs holds user preferences that outlive a single pass: the
// selected reminder lead time and the chat that receives reminders.
package prefs

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"coursebell/internal/reminder"
	logx "coursebell/pkg/logx"
)

const (
	keyLead = "reminder.lead"
	keyChat = "telegram.chat_id"
)

// KV is the subset of storage.Store used here.
type KV interface {
	PutPref(ctx context.Context, key, value string) error
	GetPref(ctx context.Context, key string) (string, bool, error)
}

// Prefs reads through to kv when set and falls back to memory otherwise.
// Values stored in kv win over the configured defaults.
type Prefs struct {
	kv  KV
	log logx.Logger

	mu          sync.RWMutex
	defaultLead reminder.LeadTime
	lead        reminder.LeadTime // in-memory selection when kv is nil
	chat        int64
}

func New(kv KV, defaultLead reminder.LeadTime, log logx.Logger) *Prefs {
	if !defaultLead.Valid() {
		defaultLead = reminder.DefaultLead
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Prefs{kv: kv, log: log, defaultLead: defaultLead}
}

// SetDefaultLead replaces the fallback used when nothing was selected yet.
func (p *Prefs) SetDefaultLead(l reminder.LeadTime) {
	if !l.Valid() {
		return
	}
	p.mu.Lock()
	p.defaultLead = l
	p.mu.Unlock()
}

// Lead returns the current lead time. Storage errors and garbage values fall
// back to the default.
func (p *Prefs) Lead(ctx context.Context) reminder.LeadTime {
	p.mu.RLock()
	def, mem := p.defaultLead, p.lead
	p.mu.RUnlock()

	if p.kv == nil {
		if mem.Valid() {
			return mem
		}
		return def
	}
	raw, ok, err := p.kv.GetPref(ctx, keyLead)
	if err != nil {
		p.log.Warn("lead pref read failed", logx.Err(err))
		return def
	}
	if !ok {
		return def
	}
	l, err := reminder.ParseLeadTime(raw)
	if err != nil {
		p.log.Warn("stored lead pref invalid", logx.String("value", raw))
		return def
	}
	return l
}

// SetLead records the selection.
func (p *Prefs) SetLead(ctx context.Context, l reminder.LeadTime) error {
	if !l.Valid() {
		return reminder.ErrInvalidLead
	}
	if p.kv != nil {
		return p.kv.PutPref(ctx, keyLead, l.String())
	}
	p.mu.Lock()
	p.lead = l
	p.mu.Unlock()
	return nil
}

// Chat returns the remembered reminder chat, or fallback if none is stored.
func (p *Prefs) Chat(ctx context.Context, fallback int64) int64 {
	if p.kv == nil {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if p.chat != 0 {
			return p.chat
		}
		return fallback
	}
	raw, ok, err := p.kv.GetPref(ctx, keyChat)
	if err != nil || !ok {
		return fallback
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return fallback
	}
	return id
}

func (p *Prefs) SetChat(ctx context.Context, id int64) error {
	if p.kv != nil {
		return p.kv.PutPref(ctx, keyChat, strconv.FormatInt(id, 10))
	}
	p.mu.Lock()
	p.chat = id
	p.mu.Unlock()
	return nil
}
