// Package console is a Sender that writes reminders to the log and,
// optionally, to a plain writer. Used when no bot token is configured.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	kit "coursebell/internal/transport"
	logx "coursebell/pkg/logx"
)

type Sender struct {
	log logx.Logger

	mu sync.Mutex
	w  io.Writer
}

// New returns a console sender. w may be nil to log only.
func New(w io.Writer, log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{log: log, w: w}
}

func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("reminder", logx.Int64("chat_id", to.ChatID), logx.String("text", text))
	if s.w == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s  %s\n", time.Now().Format("01-02 15:04"), text)
	return err
}
