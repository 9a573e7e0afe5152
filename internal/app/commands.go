package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursebell/internal/eventbus"
	"coursebell/internal/reminder"
	"coursebell/internal/task"
	kit "coursebell/internal/transport"
	logx "coursebell/pkg/logx"
)

// maxListed caps /tasks output; the rest is summarized in one line.
const maxListed = 20

type command struct {
	name string
	desc string
	run  func(ctx context.Context, a *App, m kit.Message, args []string) string
}

var commands = []command{
	{name: "start", desc: "알림을 이 채팅으로 받기", run: cmdStart},
	{name: "tasks", desc: "남은 강의·과제 목록", run: cmdTasks},
	{name: "lead", desc: "알림 시점 보기/변경 (3h 6h 12h 1d 3d)", run: cmdLead},
	{name: "refresh", desc: "지금 다시 확인", run: cmdRefresh},
	{name: "status", desc: "상태", run: cmdStatus},
}

func menuCommands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(commands))
	for _, c := range commands {
		out = append(out, kit.BotCommand{Command: c.name, Description: c.desc})
	}
	return out
}

// parseCommand splits "/lead@bot 3h" into ("lead", ["3h"]).
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

func (a *App) dispatchLoop(ctx context.Context, in <-chan kit.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-in:
			if !ok {
				return nil
			}
			a.handleMessage(ctx, m)
		}
	}
}

func (a *App) handleMessage(ctx context.Context, m kit.Message) {
	name, args, ok := parseCommand(m.Text)
	if !ok {
		return
	}
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		return
	}
	if !a.isOwner(m.FromID) {
		a.log.Debug("command from non-owner ignored", logx.String("cmd", name), logx.Int64("from", m.FromID))
		return
	}
	// The first owner to talk to the bot receives reminders unless a chat is configured.
	if a.chatTarget().ChatID == 0 && name != "start" {
		a.rememberChat(ctx, m)
	}

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	reply := cmd.run(cctx, a, m, args)
	if reply == "" {
		return
	}
	if err := a.sender.SendText(cctx, m.Target(), reply); err != nil {
		a.log.Warn("command reply failed", logx.String("cmd", name), logx.Err(err))
	}
}

func (a *App) rememberChat(ctx context.Context, m kit.Message) {
	if err := a.prefs.SetChat(ctx, m.ChatID); err != nil {
		a.log.Warn("chat persist failed", logx.Err(err))
	}
	a.setChat(m.Target())
	a.log.Info("reminder chat set", logx.Int64("chat_id", m.ChatID), logx.Int("thread_id", m.ThreadID))
}

func cmdStart(ctx context.Context, a *App, m kit.Message, _ []string) string {
	a.rememberChat(ctx, m)
	return "이 채팅으로 마감 알림을 보냅니다. 알림 시점: " + a.prefs.Lead(ctx).String()
}

func cmdTasks(ctx context.Context, a *App, _ kit.Message, _ []string) string {
	tasks, err := a.Tasks(ctx)
	if err != nil {
		a.log.Warn("tasks fetch failed", logx.Err(err))
		return "목록을 가져오지 못했습니다: " + err.Error()
	}
	return RenderTasks(tasks, maxListed)
}

// RenderTasks formats a ranked task list, one task per line.
func RenderTasks(tasks []task.Task, limit int) string {
	if len(tasks) == 0 {
		return "남은 강의·과제가 없습니다."
	}
	var b strings.Builder
	for i, t := range tasks {
		if limit > 0 && i == limit {
			fmt.Fprintf(&b, "… 외 %d개\n", len(tasks)-limit)
			break
		}
		fmt.Fprintf(&b, "%d. %s · %s · %s\n", i+1, reminder.Title(t), t.Label, remainingText(t))
	}
	return strings.TrimRight(b.String(), "\n")
}

func remainingText(t task.Task) string {
	switch {
	case !t.Deadline.Valid():
		return "마감 미상 (" + t.RawDeadline + ")"
	case t.Remaining <= 0:
		return "마감 지남"
	default:
		return reminder.FormatRemaining(t.Remaining)
	}
}

// LeadEvent is published when the lead time selection changes.
type LeadEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func cmdLead(ctx context.Context, a *App, _ kit.Message, args []string) string {
	cur := a.prefs.Lead(ctx)
	if len(args) == 0 {
		opts := make([]string, 0, len(reminder.LeadTimes))
		for _, l := range reminder.LeadTimes {
			opts = append(opts, l.String())
		}
		return fmt.Sprintf("현재 알림 시점: 마감 %s 전\n변경: /lead <%s>", cur, strings.Join(opts, "|"))
	}
	next, err := reminder.ParseLeadTime(args[0])
	if err != nil {
		return "알 수 없는 값입니다: " + args[0]
	}
	if next == cur {
		return "이미 마감 " + cur.String() + " 전으로 설정되어 있습니다."
	}
	if err := a.prefs.SetLead(ctx, next); err != nil {
		a.log.Warn("lead persist failed", logx.Err(err))
		return "저장하지 못했습니다: " + err.Error()
	}
	a.log.Info("lead changed", logx.String("from", cur.String()), logx.String("to", next.String()))
	eventbus.Publish(a.bus, eventbus.TopicLeadChanged, LeadEvent{From: cur.String(), To: next.String()})
	a.trig.Kick("lead")
	return "알림 시점을 마감 " + next.String() + " 전으로 바꿨습니다."
}

func cmdRefresh(_ context.Context, a *App, _ kit.Message, _ []string) string {
	if a.trig.Kick("refresh") {
		return "다시 확인합니다."
	}
	return "이미 확인 대기 중입니다."
}

func cmdStatus(ctx context.Context, a *App, _ kit.Message, _ []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "source: %s\n", a.src.Name())
	fmt.Fprintf(&b, "lead: %s\n", a.prefs.Lead(ctx))
	fmt.Fprintf(&b, "ledger: %d\n", a.ledger.Len())

	lp := a.LastPass()
	switch {
	case lp.At.IsZero():
		b.WriteString("last pass: -\n")
	case lp.FetchErr != "":
		fmt.Fprintf(&b, "last pass: %s (%s) skipped: %s\n", lp.At.Format("01-02 15:04"), lp.Reason, lp.FetchErr)
	default:
		fmt.Fprintf(&b, "last pass: %s (%s) tasks=%d scheduled=%d already=%d failed=%d took=%s\n",
			lp.At.Format("01-02 15:04"), lp.Reason, lp.Tasks, len(lp.Report.Scheduled),
			lp.Report.AlreadyScheduled, len(lp.Report.Failed), lp.Took.Round(time.Millisecond))
	}
	if next := a.trig.Next(); !next.IsZero() {
		fmt.Fprintf(&b, "next pass: %s\n", next.Format("01-02 15:04"))
	}

	st := a.notif.Stats()
	fmt.Fprintf(&b, "delivery: armed=%d queued=%d delivered=%d\n", st.Armed, st.Queued, st.Delivered)

	if a.sup != nil {
		snap := a.sup.Snapshot()
		active := 0
		for _, g := range snap {
			if g.Active > 0 {
				active++
			}
		}
		fmt.Fprintf(&b, "goroutines: %d/%d active", active, len(snap))
	}
	return strings.TrimRight(b.String(), "\n")
}
