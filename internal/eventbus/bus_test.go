package eventbus

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	Publish(b, TopicReminderScheduled, "x")
	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Topic != TopicReminderScheduled || e.Data != "x" || e.Time.IsZero() {
				t.Fatalf("unexpected event %+v", e)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	b.Publish(Event{Topic: "a"})
	b.Publish(Event{Topic: "b"}) // dropped, buffer full
	unsub()
	unsub()

	var got []string
	for e := range ch {
		got = append(got, e.Topic)
	}
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("got %v, want [a]", got)
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Topic: "c"})
	Publish(nil, "ignored", nil)
}
