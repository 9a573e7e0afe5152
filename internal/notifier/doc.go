// Package notifier is the delivery pipeline behind reminder.Primitive.
//
// Schedule arms a timer until the command's FireAt (a FireAt in the past
// fires at once). When the timer fires the reminder is queued and a worker
// pool sends it through a transport.Sender, throttled by a token bucket and
// retried with jittered exponential backoff.
//
// # Guarantees
//
// A nil error from Schedule means the reminder was accepted: armed or queued.
// Nothing past that point is reported back to the scheduler. Timers that have
// not fired when Stop is called are dropped; lifecycle events on the bus say
// which.
//
// # History
//
// The service keeps a small in-memory history of delivered reminders for
// /status.
package notifier
