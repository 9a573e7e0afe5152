// Package storage provides the small persistence layer used by coursebell.
//
// It stores two things:
//   - Reminder marks: ids of (task, lead time) pairs already handed to
//     delivery, so a restart can keep deduplicating when enabled
//   - Preferences: a string key-value table (current lead time, chat target)
package storage
