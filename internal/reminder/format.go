package reminder

import (
	"fmt"
	"strings"
	"time"

	"coursebell/internal/task"
)

// Title is "[과제] 과목명" or "[영상] 과목명".
func Title(t task.Task) string {
	return "[" + t.Kind.Label() + "] " + t.CourseName
}

// Body is the task label followed by the remaining time at now.
func Body(t task.Task, now time.Time) string {
	if !t.Deadline.Valid() {
		return t.Label
	}
	return t.Label + " · " + FormatRemaining(t.Deadline.Time().Sub(now))
}

// FormatRemaining renders d the way the course app does: "1일 2시간 남음",
// "4시간 남음", "35분 남음". Anything under a minute is "곧 마감".
func FormatRemaining(d time.Duration) string {
	if d < time.Minute {
		return "곧 마감"
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	parts := make([]string, 0, 2)
	switch {
	case days > 0:
		parts = append(parts, fmt.Sprintf("%d일", days))
		if hours > 0 {
			parts = append(parts, fmt.Sprintf("%d시간", hours))
		}
	case hours > 0:
		parts = append(parts, fmt.Sprintf("%d시간", hours))
		if minutes > 0 {
			parts = append(parts, fmt.Sprintf("%d분", minutes))
		}
	default:
		parts = append(parts, fmt.Sprintf("%d분", minutes))
	}
	return strings.Join(parts, " ") + " 남음"
}
