package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"coursebell/internal/course"
	logx "coursebell/pkg/logx"
)

// ErrNotLoggedIn is returned when the course list page has no course list,
// which is what the site serves to an expired session.
var ErrNotLoggedIn = errors.New("lms: course list not found (session expired?)")

// LMS scrapes a Moodle-style course site: the dashboard course list, each
// course's progress report for unwatched lectures of the current week, and
// the current-week section of the course page for assignments.
//
// Logging in is out of scope; Cookie must carry an authenticated session.
type LMS struct {
	BaseURL       string
	Cookie        string
	SemesterStart time.Time
	Concurrency   int
	Client        *http.Client
	Log           logx.Logger
	Now           func() time.Time
}

// CourseLink is one entry of the dashboard course list.
type CourseLink struct {
	Title string
	URL   string
}

func (l *LMS) Name() string { return "lms:" + l.BaseURL }

func (l *LMS) Fetch(ctx context.Context) (course.Feed, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	week := CurrentWeek(l.SemesterStart, now)
	due := WeekDeadline(l.SemesterStart, week)

	base, err := url.Parse(l.BaseURL + "/")
	if err != nil {
		return course.Feed{}, fmt.Errorf("lms base url: %w", err)
	}
	doc, err := l.get(ctx, base.String())
	if err != nil {
		return course.Feed{}, err
	}
	courses, err := ParseCourseList(doc, base)
	if err != nil {
		return course.Feed{}, err
	}

	lectures := make([][]course.Lecture, len(courses))
	assignments := make([][]course.Assignment, len(courses))

	var g errgroup.Group
	g.SetLimit(max(l.Concurrency, 1))
	for i, c := range courses {
		g.Go(func() error {
			if pdoc, err := l.get(ctx, progressURL(c.URL)); err != nil {
				l.logger().Warn("progress page failed", logx.String("course", c.Title), logx.Err(err))
			} else {
				lectures[i] = ParseProgress(pdoc, c.Title, week, due)
			}
			if cdoc, err := l.get(ctx, c.URL); err != nil {
				l.logger().Warn("course page failed", logx.String("course", c.Title), logx.Err(err))
			} else {
				assignments[i] = ParseAssignments(cdoc, c.Title, week)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return course.Feed{}, err
	}

	var feed course.Feed
	for i := range courses {
		if len(lectures[i]) > 0 {
			feed.Lectures = append(feed.Lectures, lectures[i])
		}
		feed.Assignments = append(feed.Assignments, assignments[i]...)
	}
	l.logger().Debug("lms scraped", logx.Int("courses", len(courses)), logx.Int("week", week),
		logx.Int("lectures", feed.LectureCount()), logx.Int("assignments", len(feed.Assignments)))
	return feed, nil
}

func (l *LMS) logger() logx.Logger {
	if l.Log.IsZero() {
		return logx.Nop()
	}
	return l.Log
}

func (l *LMS) get(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if l.Cookie != "" {
		req.Header.Set("Cookie", l.Cookie)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

// CurrentWeek is the 1-based semester week containing now. Before the
// semester starts it is <= 0.
func CurrentWeek(start, now time.Time) int {
	days := now.Sub(start).Hours() / 24
	return int(math.Floor(days/7)) + 1
}

// WeekDeadline is the last minute of the given week, in the feed's
// "YYYY-MM-DD HH:MM" form.
func WeekDeadline(start time.Time, week int) string {
	end := start.AddDate(0, 0, 7*week).Add(-time.Minute)
	return end.Format("2006-01-02 15:04")
}

// ParseCourseList reads the dashboard. Community boards are skipped.
func ParseCourseList(doc *goquery.Document, base *url.URL) ([]CourseLink, error) {
	list := doc.Find("ul.my-course-lists")
	if list.Length() == 0 {
		return nil, ErrNotLoggedIn
	}
	var out []CourseLink
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		label := li.Find("div.label.label-course")
		if label.Length() == 0 || strings.Contains(label.Text(), "커뮤니티") {
			return
		}
		title := strings.TrimSpace(li.Find("div.course-title h3").First().Text())
		href, ok := li.Find("a.course_link").First().Attr("href")
		if title == "" || !ok {
			return
		}
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		out = append(out, CourseLink{Title: title, URL: u.String()})
	})
	return out, nil
}

// progressURL maps ".../course/view.php?id=N" to the progress report of
// course N.
func progressURL(courseURL string) string {
	u, err := url.Parse(courseURL)
	if err != nil {
		return strings.TrimRight(courseURL, "/") + "/report/ubcompletion/progress.php"
	}
	id := u.Query().Get("id")
	if id == "" {
		return strings.TrimRight(courseURL, "/") + "/report/ubcompletion/progress.php"
	}
	return u.ResolveReference(&url.URL{
		Path:     "/report/ubcompletion/progress.php",
		RawQuery: url.Values{"id": {id}}.Encode(),
	}).String()
}

// ParseProgress returns the lectures of week whose attendance cell is "X".
// Rows are week | title | length | viewed | attendance.
func ParseProgress(doc *goquery.Document, courseName string, week int, deadline string) []course.Lecture {
	var out []course.Lecture
	doc.Find("table.user_progress_table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 5 {
			return
		}
		w, err := strconv.Atoi(strings.TrimSpace(cells.Eq(0).Text()))
		if err != nil || w != week {
			return
		}
		if strings.TrimSpace(cells.Eq(4).Text()) != "X" {
			return
		}
		out = append(out, course.Lecture{
			CourseName: courseName,
			Title:      strings.TrimSpace(cells.Eq(1).Text()),
			Length:     strings.TrimSpace(cells.Eq(2).Text()),
			Deadline:   deadline,
		})
	})
	return out
}

// ParseAssignments lists assignments in the current-week section. The course
// page carries no due date, so Deadline is left empty.
func ParseAssignments(doc *goquery.Document, courseName string, week int) []course.Assignment {
	var out []course.Assignment
	doc.Find("li.section.main.current li.activity.assign").Each(func(_ int, li *goquery.Selection) {
		name := li.Find("span.instancename").First().Clone()
		name.Find(".accesshide").Remove()
		title := strings.TrimSpace(name.Text())
		if title == "" {
			return
		}
		out = append(out, course.Assignment{
			CourseName: courseName,
			Title:      title,
			Week:       strconv.Itoa(week),
		})
	})
	return out
}
