// Package course holds the raw records supplied by the course-data source.
//
// Records are decoded as-is; no field is guaranteed to be present and there is
// no uniqueness or ordering guarantee on either collection.
package course

// Lecture is one outstanding video lecture.
type Lecture struct {
	CourseName string `json:"courseName" yaml:"courseName"`
	Title      string `json:"lecture_title" yaml:"lecture_title"`
	Length     string `json:"lecture_length,omitempty" yaml:"lecture_length,omitempty"`
	Deadline   string `json:"deadline" yaml:"deadline"`
}

// Assignment is one assignment with its submission state.
type Assignment struct {
	CourseName string `json:"courseName" yaml:"courseName"`
	Title      string `json:"title" yaml:"title"`
	Week       string `json:"week,omitempty" yaml:"week,omitempty"`
	Status     string `json:"status,omitempty" yaml:"status,omitempty"`
	Deadline   string `json:"deadline" yaml:"deadline"`
}

// Feed is one snapshot of the source. Lectures are grouped per course, as the
// upstream feed delivers them.
type Feed struct {
	Lectures    [][]Lecture  `json:"lectures" yaml:"lectures"`
	Assignments []Assignment `json:"assignments" yaml:"assignments"`
}

// LectureCount returns the number of lectures across all groups.
func (f Feed) LectureCount() int {
	n := 0
	for _, g := range f.Lectures {
		n += len(g)
	}
	return n
}
