package catalog

import (
	"sort"
	"strings"

	"github.com/ghaggin/classroom/internal/model"
	"github.com/pkg/errors"
)

// FilterCourses keeps the courses whose title or description contains query
// (case-insensitive) and, when level is set, whose level matches.
func FilterCourses(courses []model.Course, query, level string) []model.Course {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]model.Course, 0, len(courses))
	for _, c := range courses {
		if level != "" && !strings.EqualFold(c.Level, level) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(c.Title), query) &&
			!strings.Contains(strings.ToLower(c.Description), query) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SortCategories orders categories in place by "name", "level" or
// "createdAt"; dir "desc" reverses. Unknown keys leave the order unchanged.
func SortCategories(cats []model.Category, by, dir string) {
	var less func(a, b model.Category) bool
	switch by {
	case "name":
		less = func(a, b model.Category) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case "level":
		less = func(a, b model.Category) bool { return a.Level < b.Level }
	case "createdAt":
		less = func(a, b model.Category) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		return
	}

	desc := strings.EqualFold(dir, "desc")
	sort.SliceStable(cats, func(i, j int) bool {
		if desc {
			return less(cats[j], cats[i])
		}
		return less(cats[i], cats[j])
	})
}

// ReorderLessons moves the lesson at from to position to and renumbers
// OrderIndex from 0. The input slice is not modified.
func ReorderLessons(lessons []model.Lesson, from, to int) ([]model.Lesson, error) {
	n := len(lessons)
	if from < 0 || from >= n || to < 0 || to >= n {
		return nil, errors.Wrapf(ErrLessonPosition, "from=%d to=%d len=%d", from, to, n)
	}

	out := make([]model.Lesson, 0, n)
	moved := lessons[from]
	for i, l := range lessons {
		if i == from {
			continue
		}
		out = append(out, l)
	}
	out = append(out[:to], append([]model.Lesson{moved}, out[to:]...)...)

	for i := range out {
		out[i].OrderIndex = i
	}
	return out, nil
}
