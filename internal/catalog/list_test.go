package catalog

import (
	"testing"
	"time"

	"github.com/ghaggin/classroom/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterCourses(t *testing.T) {
	courses := []model.Course{
		{ID: "1", Title: "Intro to Go", Level: "beginner"},
		{ID: "2", Title: "Databases", Description: "SQL with Go", Level: "advanced"},
		{ID: "3", Title: "Rust", Level: "beginner"},
	}

	ids := func(cs []model.Course) []string {
		out := []string{}
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2"}, ids(FilterCourses(courses, " GO ", "")))
	assert.Equal(t, []string{"1"}, ids(FilterCourses(courses, "go", "Beginner")))
	assert.Equal(t, []string{"1", "2", "3"}, ids(FilterCourses(courses, "", "")))
}

func TestSortCategories(t *testing.T) {
	now := time.Now()
	cats := []model.Category{
		{ID: "a", Name: "web", Level: 2, CreatedAt: now},
		{ID: "b", Name: "Algorithms", Level: 3, CreatedAt: now.Add(-time.Hour)},
		{ID: "c", Name: "data", Level: 1, CreatedAt: now.Add(time.Hour)},
	}

	order := func() string {
		s := ""
		for _, c := range cats {
			s += c.ID
		}
		return s
	}

	SortCategories(cats, "name", "asc")
	assert.Equal(t, "bca", order())
	SortCategories(cats, "level", "desc")
	assert.Equal(t, "bac", order())
	SortCategories(cats, "createdAt", "")
	assert.Equal(t, "bac", order())
	SortCategories(cats, "bogus", "desc")
	assert.Equal(t, "bac", order())
}

func TestReorderLessons(t *testing.T) {
	lessons := []model.Lesson{{ID: "a", OrderIndex: 0}, {ID: "b", OrderIndex: 1}, {ID: "c", OrderIndex: 2}}

	out, err := ReorderLessons(lessons, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.Lesson{{ID: "b", OrderIndex: 0}, {ID: "c", OrderIndex: 1}, {ID: "a", OrderIndex: 2}}, out)
	assert.Equal(t, "a", lessons[0].ID)

	out, err = ReorderLessons(lessons, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, 0, out[0].OrderIndex)

	_, err = ReorderLessons(lessons, 3, 0)
	assert.ErrorIs(t, err, ErrLessonPosition)
}
