package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
)

// CourseBuilder manages the outline construction.
type CourseBuilder struct {
	course   domain.Course
	children map[string]int
	errs     []error
}

// NewCourse creates a builder for the published variant of a course.
func NewCourse(id string) *CourseBuilder {
	return &CourseBuilder{
		course:   domain.Course{ID: id},
		children: make(map[string]int),
	}
}

// Title sets the course title.
func (c *CourseBuilder) Title(title string) *CourseBuilder {
	c.course.Title = title
	return c
}

// Avatar sets the teacher avatar announced when a session starts.
func (c *CourseBuilder) Avatar(url string) *CourseBuilder {
	c.course.AvatarURL = url
	return c
}

// Draft marks the course as the preview variant.
func (c *CourseBuilder) Draft() *CourseBuilder {
	c.course.Variant = domain.VariantPreview
	return c
}

// Chapter appends a top-level chapter.
func (c *CourseBuilder) Chapter(id, title string) *ChapterBuilder {
	c.item(id, "", title)
	return &ChapterBuilder{course: c, id: id}
}

// Lesson appends a top-level lesson.
func (c *CourseBuilder) Lesson(id, title string) *LessonBuilder {
	idx := c.item(id, "", title)
	return &LessonBuilder{course: c, id: id, item: idx}
}

func (c *CourseBuilder) item(id, parent, title string) int {
	c.children[parent]++
	c.course.Items = append(c.course.Items, domain.OutlineItem{
		ID:       id,
		ParentID: parent,
		Order:    c.children[parent],
		Kind:     domain.ItemNormal,
		Title:    title,
	})
	return len(c.course.Items) - 1
}

// Build returns the course once it passes structural and semantic validation.
func (c *CourseBuilder) Build() (domain.Course, error) {
	if len(c.errs) > 0 {
		return domain.Course{}, errors.Join(c.errs...)
	}
	course := c.course
	course.Items = append([]domain.OutlineItem(nil), c.course.Items...)
	course.Blocks = append([]domain.Block(nil), c.course.Blocks...)
	tree, err := domain.NewTree(course)
	if err != nil {
		return domain.Course{}, err
	}
	if err := tree.Validate(); err != nil {
		return domain.Course{}, err
	}
	return course, nil
}

// Loader builds the course into a memory loader.
func (c *CourseBuilder) Loader() (*memory.Loader, error) {
	course, err := c.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build course %s: %w", c.course.ID, err)
	}
	return memory.NewLoader(course)
}

// ChapterBuilder appends children to a chapter.
type ChapterBuilder struct {
	course *CourseBuilder
	id     string
}

// Chapter appends a nested chapter.
func (ch *ChapterBuilder) Chapter(id, title string) *ChapterBuilder {
	ch.course.item(id, ch.id, title)
	return &ChapterBuilder{course: ch.course, id: id}
}

// Lesson appends a lesson to the chapter.
func (ch *ChapterBuilder) Lesson(id, title string) *LessonBuilder {
	idx := ch.course.item(id, ch.id, title)
	return &LessonBuilder{course: ch.course, id: id, item: idx}
}
