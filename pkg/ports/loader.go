package ports

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
)

// ContentLoader defines how the engine retrieves course content.
// Implementations return domain.ErrNotFound for unknown courses or variants.
type ContentLoader interface {
	LoadCourse(ctx context.Context, courseID string, variant domain.Variant) (*domain.Tree, error)
}

// CourseLister is implemented by loaders that can enumerate their courses.
type CourseLister interface {
	ListCourses(ctx context.Context) ([]string, error)
}
