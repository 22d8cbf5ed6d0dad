package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/lectern/pkg/domain"
)

// Loader implements ports.ContentLoader over courses held in memory.
type Loader struct {
	mu      sync.RWMutex
	courses map[string]map[domain.Variant]*domain.Tree
}

// NewLoader indexes the given courses. A course without Variant is the published one.
func NewLoader(courses ...domain.Course) (*Loader, error) {
	l := &Loader{courses: make(map[string]map[domain.Variant]*domain.Tree)}
	for _, c := range courses {
		if err := l.Add(c); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add indexes a course, replacing any previous version of the same variant.
func (l *Loader) Add(c domain.Course) error {
	if c.Variant == "" {
		c.Variant = domain.VariantPublished
	}
	tree, err := domain.NewTree(c)
	if err != nil {
		return fmt.Errorf("course %s: %w", c.ID, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.courses[c.ID] == nil {
		l.courses[c.ID] = make(map[domain.Variant]*domain.Tree)
	}
	l.courses[c.ID][c.Variant] = tree
	return nil
}

// LoadCourse returns the requested variant. Preview falls back to the published tree when
// no draft exists.
func (l *Loader) LoadCourse(ctx context.Context, courseID string, variant domain.Variant) (*domain.Tree, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	variants, ok := l.courses[courseID]
	if !ok {
		return nil, fmt.Errorf("course %s: %w", courseID, domain.ErrNotFound)
	}
	if tree, ok := variants[variant]; ok {
		return tree, nil
	}
	if tree, ok := variants[domain.VariantPublished]; ok && variant == domain.VariantPreview {
		return tree, nil
	}
	return nil, fmt.Errorf("course %s (%s): %w", courseID, variant, domain.ErrNotFound)
}

// ListCourses returns all course ids, sorted.
func (l *Loader) ListCourses(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.courses))
	for id := range l.courses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
