// Package file loads courses and message catalogs from YAML files.
//
// A course directory holds one document per course variant:
//
//	intro.yaml          published
//	intro.preview.yaml  draft served to preview turns
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

const previewSuffix = ".preview"

var extensions = []string{".yaml", ".yml"}

// Loader implements ports.ContentLoader over a directory of YAML documents.
// Parsed trees are cached until the file's modification time changes.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	modTime time.Time
	tree    *domain.Tree
}

var (
	_ ports.ContentLoader = (*Loader)(nil)
	_ ports.CourseLister  = (*Loader)(nil)
)

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: make(map[string]cached)}
}

// LoadCourse reads, validates and caches a course variant. Preview falls back to the
// published document when no draft exists.
func (l *Loader) LoadCourse(ctx context.Context, courseID string, variant domain.Variant) (*domain.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if courseID == "" || strings.ContainsAny(courseID, `/\`) || strings.HasPrefix(courseID, ".") {
		return nil, fmt.Errorf("course %q: %w", courseID, domain.ErrNotFound)
	}

	if variant == domain.VariantPreview {
		if path, ok := l.find(courseID + previewSuffix); ok {
			return l.load(courseID, variant, path)
		}
	}
	path, ok := l.find(courseID)
	if !ok {
		return nil, fmt.Errorf("course %s: %w", courseID, domain.ErrNotFound)
	}
	return l.load(courseID, domain.VariantPublished, path)
}

// ListCourses returns the ids of the published courses, sorted.
func (l *Loader) ListCourses(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read course dir: %w", err)
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !isYAML(ext) {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if strings.HasSuffix(id, previewSuffix) {
			continue
		}
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (l *Loader) find(base string) (string, bool) {
	for _, ext := range extensions {
		path := filepath.Join(l.dir, base+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func (l *Loader) load(courseID string, variant domain.Variant, path string) (*domain.Tree, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.cache[path]; ok && c.modTime.Equal(info.ModTime()) {
		return c.tree, nil
	}

	course, err := ReadCourse(path)
	if err != nil {
		return nil, err
	}
	if course.ID != courseID {
		return nil, fmt.Errorf("%s: course id %q does not match file name", path, course.ID)
	}
	course.Variant = variant
	tree, err := domain.NewTree(course)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.cache[path] = cached{modTime: info.ModTime(), tree: tree}
	return tree, nil
}

// ReadCourse parses the course document at path without validating it.
func ReadCourse(path string) (domain.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Course{}, fmt.Errorf("read course: %w", err)
	}
	return ParseCourse(data)
}

func isYAML(ext string) bool {
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
