package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/lectern/pkg/adapters/file"
	"github.com/aretw0/lectern/pkg/domain"
)

// ValidateFiles checks that each course document parses into a consistent outline.
// It reports every file to w and returns an error if any failed.
func ValidateFiles(w io.Writer, paths ...string) error {
	var errs []error
	for _, path := range paths {
		if err := validateFile(path); err != nil {
			fmt.Fprintf(w, "FAIL %s\n  %v\n", path, err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Fprintf(w, "ok   %s\n", path)
	}
	return errors.Join(errs...)
}

func validateFile(path string) error {
	course, err := file.ReadCourse(path)
	if err != nil {
		return err
	}
	tree, err := domain.NewTree(course)
	if err != nil {
		return err
	}
	return tree.Validate()
}
