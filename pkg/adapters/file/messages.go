package file

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/lectern/pkg/domain"
)

// LoadMessages reads a message catalog. Keys missing from the file keep their default text.
func LoadMessages(path string) (domain.Messages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Messages{}, fmt.Errorf("read messages: %w", err)
	}
	var m domain.Messages
	if err := yaml.Unmarshal(data, &m); err != nil {
		return domain.Messages{}, fmt.Errorf("parse messages %s: %w", path, err)
	}
	return m.Merge(domain.DefaultMessages()), nil
}
