package stack

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCompose is wrapped by every ValidateCompose failure.
var ErrInvalidCompose = errors.New("invalid compose file")

type composeFile struct {
	Services map[string]yaml.Node `yaml:"services"`
}

// ValidateCompose checks that data is YAML declaring at least one service and
// every service in required.
func ValidateCompose(data []byte, required ...string) error {
	var f composeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCompose, err)
	}

	if len(f.Services) == 0 {
		return fmt.Errorf("%w: no services declared", ErrInvalidCompose)
	}

	for _, name := range required {
		if _, ok := f.Services[name]; !ok {
			return fmt.Errorf("%w: service %q missing", ErrInvalidCompose, name)
		}
	}

	return nil
}
