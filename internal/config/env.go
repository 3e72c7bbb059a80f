package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from path into the process environment and
// returns the names the file defines, sorted. Variables that are already
// set are left untouched. A missing file is not an error and returns nil;
// an empty file returns an empty, non-nil slice.
func LoadEnv(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	names := make([]string, 0, len(vars))
	for name, value := range vars {
		names = append(names, name)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	sort.Strings(names)
	return names, nil
}

// CheckEnv returns ErrMissingEnv listing every name in required that is
// unset or empty.
func CheckEnv(required []string) error {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return nil
}
