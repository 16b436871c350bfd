package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCatalog is matched by every ConfigError
var ErrInvalidCatalog = errors.New("invalid widget catalog")

// ConfigError reports why a widget catalog could not be loaded
type ConfigError struct {
	Path     string
	Problems []string
	Err      error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidCatalog.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if len(e.Problems) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Problems, "; "))
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidCatalog
}

// IsConfigError reports whether err is a catalog configuration error
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidCatalog)
}
