// Package secrets resolves named secrets from the environment or from files
// in a mounted secrets directory.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ddrc/pkg/platform/sentinel"
)

var namePattern = regexp.MustCompile(`^[-a-zA-Z0-9]{1,127}$`)

var ErrInvalidName = errors.New("secret names are 1-127 alphanumeric ASCII characters or hyphens")

type Resolver struct {
	dir    string
	lookup func(string) (string, bool)
}

// New returns a resolver that checks the environment first, then dir when
// it is set.
func New(dir string) *Resolver {
	return &Resolver{dir: dir, lookup: os.LookupEnv}
}

// Get reads secret name. Environment variable names use underscores where
// the secret name has hyphens; literal "\n" sequences become newlines.
func (r *Resolver) Get(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("secret %q: %w", name, ErrInvalidName)
	}
	if v, ok := r.lookup(strings.ReplaceAll(name, "-", "_")); ok {
		return strings.ReplaceAll(v, `\n`, "\n"), nil
	}
	if r.dir != "" {
		raw, err := os.ReadFile(filepath.Join(r.dir, name))
		if err == nil {
			return strings.TrimRight(string(raw), "\r\n"), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("read secret %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("secret %s: %w", name, sentinel.ErrNotFound)
}
