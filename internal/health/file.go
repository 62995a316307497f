package health

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stepsync/internal/dates"
)

// Export is the on-disk shape read by FileProvider:
//
//	authorized: true
//	scopes: [steps.read]
//	steps:
//	  2026-02-03: 8500
//	  2026-02-02: 10240
type Export struct {
	Authorized bool               `yaml:"authorized"`
	Scopes     []Scope            `yaml:"scopes,omitempty"`
	Steps      map[dates.Date]int `yaml:"steps"`
}

// FileProvider serves step totals from a YAML Export.
//
// The file is re-read on every call: a companion process may rewrite it
// while the client is running.
type FileProvider struct {
	path string
}

// NewFileProvider returns a provider backed by path. The file need not
// exist yet; until it does the provider reports unavailable.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Path returns the export file path.
func (p *FileProvider) Path() string {
	return p.path
}

// IsAvailable reports whether the export file exists.
func (p *FileProvider) IsAvailable(ctx context.Context) bool {
	if p.path == "" {
		return false
	}
	_, err := os.Stat(p.path)
	return err == nil
}

// RequestAuthorization reports whether the export grants every scope
// requested. An export with authorized: true and no scopes list grants all.
func (p *FileProvider) RequestAuthorization(ctx context.Context, scopes []Scope) (bool, error) {
	exp, err := p.load()
	if err != nil {
		return false, err
	}
	if !exp.Authorized {
		return false, nil
	}
	if len(exp.Scopes) == 0 {
		return true, nil
	}
	granted := make(map[Scope]bool, len(exp.Scopes))
	for _, s := range exp.Scopes {
		granted[s] = true
	}
	for _, s := range scopes {
		if !granted[s] {
			return false, nil
		}
	}
	return true, nil
}

// TotalSteps returns the exported total for d, or 0 when the export has
// no value for that date.
func (p *FileProvider) TotalSteps(ctx context.Context, d dates.Date) (int, error) {
	exp, err := p.load()
	if err != nil {
		return 0, err
	}
	if !exp.Authorized {
		return 0, fmt.Errorf("total steps %s: not authorized", d)
	}
	n := exp.Steps[d]
	if n < 0 {
		return 0, fmt.Errorf("total steps %s: negative value %d in export", d, n)
	}
	return n, nil
}

func (p *FileProvider) load() (Export, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Export{}, fmt.Errorf("%w: %s", ErrUnavailable, p.path)
		}
		return Export{}, fmt.Errorf("read health export: %w", err)
	}

	var exp Export
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&exp); err != nil {
		return Export{}, fmt.Errorf("parse health export %s: %w", p.path, err)
	}
	return exp, nil
}

// WriteExport writes exp to path in the format FileProvider reads.
func WriteExport(path string, exp Export) error {
	data, err := yaml.Marshal(exp)
	if err != nil {
		return fmt.Errorf("encode health export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write health export: %w", err)
	}
	return nil
}
