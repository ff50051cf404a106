// Package migrations exposes the embedded credential-store schema to a host
// application's migration runner. The tree is fixed: postgres files at
// data/sql/migrations, sqlite variants in the sqlite subdirectory.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	integrations "github.com/goliatone/go-integrations"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	treeRoot        = "data/sql/migrations"
	sqliteSubdir    = "sqlite"
	defaultSourceID = "go-integrations"
)

// FilesystemSpec pairs a dialect with the filesystem holding its migration
// files.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc receives one dialect's filesystem. Hosts typically forward it
// to their persistence client's migration registration.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type Option func(*Registration)

// WithDialectSourceLabel overrides the label the host runner records as the
// migration source.
func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets restricts registration to the named dialects. The
// default registers both.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		var next []string
		for _, target := range targets {
			dialect := normalizeDialect(target)
			if dialect == "" || slices.Contains(next, dialect) {
				continue
			}
			next = append(next, dialect)
		}
		if len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// Filesystems resolves the per-dialect migration filesystems from the
// embedded tree, or from an explicit root when one is given.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := integrations.GetCoreMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	postgresFS, err := fs.Sub(root, treeRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s not found: %w", treeRoot, err)
	}
	sqliteFS, err := fs.Sub(postgresFS, sqliteSubdir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: treeRoot, FS: postgresFS},
		{Dialect: DialectSQLite, Path: treeRoot + "/" + sqliteSubdir, FS: sqliteFS},
	}
	for _, spec := range specs {
		if err := requireUpMigrations(spec); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// Register resolves the embedded filesystems and hands each requested dialect
// to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       defaultSourceID,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	if err := reg.validate(); err != nil {
		return reg, err
	}

	for _, spec := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func (r Registration) validate() error {
	if strings.TrimSpace(r.SourceLabel) == "" {
		return fmt.Errorf("migrations: source label is required")
	}
	if len(r.ValidationTargets) == 0 {
		return fmt.Errorf("migrations: validation targets are required")
	}
	if len(r.Filesystems) == 0 {
		return fmt.Errorf("migrations: filesystems are required")
	}
	for _, target := range r.ValidationTargets {
		known := slices.ContainsFunc(r.Filesystems, func(spec FilesystemSpec) bool {
			return spec.Dialect == target
		})
		if !known {
			return fmt.Errorf("migrations: no filesystem for dialect %q", target)
		}
	}
	return nil
}

func requireUpMigrations(spec FilesystemSpec) error {
	matches, err := fs.Glob(spec.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s %s: %w", spec.Dialect, spec.Path, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", spec.Dialect, spec.Path)
	}
	return nil
}

func normalizeDialect(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}
