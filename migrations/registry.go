// Package migrations registers the embedded call-log and webhook delivery
// schema with a migration runner, one filesystem per SQL dialect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	callverify "github.com/goliatone/go-callverify"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const sourceLabel = "go-callverify"

// dialectDirs lists where each dialect's migrations live in the embedded tree.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{dialect: DialectPostgres, dir: "data/sql/migrations"},
	{dialect: DialectSQLite, dir: "data/sql/migrations/sqlite"},
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type registration struct {
	label    string
	dialects []string
}

type Option func(*registration)

// WithSourceLabel overrides the label passed to the runner.
func WithSourceLabel(label string) Option {
	return func(r *registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.label = label
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(r *registration) {
		var picked []string
		for _, dialect := range dialects {
			dialect = strings.ToLower(strings.TrimSpace(dialect))
			if dialect != "" && !slices.Contains(picked, dialect) {
				picked = append(picked, dialect)
			}
		}
		if len(picked) > 0 {
			r.dialects = picked
		}
	}
}

// Filesystems resolves one migration filesystem per dialect. root defaults
// to the embedded tree; every dialect must carry at least one up migration.
func Filesystems(root ...fs.FS) ([]FilesystemSpec, error) {
	source := callverify.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		source = root[0]
	}

	out := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		sub, err := fs.Sub(source, entry.dir)
		if err != nil {
			return nil, fmt.Errorf("migrations: open %s: %w", entry.dir, err)
		}
		ups, err := fs.Glob(sub, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: list %s: %w", entry.dir, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: no %s up migrations under %s", entry.dialect, entry.dir)
		}
		out = append(out, FilesystemSpec{Dialect: entry.dialect, Path: entry.dir, FS: sub})
	}
	return out, nil
}

// Register hands each selected dialect filesystem to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) ([]FilesystemSpec, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	reg := registration{label: sourceLabel, dialects: []string{DialectPostgres, DialectSQLite}}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	filesystems, err := Filesystems()
	if err != nil {
		return nil, err
	}
	var registered []FilesystemSpec
	for _, entry := range filesystems {
		if !slices.Contains(reg.dialects, entry.Dialect) {
			continue
		}
		if err := registerFn(ctx, entry.Dialect, reg.label, entry.FS); err != nil {
			return registered, fmt.Errorf("migrations: register %s: %w", entry.Dialect, err)
		}
		registered = append(registered, entry)
	}
	return registered, nil
}

// DialectForDriver maps a database/sql driver name to its migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "postgres", "pgx", "postgresql":
		return DialectPostgres, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// Apply registers the migrations for driver's dialect and runs them.
func Apply(
	ctx context.Context,
	driver string,
	register func(fsys fs.FS),
	migrate func(ctx context.Context) error,
) error {
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return err
	}
	if register == nil || migrate == nil {
		return fmt.Errorf("migrations: register and migrate functions are required")
	}
	_, err = Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		register(fsys)
		return nil
	}, WithDialects(dialect))
	if err != nil {
		return err
	}
	return migrate(ctx)
}
