package migrations

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected a single registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %s", calls[0])
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected nil register function to fail")
	}
}

func TestRegister_RejectsUnknownDialect(t *testing.T) {
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return nil
	}, WithValidationTargets("mysql"))
	if err == nil {
		t.Fatalf("expected unknown dialect to fail")
	}
}

func TestFilesystems_RequiresFixedLayout(t *testing.T) {
	// Migration files at the root are not enough; the tree must live under
	// data/sql/migrations with a sqlite subdirectory.
	flat := fstest.MapFS{
		"0001_create.up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE t (id TEXT);")},
	}
	if _, err := Filesystems(flat); err == nil {
		t.Fatalf("expected flat tree to be rejected")
	}

	nested := fstest.MapFS{
		"data/sql/migrations/0001_create.up.sql":        &fstest.MapFile{Data: []byte("CREATE TABLE t (id TEXT);")},
		"data/sql/migrations/sqlite/0001_create.up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE t (id TEXT);")},
	}
	filesystems, err := Filesystems(nested)
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}
}

func TestRegister_CustomSourceLabel(t *testing.T) {
	var label string
	_, err := Register(context.Background(), func(_ context.Context, _ string, sourceLabel string, _ fs.FS) error {
		label = sourceLabel
		return nil
	}, WithValidationTargets(DialectPostgres), WithDialectSourceLabel("custom-source"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if label != "custom-source" {
		t.Fatalf("expected custom source label, got %q", label)
	}
}
