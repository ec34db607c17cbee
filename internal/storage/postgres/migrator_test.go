package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsFromFS_OrderedPairs(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0002_orders.up.sql": {
			Data: []byte("CREATE TABLE orders (id TEXT);"),
		},
		"sql/migrations/0002_orders.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS orders;"),
		},
		"sql/migrations/0001_cells.up.sql": {
			Data: []byte("CREATE TABLE placement_cells (id TEXT);"),
		},
		"sql/migrations/0001_cells.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS placement_cells;"),
		},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	if err != nil {
		t.Fatalf("loadMigrationsFromFS failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}

	// Миграции сортируются по версии независимо от порядка файлов.
	if migrations[0].Version != 1 || migrations[0].Name != "cells" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Version != 2 || migrations[1].Name != "orders" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
}

func TestLoadMigrationsFromFS_MissingDown(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_cells.up.sql": {
			Data: []byte("CREATE TABLE placement_cells (id TEXT);"),
		},
	}

	_, err := loadMigrationsFromFS(fsys)
	if err == nil {
		t.Fatal("expected error for missing down migration")
	}
	if !strings.Contains(err.Error(), "both up and down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMigrationsFromFS_InvalidFilename(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/schema_notes.sql": {
			Data: []byte("SELECT 1;"),
		},
	}

	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for invalid migration file name")
	}
}

func TestLoadMigrationsFromFS_EmptyFile(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0001_cells.up.sql": {
			Data: []byte("   \n"),
		},
		"sql/migrations/0001_cells.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS placement_cells;"),
		},
	}

	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for empty migration file body")
	}
}
