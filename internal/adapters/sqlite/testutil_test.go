// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema. Do not hardcode CREATE TABLE statements in test
// files; use setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/contentgate/internal/adapters/sqlite"
	"github.com/example/contentgate/internal/db"
	"github.com/example/contentgate/internal/ports/secondary"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedItem saves a minimal item at the given stage and returns its ID.
func seedItem(t *testing.T, database *sql.DB, id, stage, category string) string {
	t.Helper()
	if id == "" {
		id = "0001-carrot"
	}
	if stage == "" {
		stage = "DRAFT"
	}
	if category == "" {
		category = "carrot"
	}
	repo := sqlite.NewContentRepository(database)
	err := repo.Save(context.Background(), &secondary.ContentItemRecord{
		ID:          id,
		Stage:       stage,
		SafetyClass: "SAFE",
		Category:    category,
		Provenance:  "ORIGINAL",
		Revision:    1,
		CreatedAt:   "2026-03-01T09:00:00Z",
		UpdatedAt:   "2026-03-01T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	return id
}

// seedPass inserts a conditional pass and returns its ID.
func seedPass(t *testing.T, database *sql.DB, id, category, original, status string) string {
	t.Helper()
	if status == "" {
		status = "ACTIVE"
	}
	repo := sqlite.NewConditionalPassRepository(database)
	err := repo.Create(context.Background(), &secondary.ConditionalPassRecord{
		ID:                id,
		Category:          category,
		OriginalSource:    original,
		AlternativeSource: "https://www.aspca.org/" + category,
		MatchScore:        "2/3",
		GrantedAt:         "2026-03-01T00:00:00Z",
		ExpiresAt:         "2026-03-31T00:00:00Z",
		Status:            status,
	})
	if err != nil {
		t.Fatalf("failed to seed pass: %v", err)
	}
	return id
}
