package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteChecker checks that the project database answers.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check pings the database and confirms the schema has been migrated.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return errors.New("database not initialized")
	}
	if err := c.db.PingContext(ctx); err != nil {
		return err
	}
	var version int
	if err := c.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}
	if version == 0 {
		return errors.New("schema not migrated")
	}
	return nil
}

// FuncChecker adapts a function to the Checker interface.
type FuncChecker struct {
	name  string
	check func(ctx context.Context) error
}

// NewFuncChecker creates a checker named name that runs check.
func NewFuncChecker(name string, check func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, check: check}
}

func (c *FuncChecker) Name() string {
	return c.name
}

func (c *FuncChecker) Check(ctx context.Context) error {
	if c.check == nil {
		return errors.New("no check configured")
	}
	return c.check(ctx)
}

// AutosaveChecker fails while any open editing session's most recent save
// failed. A later successful save clears the failure.
type AutosaveChecker struct {
	sessions SessionReporter
}

// NewAutosaveChecker creates a checker over the session manager.
func NewAutosaveChecker(sessions SessionReporter) *AutosaveChecker {
	return &AutosaveChecker{sessions: sessions}
}

func (c *AutosaveChecker) Name() string {
	return "autosave"
}

func (c *AutosaveChecker) Check(ctx context.Context) error {
	if c.sessions == nil {
		return errors.New("session manager not initialized")
	}
	if n := c.sessions.Failing(); n > 0 {
		return fmt.Errorf("%d of %d editing session(s) failing to save", n, c.sessions.Count())
	}
	return nil
}
