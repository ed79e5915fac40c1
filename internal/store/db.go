package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrAlreadyExists is a unique constraint violation
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is a missing row or a foreign key pointing at one
	ErrNotFound = errors.New("not found")
)

// NewDB opens a Postgres connection pool and verifies it
func NewDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// translateError maps constraint violations onto the package sentinels
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", ErrAlreadyExists, pqErr.Constraint)
	case "23503":
		return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
	}
	return err
}
