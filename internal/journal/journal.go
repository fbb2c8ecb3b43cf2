// Package journal keeps a durable log of navigation events in SQLite so operators can
// review what the robot did after a run.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Kind names a navigation event
type Kind string

const (
	RouteInstalled  Kind = "route_installed"
	Rerouted        Kind = "rerouted"
	WaypointReached Kind = "waypoint_reached"
	Arrived         Kind = "arrived"
	ObstacleHit     Kind = "obstacle_hit"
	ObstacleCleared Kind = "obstacle_cleared"
)

// Event is one journal row
type Event struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	RouteID   string    `json:"route_id,omitempty"`
	Longitude float64   `json:"lng"`
	Latitude  float64   `json:"lat"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder stores and lists events
type Recorder interface {
	Record(ctx context.Context, event Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	route_id TEXT NOT NULL DEFAULT '',
	lng REAL NOT NULL DEFAULT 0,
	lat REAL NOT NULL DEFAULT 0,
	detail TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_created_at ON events (created_at);
`

// Journal is a Recorder backed by a SQLite database
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path. ":memory:" gives a throwaway database.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends an event. A zero CreatedAt is stamped with the current time.
func (j *Journal) Record(ctx context.Context, event Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (kind, route_id, lng, lat, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(event.Kind), event.RouteID, event.Longitude, event.Latitude, event.Detail, event.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", event.Kind, err)
	}
	return nil
}

// Recent returns up to limit events, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		return []Event{}, nil
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, route_id, lng, lat, detail, created_at FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			event     Event
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &kind, &event.RouteID, &event.Longitude, &event.Latitude, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Kind = Kind(kind)
		event.CreatedAt = time.UnixMilli(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Nop discards events
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

func (Nop) Recent(context.Context, int) ([]Event, error) { return []Event{}, nil }
