// Package journal provides an append-only PostgreSQL log of molecule
// lifecycle events, keyed by call.
//
// The journal is an operational audit trail — who enqueued what, when a
// molecule was preempted, and how it left its lane. The scheduler never
// reads it back; queue state lives only in memory.
//
// A nil *Journal is valid and drops every event, so callers never need to
// guard their writes:
//
//	var j *journal.Journal // journal disabled
//	j.Record(ctx, ev)      // no-op
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType classifies molecule lifecycle events.
type EventType string

const (
	EventEnqueued  EventType = "enqueued"
	EventStarted   EventType = "started"
	EventPreempted EventType = "preempted"
	EventResumed   EventType = "resumed"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
	EventDiscarded EventType = "discarded"
	EventFailed    EventType = "failed"
	EventRejected  EventType = "rejected"
)

// Event is one journal row.
type Event struct {
	// CallID identifies the call session the event belongs to.
	CallID string

	// Type is the lifecycle transition.
	Type EventType

	// MoleculeID is the scheduler-assigned id; 0 for rejected commands.
	MoleculeID int64

	// Priority of the molecule, -1 when unknown.
	Priority int

	// Command is the molecule's textual form (or the rejected input).
	Command string

	// Detail carries transition context: the preemptor's id, an error
	// text, the finish reason.
	Detail string

	// Position is the molecule's play position at event time.
	Position time.Duration
}

const ddlEvents = `
CREATE TABLE IF NOT EXISTS call_events (
    id          BIGSERIAL    PRIMARY KEY,
    call_id     TEXT         NOT NULL,
    event       TEXT         NOT NULL,
    molecule_id BIGINT       NOT NULL DEFAULT 0,
    priority    INT          NOT NULL DEFAULT -1,
    command     TEXT         NOT NULL DEFAULT '',
    detail      TEXT         NOT NULL DEFAULT '',
    position_ns BIGINT       NOT NULL DEFAULT 0,
    at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_call_events_call_id
    ON call_events (call_id, at);
`

// writeGate sheds journal writes while the database misbehaves. After
// maxFails consecutive failures the gate closes for quiet; the next write
// after the quiet period is the probe that decides whether it reopens.
// Scheduler events must never pile up behind a dead connection pool.
type writeGate struct {
	mu        sync.Mutex
	maxFails  int
	quiet     time.Duration
	fails     int
	quietFrom time.Time
}

// allow reports whether a write may proceed at time now.
func (g *writeGate) allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fails < g.maxFails {
		return true
	}
	// Shedding; let one probe through once the quiet period has passed.
	if now.Sub(g.quietFrom) >= g.quiet {
		g.quietFrom = now
		return true
	}
	return false
}

// observe records a write outcome and reports whether this failure just
// closed the gate.
func (g *writeGate) observe(now time.Time, err error) (closed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		g.fails = 0
		return false
	}
	g.fails++
	if g.fails == g.maxFails {
		g.quietFrom = now
		return true
	}
	return false
}

// Journal is the PostgreSQL-backed event log. All methods are safe for
// concurrent use. A nil Journal drops all writes.
type Journal struct {
	pool *pgxpool.Pool
	gate writeGate
}

// Open connects to the database at dsn and ensures the call_events table
// exists.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlEvents); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{
		pool: pool,
		gate: writeGate{maxFails: 5, quiet: 30 * time.Second},
	}, nil
}

// Record appends one event. Failures are logged, never propagated, and
// repeated failures put the journal into a quiet period where events are
// shed instead of queueing behind a dead pool.
func (j *Journal) Record(ctx context.Context, ev Event) {
	if j == nil {
		return
	}
	if !j.gate.allow(time.Now()) {
		slog.Debug("journal: shedding event, database quiet period",
			"call", ev.CallID, "event", ev.Type)
		return
	}

	const q = `
		INSERT INTO call_events
		    (call_id, event, molecule_id, priority, command, detail, position_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := j.pool.Exec(ctx, q,
		ev.CallID,
		string(ev.Type),
		ev.MoleculeID,
		ev.Priority,
		ev.Command,
		ev.Detail,
		ev.Position.Nanoseconds(),
	)
	if j.gate.observe(time.Now(), err) {
		slog.Warn("journal: too many write failures, shedding events",
			"call", ev.CallID, "err", err)
		return
	}
	if err != nil {
		slog.Warn("journal: write event", "call", ev.CallID, "event", ev.Type, "err", err)
	}
}

// Events returns all events for callID in chronological order. Intended
// for operational tooling and tests.
func (j *Journal) Events(ctx context.Context, callID string) ([]Event, error) {
	if j == nil {
		return nil, nil
	}
	const q = `
		SELECT call_id, event, molecule_id, priority, command, detail, position_ns
		FROM   call_events
		WHERE  call_id = $1
		ORDER  BY at, id`

	rows, err := j.pool.Query(ctx, q, callID)
	if err != nil {
		return nil, fmt.Errorf("journal: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var typ string
		var posNS int64
		if err := rows.Scan(&ev.CallID, &typ, &ev.MoleculeID, &ev.Priority, &ev.Command, &ev.Detail, &posNS); err != nil {
			return nil, fmt.Errorf("journal: scan event: %w", err)
		}
		ev.Type = EventType(typ)
		ev.Position = time.Duration(posNS)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate events: %w", err)
	}
	return out, nil
}

// Healthcheck pings the database; mounted on the control server's /readyz.
func (j *Journal) Healthcheck(ctx context.Context) error {
	if j == nil {
		return nil
	}
	return j.pool.Ping(ctx)
}

// Close releases the connection pool.
func (j *Journal) Close() {
	if j != nil {
		j.pool.Close()
	}
}
