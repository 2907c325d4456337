// Package journal persists an append-only log of applied mutations to
// SQLite for audit and debugging. Unlike the in-memory history log it
// survives restarts and holds no snapshots, only the mutations themselves.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Record is one journaled mutation.
type Record struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Module    string          `json:"module"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	User      string          `json:"user,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Journal is a SQLite-backed mutation log. Safe for concurrent use.
type Journal struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the journal database. Use ":memory:" in tests.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS mutations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		module TEXT NOT NULL,
		action TEXT NOT NULL,
		payload BLOB,
		user TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mutations_module ON mutations(module);
	CREATE INDEX IF NOT EXISTS idx_mutations_timestamp ON mutations(timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append records one applied mutation.
func (j *Journal) Append(ctx context.Context, m state.Mutation) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var payload []byte
	if m.Payload != nil {
		var err error
		payload, err = json.Marshal(m.Payload)
		if err != nil {
			return fmt.Errorf("marshal mutation payload: %w", err)
		}
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO mutations (id, type, module, action, payload, user, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.Type, m.Module, m.Action, payload, m.User, m.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert mutation: %w", err)
	}
	return nil
}

// ByModule returns every journaled mutation for one module, oldest first.
func (j *Journal) ByModule(ctx context.Context, module string) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT seq, id, type, module, action, payload, user, timestamp FROM mutations WHERE module = ? ORDER BY seq",
		module,
	)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Range returns the journaled mutations inside [start, end], oldest first.
func (j *Journal) Range(ctx context.Context, start, end time.Time) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT seq, id, type, module, action, payload, user, timestamp FROM mutations WHERE timestamp >= ? AND timestamp <= ? ORDER BY seq",
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Tail returns the most recent n mutations in commit order.
func (j *Journal) Tail(ctx context.Context, n int) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT seq, id, type, module, action, payload, user, timestamp FROM (SELECT * FROM mutations ORDER BY seq DESC LIMIT ?) ORDER BY seq",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var ts int64
		// Payload is NULL for payload-less mutations; scan through []byte.
		var payload []byte
		if err := rows.Scan(&r.Seq, &r.ID, &r.Type, &r.Module, &r.Action, &payload, &r.User, &ts); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		if len(payload) > 0 {
			r.Payload = json.RawMessage(payload)
		}
		r.Timestamp = time.UnixMilli(ts)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
