package snapshots

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
)

// SQLiteStore keeps snapshots in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the database. Use ":memory:" for tests.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryStatistics, "open sqlite database").
			WithContext("path", dbPath).Build()
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryStatistics, "initialize schema").Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		servers INTEGER NOT NULL,
		servers_connected INTEGER NOT NULL,
		channels INTEGER NOT NULL,
		channels_connected INTEGER NOT NULL,
		bots INTEGER NOT NULL,
		bots_connected INTEGER NOT NULL,
		bots_free_slots INTEGER NOT NULL,
		bots_free_queue INTEGER NOT NULL,
		packets INTEGER NOT NULL,
		packets_connected INTEGER NOT NULL,
		packets_size INTEGER NOT NULL,
		speed INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON snapshots(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

const selectColumns = `SELECT id, timestamp, servers, servers_connected, channels, channels_connected,
	bots, bots_connected, bots_free_slots, bots_free_queue, packets, packets_connected, packets_size, speed
	FROM snapshots`

// Append inserts a snapshot and returns its row id.
func (s *SQLiteStore) Append(ctx context.Context, snap Snapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (timestamp, servers, servers_connected, channels, channels_connected,
		bots, bots_connected, bots_free_slots, bots_free_queue, packets, packets_connected, packets_size, speed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Timestamp.UnixMilli(),
		snap.Servers, snap.ServersConnected,
		snap.Channels, snap.ChannelsConnected,
		snap.Bots, snap.BotsConnected, snap.BotsFreeSlots, snap.BotsFreeQueue,
		snap.Packets, snap.PacketsConnected, snap.PacketsSize,
		snap.Speed,
	)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryStatistics, "insert snapshot").Build()
	}
	return res.LastInsertId()
}

// Range returns snapshots taken within [start, end], oldest first.
func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryStatistics, "query snapshots").Build()
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryStatistics, "iterate rows").Build()
	}
	return out, nil
}

// Latest returns the most recent snapshot or a not-found error when the table is empty.
func (s *SQLiteStore) Latest(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, err := scan(s.db.QueryRowContext(ctx, selectColumns+" ORDER BY id DESC LIMIT 1"))
	if stderrors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, errors.NotFoundError("no statistics snapshots recorded").Build()
	}
	return snap, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Snapshot, error) {
	var snap Snapshot
	var ts int64
	err := row.Scan(&snap.ID, &ts,
		&snap.Servers, &snap.ServersConnected,
		&snap.Channels, &snap.ChannelsConnected,
		&snap.Bots, &snap.BotsConnected, &snap.BotsFreeSlots, &snap.BotsFreeQueue,
		&snap.Packets, &snap.PacketsConnected, &snap.PacketsSize,
		&snap.Speed,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return snap, err
		}
		return snap, errors.WrapError(err, errors.CategoryStatistics, "scan snapshot").Build()
	}
	snap.Timestamp = time.UnixMilli(ts)
	return snap, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
