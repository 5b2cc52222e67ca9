// Package persistence stores world snapshots and history in SQLite.
// Snapshots are the full engine save state, JSON encoded, lz4 compressed
// and checked against a blake3 digest on load.
package persistence

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/pierrec/lz4/v4"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"github.com/talgya/worldhistory/internal/engine"
)

var (
	// ErrNoSnapshot is returned when the database holds no snapshot yet.
	ErrNoSnapshot = errors.New("no snapshot")
	// ErrCorruptSnapshot is returned when a payload fails its digest check.
	ErrCorruptSnapshot = errors.New("snapshot digest mismatch")
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Snapshot describes a stored snapshot without its payload.
type Snapshot struct {
	ID        int64       `db:"id" json:"id"`
	Date      engine.Date `db:"date" json:"date"`
	SessionID string      `db:"session_id" json:"session_id"`
	Digest    string      `db:"digest" json:"digest"`
	Size      int         `db:"size" json:"size"`
}

// GroupSummary is one row of the group_summaries table: where a group is,
// how many people it holds and which polity is most prominent there.
type GroupSummary struct {
	ID                int64   `db:"id" json:"id"`
	Q                 int     `db:"pos_q" json:"q"`
	R                 int     `db:"pos_r" json:"r"`
	Population        float64 `db:"population" json:"population"`
	OptimalPopulation float64 `db:"optimal_population" json:"optimal_population"`
	PolityID          int64   `db:"polity_id" json:"polity_id"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		digest TEXT NOT NULL,
		size INTEGER NOT NULL,
		payload BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_summaries (
		id INTEGER PRIMARY KEY,
		pos_q INTEGER NOT NULL,
		pos_r INTEGER NOT NULL,
		population REAL NOT NULL,
		optimal_population REAL NOT NULL,
		polity_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_date ON history(date);
	CREATE INDEX IF NOT EXISTS idx_groups_polity ON group_summaries(polity_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSnapshot encodes st and appends it to the snapshots table. It returns
// the digest of the uncompressed payload.
func (db *DB) SaveSnapshot(st *engine.SaveState) (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	digest := hashBLAKE3(raw)
	payload, err := compressLZ4(raw)
	if err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}

	_, err = db.conn.Exec(
		"INSERT INTO snapshots (date, session_id, digest, size, payload) VALUES (?, ?, ?, ?, ?)",
		int64(st.Date), st.SessionID, digest, len(raw), payload,
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return digest, nil
}

// LatestSnapshot loads the most recent snapshot.
func (db *DB) LatestSnapshot() (*engine.SaveState, error) {
	var id int64
	err := db.conn.Get(&id, "SELECT id FROM snapshots ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return db.LoadSnapshot(id)
}

// LoadSnapshot loads and verifies the snapshot with the given row id.
func (db *DB) LoadSnapshot(id int64) (*engine.SaveState, error) {
	var row struct {
		Digest  string `db:"digest"`
		Payload []byte `db:"payload"`
	}
	err := db.conn.Get(&row, "SELECT digest, payload FROM snapshots WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %d: %w", id, ErrNoSnapshot)
	}
	if err != nil {
		return nil, err
	}

	raw, err := decompressLZ4(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot %d: %w", id, err)
	}
	if got := hashBLAKE3(raw); got != row.Digest {
		slog.Error("snapshot digest mismatch", "id", id, "stored", row.Digest, "computed", got)
		return nil, fmt.Errorf("snapshot %d: %w", id, ErrCorruptSnapshot)
	}

	var st engine.SaveState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", id, err)
	}
	return &st, nil
}

// Snapshots lists stored snapshots, newest first.
func (db *DB) Snapshots(limit int) ([]Snapshot, error) {
	var out []Snapshot
	err := db.conn.Select(&out,
		"SELECT id, date, session_id, digest, size FROM snapshots ORDER BY id DESC LIMIT ?",
		limit,
	)
	return out, err
}

// PruneSnapshots keeps only the newest keep snapshots.
func (db *DB) PruneSnapshots(keep int) (int64, error) {
	res, err := db.conn.Exec(
		"DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)",
		keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AppendHistory stores the events dated after the newest stored entry.
// History is appended in date order, so anything at or before that date has
// already been written.
func (db *DB) AppendHistory(events []engine.HistoryEvent) (int, error) {
	var last sql.NullInt64
	if err := db.conn.Get(&last, "SELECT MAX(date) FROM history"); err != nil {
		return 0, err
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n := 0
	for _, e := range events {
		if last.Valid && int64(e.Date) <= last.Int64 {
			continue
		}
		_, err := tx.Exec(
			"INSERT INTO history (date, category, description) VALUES (?, ?, ?)",
			int64(e.Date), e.Category, e.Description,
		)
		if err != nil {
			return 0, err
		}
		n++
	}

	return n, tx.Commit()
}

// RecentHistory returns the most recent N history entries, newest first.
func (db *DB) RecentHistory(limit int) ([]engine.HistoryEvent, error) {
	var events []engine.HistoryEvent
	err := db.conn.Select(&events,
		"SELECT date, category, description FROM history ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveGroups replaces the group_summaries table.
func (db *DB) SaveGroups(groups []GroupSummary) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM group_summaries"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO group_summaries
		(id, pos_q, pos_r, population, optimal_population, polity_id)
		VALUES (:id, :pos_q, :pos_r, :population, :optimal_population, :polity_id)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, g := range groups {
		if _, err := stmt.Exec(g); err != nil {
			return fmt.Errorf("insert group %d: %w", g.ID, err)
		}
	}

	return tx.Commit()
}

// Groups returns the stored group summaries in id order.
func (db *DB) Groups() ([]GroupSummary, error) {
	var out []GroupSummary
	err := db.conn.Select(&out,
		"SELECT id, pos_q, pos_r, population, optimal_population, polity_id FROM group_summaries ORDER BY id")
	return out, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState writes a snapshot, the group summaries, new history and
// metadata. It must run on the simulation goroutine.
func (db *DB) SaveWorldState(w *engine.World) error {
	st := w.Synchronize()
	slog.Info("saving world state", "date", st.Date.String(), "groups", len(st.Groups), "polities", len(st.Polities))

	digest, err := db.SaveSnapshot(st)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := db.SaveGroups(Summarize(st)); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	if _, err := db.AppendHistory(w.RecentHistory(0)); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	meta := map[string]string{
		"last_date":   strconv.FormatInt(int64(st.Date), 10),
		"session_id":  st.SessionID,
		"seed":        strconv.FormatInt(st.Seed, 10),
		"last_digest": digest,
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	slog.Info("world state saved", "digest", digest[:12])
	return nil
}

// Summarize flattens the groups of a save state into table rows.
func Summarize(st *engine.SaveState) []GroupSummary {
	out := make([]GroupSummary, 0, len(st.Groups))
	for _, g := range st.Groups {
		var polity int64
		best := 0.0
		for _, p := range g.Prominences {
			if p.Value > best {
				best, polity = p.Value, p.PolityID
			}
		}
		out = append(out, GroupSummary{
			ID:                g.ID,
			Q:                 g.Coord.Q,
			R:                 g.Coord.R,
			Population:        g.ExactPopulation,
			OptimalPopulation: g.OptimalPopulation,
			PolityID:          polity,
		})
	}
	return out
}

func compressLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(src []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
}

func hashBLAKE3(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
