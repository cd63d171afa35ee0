package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielpatrickdp/cotherapist/internal/eval"
	"github.com/danielpatrickdp/cotherapist/internal/gate"
	"github.com/danielpatrickdp/cotherapist/internal/orchestrator"
	"github.com/danielpatrickdp/cotherapist/internal/reasoning"
	"github.com/danielpatrickdp/cotherapist/internal/traits"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a turn ID is unknown.
var ErrNotFound = errors.New("turn not found")

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS turn_log (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	created_at      TEXT NOT NULL,
	user_text       TEXT NOT NULL,
	response        TEXT NOT NULL,
	safe            INTEGER NOT NULL,
	crisis_detected INTEGER NOT NULL,
	crisis_type     TEXT,
	reasoning_used  INTEGER NOT NULL,
	context_json    TEXT,
	trace_json      TEXT,
	signals_json    TEXT NOT NULL,
	evaluation_json TEXT,
	traits_json     TEXT,
	duration_ns     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turn_log_crisis ON turn_log(crisis_detected);
`

// #endregion schema

func init() {
	// modernc registers as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// #region store-struct
// Store persists turns in SQLite.
type Store struct {
	db   *sqlx.DB
	path string
}

// #endregion store-struct

// #region constructor
// Open opens or creates the turn database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region row
type turnRow struct {
	Seq            int64          `db:"seq"`
	ID             string         `db:"id"`
	CreatedAt      string         `db:"created_at"`
	UserText       string         `db:"user_text"`
	Response       string         `db:"response"`
	Safe           bool           `db:"safe"`
	CrisisDetected bool           `db:"crisis_detected"`
	CrisisType     sql.NullString `db:"crisis_type"`
	ReasoningUsed  bool           `db:"reasoning_used"`
	ContextJSON    sql.NullString `db:"context_json"`
	TraceJSON      sql.NullString `db:"trace_json"`
	SignalsJSON    string         `db:"signals_json"`
	EvaluationJSON sql.NullString `db:"evaluation_json"`
	TraitsJSON     sql.NullString `db:"traits_json"`
	DurationNS     int64          `db:"duration_ns"`
}

const selectTurn = `SELECT seq, id, created_at, user_text, response, safe, crisis_detected,
	crisis_type, reasoning_used, context_json, trace_json, signals_json,
	evaluation_json, traits_json, duration_ns FROM turn_log`

// #endregion row

// #region record
// RecordTurn inserts a completed turn. It satisfies orchestrator.Recorder.
func (s *Store) RecordTurn(ctx context.Context, turn orchestrator.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	signals, err := json.Marshal(turn.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	contextJSON, err := nullJSON(turn.RetrievedContext, len(turn.RetrievedContext) == 0)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	traceJSON, err := nullJSON(turn.Trace, len(turn.Trace) == 0)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	evalJSON, err := nullJSON(turn.Evaluation, turn.Evaluation == nil)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	traitsJSON, err := nullJSON(turn.Traits, turn.Traits == nil)
	if err != nil {
		return fmt.Errorf("marshal traits: %w", err)
	}
	row := map[string]any{
		"id":              turn.ID,
		"created_at":      turn.CreatedAt.UTC().Format(timeLayout),
		"user_text":       turn.UserText,
		"response":        turn.ResponseText,
		"safe":            turn.Safe,
		"crisis_detected": turn.Signals.CrisisDetected,
		"crisis_type":     nullIfEmpty(string(turn.Signals.CrisisType)),
		"reasoning_used":  turn.ReasoningUsed,
		"context_json":    contextJSON,
		"trace_json":      traceJSON,
		"signals_json":    string(signals),
		"evaluation_json": evalJSON,
		"traits_json":     traitsJSON,
		"duration_ns":     int64(turn.Duration),
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO turn_log (id, created_at, user_text, response, safe, crisis_detected, crisis_type,
			reasoning_used, context_json, trace_json, signals_json, evaluation_json, traits_json, duration_ns)
		 VALUES (:id, :created_at, :user_text, :response, :safe, :crisis_detected, :crisis_type,
			:reasoning_used, :context_json, :trace_json, :signals_json, :evaluation_json, :traits_json, :duration_ns)`,
		row,
	)
	if err != nil {
		return fmt.Errorf("record turn %s: %w", turn.ID, err)
	}
	return nil
}

// #endregion record

// #region queries
// Turn returns the turn with the given ID.
func (s *Store) Turn(ctx context.Context, id string) (orchestrator.Turn, error) {
	var row turnRow
	err := s.db.GetContext(ctx, &row, selectTurn+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return orchestrator.Turn{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return orchestrator.Turn{}, fmt.Errorf("get turn %s: %w", id, err)
	}
	return row.turn()
}

// RecentTurns returns up to limit turns, newest first.
func (s *Store) RecentTurns(ctx context.Context, limit int) ([]orchestrator.Turn, error) {
	var rows []turnRow
	if err := s.db.SelectContext(ctx, &rows, selectTurn+` ORDER BY seq DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	return decodeRows(rows)
}

// CrisisTurns returns up to limit turns where a crisis was detected,
// newest first.
func (s *Store) CrisisTurns(ctx context.Context, limit int) ([]orchestrator.Turn, error) {
	var rows []turnRow
	err := s.db.SelectContext(ctx, &rows, selectTurn+` WHERE crisis_detected = 1 ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list crisis turns: %w", err)
	}
	return decodeRows(rows)
}

// Count returns the number of recorded turns.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM turn_log`); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}

func decodeRows(rows []turnRow) ([]orchestrator.Turn, error) {
	turns := make([]orchestrator.Turn, 0, len(rows))
	for _, r := range rows {
		t, err := r.turn()
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// #endregion queries

// #region decode
func (r turnRow) turn() (orchestrator.Turn, error) {
	t := orchestrator.Turn{
		ID:            r.ID,
		UserText:      r.UserText,
		ResponseText:  r.Response,
		Safe:          r.Safe,
		ReasoningUsed: r.ReasoningUsed,
		Duration:      time.Duration(r.DurationNS),
	}
	created, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return t, fmt.Errorf("turn %s created_at: %w", r.ID, err)
	}
	t.CreatedAt = created
	if err := json.Unmarshal([]byte(r.SignalsJSON), &t.Signals); err != nil {
		return t, fmt.Errorf("turn %s signals: %w", r.ID, err)
	}
	if r.ContextJSON.Valid {
		if err := json.Unmarshal([]byte(r.ContextJSON.String), &t.RetrievedContext); err != nil {
			return t, fmt.Errorf("turn %s context: %w", r.ID, err)
		}
	}
	if r.TraceJSON.Valid {
		var trace []reasoning.Step
		if err := json.Unmarshal([]byte(r.TraceJSON.String), &trace); err != nil {
			return t, fmt.Errorf("turn %s trace: %w", r.ID, err)
		}
		t.Trace = trace
	}
	if r.EvaluationJSON.Valid {
		var score eval.Score
		if err := json.Unmarshal([]byte(r.EvaluationJSON.String), &score); err != nil {
			return t, fmt.Errorf("turn %s evaluation: %w", r.ID, err)
		}
		t.Evaluation = &score
	}
	if r.TraitsJSON.Valid {
		var scores traits.Scores
		if err := json.Unmarshal([]byte(r.TraitsJSON.String), &scores); err != nil {
			return t, fmt.Errorf("turn %s traits: %w", r.ID, err)
		}
		t.Traits = &scores
	}
	if t.Signals.CrisisType == "" && r.CrisisType.Valid {
		t.Signals.CrisisType = gate.CrisisType(r.CrisisType.String)
	}
	return t, nil
}

// #endregion decode

// #region helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// #endregion helpers
