package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id              TEXT PRIMARY KEY,
	scenario_json   TEXT NOT NULL,
	baseline_metric REAL NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	started_at      TEXT NOT NULL,
	finished_at     TEXT
);

CREATE TABLE IF NOT EXISTS attempts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id   TEXT NOT NULL,
	variable      TEXT NOT NULL,
	phase         TEXT NOT NULL,
	stage         TEXT NOT NULL,
	total_width   INTEGER NOT NULL,
	integer_width INTEGER NOT NULL,
	outcome       TEXT NOT NULL,
	metric        REAL,
	failure_kind  TEXT,
	duration_ns   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (campaign_id) REFERENCES campaigns(id)
);

CREATE INDEX IF NOT EXISTS attempts_campaign ON attempts(campaign_id);

CREATE TABLE IF NOT EXISTS errors (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id  TEXT NOT NULL,
	context      TEXT NOT NULL,
	failure_kind TEXT NOT NULL,
	diagnostic   TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (campaign_id) REFERENCES campaigns(id)
);
`

// SQLiteStore keeps the journal in a SQLite database
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore creates a store; Init opens the database
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and runs migrations
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	// one writer; the status server only reads through the same handle
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("pragma fk: %w", err)
	}

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported %d", version, schemaVersion)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("sqlite journal is not initialized")
	}
	return s.db, nil
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c Campaign) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if c.ID == "" {
		return errors.New("campaign id is required")
	}
	if c.Status == "" {
		c.Status = models.CampaignRunning
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
	scenario, err := json.Marshal(c.Scenario)
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO campaigns (id, scenario_json, baseline_metric, status, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, string(scenario), c.BaselineMetric, string(c.Status), formatTime(c.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert campaign %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, campaignID string, a models.Attempt) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := s.exists(ctx, db, campaignID); err != nil {
		return err
	}
	var metric sql.NullFloat64
	if a.Metric != nil {
		metric = sql.NullFloat64{Float64: *a.Metric, Valid: true}
	}
	var kind sql.NullString
	if a.FailureKind != "" {
		kind = sql.NullString{String: string(a.FailureKind), Valid: true}
	}
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO attempts (campaign_id, variable, phase, stage, total_width, integer_width,
		                       outcome, metric, failure_kind, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		campaignID, a.Variable, string(a.Phase), string(a.Stage), a.Candidate.Total, a.Candidate.Integer,
		string(a.Outcome), metric, kind, int64(a.Duration), formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordError(ctx context.Context, campaignID string, e models.ErrorEntry) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if err := s.exists(ctx, db, campaignID); err != nil {
		return err
	}
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO errors (campaign_id, context, failure_kind, diagnostic, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		campaignID, e.Context, string(e.Kind), e.Diagnostic, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FinishCampaign(ctx context.Context, campaignID string, status models.CampaignStatus, baseline float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, baseline_metric = ?, finished_at = ? WHERE id = ?`,
		string(status), baseline, formatTime(time.Now()), campaignID,
	)
	if err != nil {
		return fmt.Errorf("update campaign %s: %w", campaignID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	return nil
}

func (s *SQLiteStore) Campaign(ctx context.Context, campaignID string) (Campaign, error) {
	db, err := s.getDB()
	if err != nil {
		return Campaign{}, err
	}
	var (
		c        Campaign
		scenario string
		status   string
		started  string
		finished sql.NullString
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, scenario_json, baseline_metric, status, started_at, finished_at
		 FROM campaigns WHERE id = ?`, campaignID,
	).Scan(&c.ID, &scenario, &c.BaselineMetric, &status, &started, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, fmt.Errorf("%w: %s", ErrNotFound, campaignID)
		}
		return Campaign{}, err
	}
	if err := json.Unmarshal([]byte(scenario), &c.Scenario); err != nil {
		return Campaign{}, fmt.Errorf("decode scenario of %s: %w", campaignID, err)
	}
	c.Status = models.CampaignStatus(status)
	if c.StartedAt, err = parseTime(started); err != nil {
		return Campaign{}, err
	}
	if finished.Valid {
		if c.FinishedAt, err = parseTime(finished.String); err != nil {
			return Campaign{}, err
		}
	}
	return c, nil
}

func (s *SQLiteStore) Attempts(ctx context.Context, campaignID string) ([]models.Attempt, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if err := s.exists(ctx, db, campaignID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT variable, phase, stage, total_width, integer_width, outcome, metric, failure_kind, duration_ns, created_at
		 FROM attempts WHERE campaign_id = ? ORDER BY id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Attempt{}
	for rows.Next() {
		var (
			a                     models.Attempt
			phase, stage, outcome string
			metric                sql.NullFloat64
			kind                  sql.NullString
			duration              int64
			at                    string
		)
		if err := rows.Scan(&a.Variable, &phase, &stage, &a.Candidate.Total, &a.Candidate.Integer,
			&outcome, &metric, &kind, &duration, &at); err != nil {
			return nil, err
		}
		a.Phase = models.Phase(phase)
		a.Stage = models.Stage(stage)
		a.Outcome = models.Outcome(outcome)
		if metric.Valid {
			m := metric.Float64
			a.Metric = &m
		}
		if kind.Valid {
			a.FailureKind = models.FailureKind(kind.String)
		}
		a.Duration = time.Duration(duration)
		if a.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Errors(ctx context.Context, campaignID string) ([]models.ErrorEntry, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if err := s.exists(ctx, db, campaignID); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT context, failure_kind, diagnostic, created_at
		 FROM errors WHERE campaign_id = ? ORDER BY id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ErrorEntry{}
	for rows.Next() {
		var (
			e        models.ErrorEntry
			kind, at string
		)
		if err := rows.Scan(&e.Context, &kind, &e.Diagnostic, &at); err != nil {
			return nil, err
		}
		e.Kind = models.FailureKind(kind)
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) exists(ctx context.Context, db *sql.DB, campaignID string) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM campaigns WHERE id = ?`, campaignID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
