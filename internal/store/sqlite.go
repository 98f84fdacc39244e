package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens the database at path; ":memory:" works for tests.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteDB) Migrate() error {
	baseMigrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			game TEXT NOT NULL,
			server_seed_hash TEXT NOT NULL DEFAULT '',
			stain TEXT NOT NULL DEFAULT '',
			index_start INTEGER NOT NULL DEFAULT 0,
			index_end INTEGER NOT NULL DEFAULT 0,
			params_json TEXT DEFAULT '{}',
			target_op TEXT NOT NULL DEFAULT '',
			target_val REAL NOT NULL DEFAULT 0,
			tolerance REAL DEFAULT 0.0,
			hit_limit INTEGER DEFAULT 0,
			timed_out INTEGER DEFAULT 0,
			hit_count INTEGER NOT NULL DEFAULT 0,
			total_evaluated INTEGER NOT NULL DEFAULT 0,
			summary_min REAL,
			summary_max REAL,
			summary_sum REAL,
			summary_count INTEGER DEFAULT 0,
			engine_version TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS hits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			metric REAL NOT NULL,
			details TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hits_run_idx ON hits(run_id, idx)`,
	}

	for _, migration := range baseMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("base migration failed: %w", err)
		}
	}

	// Columns added after the first schema; re-running is a no-op.
	alterMigrations := []string{
		`ALTER TABLE runs ADD COLUMN matched INTEGER DEFAULT 0`,
		`ALTER TABLE runs ADD COLUMN mismatched INTEGER DEFAULT 0`,
		`ALTER TABLE runs ADD COLUMN failed INTEGER DEFAULT 0`,
		`ALTER TABLE runs ADD COLUMN float_convention TEXT DEFAULT ''`,
	}

	for _, migration := range alterMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			if !isDuplicateColumnError(err) {
				return fmt.Errorf("alter migration failed: %w", err)
			}
		}
	}

	indexMigrations := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_game_created ON runs(game, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind)`,
	}

	for _, migration := range indexMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("index migration failed: %w", err)
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return strings.Contains(err.Error(), "duplicate column name")
}

const runColumns = `id, kind, game, server_seed_hash, stain, index_start, index_end,
		params_json, target_op, target_val, tolerance, hit_limit, timed_out,
		hit_count, total_evaluated, matched, mismatched, failed,
		summary_min, summary_max, summary_sum, summary_count,
		float_convention, engine_version`

// SaveRun inserts a run, assigning an id when it has none.
func (s *SQLiteDB) SaveRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.ParamsJSON == "" {
		run.ParamsJSON = "{}"
	}

	query := `INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		run.ID, run.Kind, run.Game, run.ServerSeedHash, run.Stain,
		run.IndexStart, run.IndexEnd, run.ParamsJSON, run.TargetOp, run.TargetVal,
		run.Tolerance, run.HitLimit, boolToInt(run.TimedOut), run.HitCount, run.TotalEvaluated,
		run.Matched, run.Mismatched, run.Failed,
		run.SummaryMin, run.SummaryMax, run.SummarySum, run.SummaryCount,
		run.FloatConvention, run.EngineVersion,
	)
	return err
}

// UpdateRun updates an existing run in the database
func (s *SQLiteDB) UpdateRun(run *Run) error {
	query := `UPDATE runs SET
		kind = ?, game = ?, server_seed_hash = ?, stain = ?,
		index_start = ?, index_end = ?, params_json = ?, target_op = ?, target_val = ?,
		tolerance = ?, hit_limit = ?, timed_out = ?, hit_count = ?, total_evaluated = ?,
		matched = ?, mismatched = ?, failed = ?,
		summary_min = ?, summary_max = ?, summary_sum = ?, summary_count = ?,
		float_convention = ?, engine_version = ?
		WHERE id = ?`

	res, err := s.db.Exec(query,
		run.Kind, run.Game, run.ServerSeedHash, run.Stain,
		run.IndexStart, run.IndexEnd, run.ParamsJSON, run.TargetOp, run.TargetVal,
		run.Tolerance, run.HitLimit, boolToInt(run.TimedOut), run.HitCount, run.TotalEvaluated,
		run.Matched, run.Mismatched, run.Failed,
		run.SummaryMin, run.SummaryMax, run.SummarySum, run.SummaryCount,
		run.FloatConvention, run.EngineVersion, run.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// SaveHits saves multiple hits in one transaction
func (s *SQLiteDB) SaveHits(runID string, hits []Hit) error {
	if len(hits) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO hits (run_id, idx, metric, details) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, hit := range hits {
		if _, err := stmt.Exec(runID, hit.Index, hit.Metric, hit.Details); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var timedOutInt int
	var paramsJSON, floatConvention sql.NullString
	var matched, mismatched, failed sql.NullInt64
	var summaryMin, summaryMax, summarySum sql.NullFloat64

	err := row.Scan(
		&run.ID, &run.Kind, &run.Game, &run.ServerSeedHash, &run.Stain,
		&run.IndexStart, &run.IndexEnd, &paramsJSON, &run.TargetOp, &run.TargetVal,
		&run.Tolerance, &run.HitLimit, &timedOutInt, &run.HitCount, &run.TotalEvaluated,
		&matched, &mismatched, &failed,
		&summaryMin, &summaryMax, &summarySum, &run.SummaryCount,
		&floatConvention, &run.EngineVersion, &run.CreatedAt,
	)
	if err != nil {
		return Run{}, err
	}

	run.ParamsJSON = "{}"
	if paramsJSON.Valid {
		run.ParamsJSON = paramsJSON.String
	}
	run.FloatConvention = floatConvention.String
	run.Matched = int(matched.Int64)
	run.Mismatched = int(mismatched.Int64)
	run.Failed = int(failed.Int64)
	if summaryMin.Valid {
		run.SummaryMin = &summaryMin.Float64
	}
	if summaryMax.Valid {
		run.SummaryMax = &summaryMax.Float64
	}
	if summarySum.Valid {
		run.SummarySum = &summarySum.Float64
	}
	run.TimedOut = timedOutInt == 1
	return run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteDB) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+`, created_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns retrieves runs with pagination and filtering, newest first
func (s *SQLiteDB) ListRuns(query RunsQuery) (*RunsList, error) {
	var conds []string
	var args []any
	if query.Game != "" {
		conds = append(conds, "game = ?")
		args = append(args, query.Game)
	}
	if query.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, query.Kind)
	}
	whereClause := ""
	if len(conds) > 0 {
		whereClause = "WHERE " + strings.Join(conds, " AND ")
	}

	var totalCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs "+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	if query.PerPage <= 0 {
		query.PerPage = 50
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	totalPages := (totalCount + query.PerPage - 1) / query.PerPage
	offset := (query.Page - 1) * query.PerPage

	mainQuery := `SELECT ` + runColumns + `, created_at
		FROM runs ` + whereClause + `
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`
	args = append(args, query.PerPage, offset)

	rows, err := s.db.Query(mainQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return &RunsList{
		Runs:       runs,
		TotalCount: totalCount,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages,
	}, nil
}

// GetRunHits retrieves hits for a run ordered by index, with the index
// distance to the previous hit (including across page boundaries).
func (s *SQLiteDB) GetRunHits(runID string, page, perPage int) (*HitsPage, error) {
	var totalCount int
	err := s.db.QueryRow("SELECT COUNT(*) FROM hits WHERE run_id = ?", runID).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get hits count: %w", err)
	}

	if perPage <= 0 {
		perPage = 100
	}
	if page <= 0 {
		page = 1
	}
	totalPages := (totalCount + perPage - 1) / perPage
	offset := (page - 1) * perPage

	rows, err := s.db.Query(`SELECT id, run_id, idx, metric, details
		FROM hits WHERE run_id = ?
		ORDER BY idx
		LIMIT ? OFFSET ?`, runID, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query hits: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		var details sql.NullString
		if err := rows.Scan(&hit.ID, &hit.RunID, &hit.Index, &hit.Metric, &details); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hit.Details = details.String
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hits: %w", err)
	}

	withDelta := make([]HitWithDelta, len(hits))
	for i, hit := range hits {
		withDelta[i] = HitWithDelta{Hit: hit}
		if i > 0 {
			delta := hit.Index - hits[i-1].Index
			withDelta[i].DeltaIndex = &delta
		} else if page > 1 {
			var prev int64
			err := s.db.QueryRow(`SELECT idx FROM hits WHERE run_id = ? AND idx < ? ORDER BY idx DESC LIMIT 1`,
				runID, hit.Index).Scan(&prev)
			if err == nil {
				delta := hit.Index - prev
				withDelta[i].DeltaIndex = &delta
			}
		}
	}

	return &HitsPage{
		Hits:       withDelta,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
