package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	_ "github.com/mattn/go-sqlite3"

	"nullinfer/internal/extractor"
	"nullinfer/internal/report"
)

var (
	ErrRunNotFound     = errors.New("run not found")
	ErrIncompatibleRun = errors.New("run was written by an incompatible tool version")
)

type SQLiteStore struct {
	db      *sql.DB
	compat  *semver.Constraints
	nowFunc func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	compat, err := sameMajor(report.ToolVersion)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, compat: compat, nowFunc: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

// sameMajor accepts any version sharing the major of current.
func sameMajor(current string) (*semver.Constraints, error) {
	v, err := semver.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("invalid tool version %q: %w", current, err)
	}
	return semver.NewConstraint(fmt.Sprintf(">= %d.0.0, < %d.0.0", v.Major(), v.Major()+1))
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			root TEXT,
			tool_version TEXT,
			schema_version TEXT,
			generated_at TEXT,
			created_at INTEGER,
			variables INTEGER,
			constraints INTEGER,
			iterations INTEGER,
			lower_count INTEGER,
			upper_count INTEGER,
			unknown_count INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			run_id INTEGER,
			path TEXT,
			error TEXT,
			PRIMARY KEY (run_id, path)
		);`,
		`CREATE TABLE IF NOT EXISTS annotations (
			run_id INTEGER,
			path TEXT,
			line INTEGER,
			col INTEGER,
			declaration TEXT,
			kind TEXT,
			type TEXT,
			state TEXT,
			rendered TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS symbols (
			run_id INTEGER,
			id TEXT,
			name TEXT,
			package TEXT,
			language TEXT,
			unit_type TEXT,
			filepath TEXT,
			start_line INTEGER,
			end_line INTEGER,
			owner TEXT,
			signature TEXT,
			PRIMARY KEY (run_id, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root, id);`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_run ON annotations(run_id, path);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(run_id, filepath);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- RunStore Implementation ---

func (s *SQLiteStore) SaveRun(ctx context.Context, root string, r *report.Report, symbols []*extractor.Symbol) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	sum := r.Summary
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (root, tool_version, schema_version, generated_at, created_at, variables, constraints, iterations, lower_count, upper_count, unknown_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, root, r.ToolVersion, r.SchemaVersion, r.GeneratedAt, s.nowFunc().UnixNano(),
		sum.Variables, sum.Constraints, sum.Iterations, sum.Lower, sum.Upper, sum.Unknown)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	fileStmt, err := tx.PrepareContext(ctx, `INSERT INTO files (run_id, path, error) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer fileStmt.Close()

	annStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO annotations (run_id, path, line, col, declaration, kind, type, state, rendered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer annStmt.Close()

	for _, f := range r.Files {
		if _, err := fileStmt.ExecContext(ctx, runID, f.Path, f.Error); err != nil {
			return 0, err
		}
		for _, a := range f.Annotations {
			if _, err := annStmt.ExecContext(ctx, runID, f.Path, a.Line, a.Column, a.Declaration, a.Kind, a.Type, a.State, a.Rendered); err != nil {
				return 0, err
			}
		}
	}

	// Insert symbols, ignoring duplicates from repeated declarations.
	symStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols (run_id, id, name, package, language, unit_type, filepath, start_line, end_line, owner, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer symStmt.Close()

	for _, sym := range symbols {
		if _, err := symStmt.ExecContext(ctx, runID, sym.ID, sym.Name, sym.Package, sym.Language, sym.UnitType, sym.Filepath, sym.StartLine, sym.EndLine, sym.Owner, sym.Signature); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func (s *SQLiteStore) LatestRun(ctx context.Context, root string) (*RunInfo, *report.Report, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs WHERE root = ? ORDER BY id DESC LIMIT 1`, root).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("no run for %s: %w", root, ErrRunNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	return s.LoadRun(ctx, id)
}

func (s *SQLiteStore) LoadRun(ctx context.Context, id int64) (*RunInfo, *report.Report, error) {
	info, r, err := s.loadHeader(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	v, err := semver.NewVersion(info.ToolVersion)
	if err != nil || !s.compat.Check(v) {
		return nil, nil, fmt.Errorf("run %d (tool %s): %w", id, info.ToolVersion, ErrIncompatibleRun)
	}

	// 1. Files
	rows, err := s.db.QueryContext(ctx, `SELECT path, error FROM files WHERE run_id = ? ORDER BY path`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var f report.FileReport
		if err := rows.Scan(&f.Path, &f.Error); err != nil {
			return nil, nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Annotations = []report.Entry{}
		index[f.Path] = len(r.Files)
		r.Files = append(r.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	// 2. Annotations
	annRows, err := s.db.QueryContext(ctx, `
		SELECT path, line, col, declaration, kind, type, state, rendered
		FROM annotations WHERE run_id = ? ORDER BY path, line, col
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer annRows.Close()

	for annRows.Next() {
		var path string
		var a report.Entry
		if err := annRows.Scan(&path, &a.Line, &a.Column, &a.Declaration, &a.Kind, &a.Type, &a.State, &a.Rendered); err != nil {
			return nil, nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		i, ok := index[path]
		if !ok {
			continue
		}
		r.Files[i].Annotations = append(r.Files[i].Annotations, a)
	}
	if err := annRows.Err(); err != nil {
		return nil, nil, err
	}
	return info, r, nil
}

func (s *SQLiteStore) loadHeader(ctx context.Context, id int64) (*RunInfo, *report.Report, error) {
	info := &RunInfo{ID: id}
	r := &report.Report{}
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT root, tool_version, schema_version, generated_at, created_at, variables, constraints, iterations, lower_count, upper_count, unknown_count
		FROM runs WHERE id = ?
	`, id).Scan(&info.Root, &r.ToolVersion, &r.SchemaVersion, &r.GeneratedAt, &created,
		&r.Summary.Variables, &r.Summary.Constraints, &r.Summary.Iterations, &r.Summary.Lower, &r.Summary.Upper, &r.Summary.Unknown)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query run: %w", err)
	}
	info.ToolVersion = r.ToolVersion
	info.CreatedAt = time.Unix(0, created)
	info.Summary = r.Summary
	return info, r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, root string) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_version, created_at, variables, constraints, iterations, lower_count, upper_count, unknown_count
		FROM runs WHERE root = ? ORDER BY id DESC
	`, root)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		info := RunInfo{Root: root}
		var created int64
		sum := &info.Summary
		if err := rows.Scan(&info.ID, &info.ToolVersion, &created, &sum.Variables, &sum.Constraints, &sum.Iterations, &sum.Lower, &sum.Upper, &sum.Unknown); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		info.CreatedAt = time.Unix(0, created)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PruneRuns(ctx context.Context, root string, keep int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stale = `SELECT id FROM runs WHERE root = ? ORDER BY id DESC LIMIT -1 OFFSET ?`
	for _, table := range []string{"annotations", "files", "symbols"} {
		q := fmt.Sprintf(`DELETE FROM %s WHERE run_id IN (%s)`, table, stale)
		if _, err := tx.ExecContext(ctx, q, root, keep); err != nil {
			return fmt.Errorf("failed to prune %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, root, keep); err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	return tx.Commit()
}

// --- SymbolStore Implementation ---

func (s *SQLiteStore) FindSymbolsByFile(ctx context.Context, runID int64, filepath string) ([]*extractor.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, package, language, unit_type, filepath, start_line, end_line, owner, signature
		FROM symbols WHERE run_id = ? AND filepath = ? ORDER BY start_line
	`, runID, filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var out []*extractor.Symbol
	for rows.Next() {
		var sym extractor.Symbol
		if err := rows.Scan(&sym.ID, &sym.Name, &sym.Package, &sym.Language, &sym.UnitType, &sym.Filepath, &sym.StartLine, &sym.EndLine, &sym.Owner, &sym.Signature); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out = append(out, &sym)
	}
	return out, rows.Err()
}
