package storage

import (
	"context"
	"time"

	"nullinfer/internal/extractor"
	"nullinfer/internal/report"
)

// RunInfo is the header of a stored run.
type RunInfo struct {
	ID          int64
	Root        string
	ToolVersion string
	CreatedAt   time.Time
	Summary     report.Summary
}

// Store persists inference runs.
type Store interface {
	RunStore
	SymbolStore
	Close() error
}

// RunStore defines operations for persisting reports.
type RunStore interface {
	// SaveRun stores a report with its symbols and returns the run id.
	SaveRun(ctx context.Context, root string, r *report.Report, symbols []*extractor.Symbol) (int64, error)

	// LatestRun returns the most recent run recorded for root.
	LatestRun(ctx context.Context, root string) (*RunInfo, *report.Report, error)

	// LoadRun rebuilds the report of a stored run.
	LoadRun(ctx context.Context, id int64) (*RunInfo, *report.Report, error)

	// ListRuns returns run headers for root, newest first.
	ListRuns(ctx context.Context, root string) ([]RunInfo, error)

	// PruneRuns drops all but the newest keep runs of root.
	PruneRuns(ctx context.Context, root string, keep int) error
}

// SymbolStore exposes the declarations seen by a run.
type SymbolStore interface {
	// FindSymbolsByFile retrieves the symbols of one file in a run.
	FindSymbolsByFile(ctx context.Context, runID int64, filepath string) ([]*extractor.Symbol, error)
}
