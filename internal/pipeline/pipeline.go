// Package pipeline runs a whole project through parse, inference and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"nullinfer/internal/analysis"
	"nullinfer/internal/ast"
	"nullinfer/internal/config"
	"nullinfer/internal/crawler"
	"nullinfer/internal/extractor"
	"nullinfer/internal/git"
	"nullinfer/internal/inference"
	"nullinfer/internal/inference/nullability"
	"nullinfer/internal/report"
	"nullinfer/internal/resolver"
	"nullinfer/internal/storage"
)

// Outcome is one finished run over a project.
type Outcome struct {
	Root    string
	Report  *report.Report
	Symbols []*extractor.Symbol
	Run     *nullability.Run
}

type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

type parsed struct {
	path string
	unit *extractor.Unit
	err  error
}

// Run infers every Java file under root as one batch.
func (p *Pipeline) Run(ctx context.Context, root string) (*Outcome, error) {
	c := crawler.NewCrawler()
	if len(p.cfg.Project.Ignore) > 0 {
		c.WithIgnored(p.cfg.Project.Ignore...)
	}
	paths, err := c.ListFiles(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return p.RunFiles(ctx, root, paths)
}

// RunFiles infers the given files as one batch.
func (p *Pipeline) RunFiles(ctx context.Context, root string, paths []string) (*Outcome, error) {
	lib, err := p.library()
	if err != nil {
		return nil, err
	}
	results, err := p.parseStage(ctx, paths)
	if err != nil {
		return nil, err
	}

	fileErrors := make(map[string]error)
	var files []*ast.File
	var symbols []*extractor.Symbol
	for _, r := range results {
		if r.err != nil {
			fileErrors[r.path] = r.err
			continue
		}
		if r.unit.HasErrors {
			p.logger.Warn("syntax errors recovered", "path", r.path)
		}
		files = append(files, r.unit.File)
		symbols = append(symbols, r.unit.Symbols...)
	}

	run := p.inferStage(files, lib, fileErrors)
	rep := report.Build(report.Input{
		Files:      paths,
		FileErrors: fileErrors,
		Run:        run,
		Unknown:    p.cfg.Inference.Unknown,
	})
	p.logger.Info("inference finished",
		"files", len(paths), "errors", len(fileErrors),
		"variables", rep.Summary.Variables, "constraints", rep.Summary.Constraints)
	return &Outcome{Root: root, Report: rep, Symbols: symbols, Run: run}, nil
}

func (p *Pipeline) library() (*resolver.Library, error) {
	var extra [][]byte
	for _, path := range p.cfg.Inference.Libraries {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read library table %s: %w", path, err)
		}
		extra = append(extra, b)
	}
	lib, err := resolver.NewLibrary(extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to load library tables: %w", err)
	}
	return lib, nil
}

// parseStage lowers files concurrently, keeping input order.
func (p *Pipeline) parseStage(ctx context.Context, paths []string) ([]parsed, error) {
	ext, err := extractor.NewExtractor("java")
	if err != nil {
		return nil, err
	}
	out := make([]parsed, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Inference.Workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			unit, err := ext.ExtractFromFile(path)
			out[i] = parsed{path: path, unit: unit, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// inferStage runs the batch. In strict mode a file with an unhandled
// expression shape is reported as a file error and the batch is retried
// without it.
func (p *Pipeline) inferStage(files []*ast.File, lib *resolver.Library, fileErrors map[string]error) *nullability.Run {
	opts := inference.Options{
		Debug:        p.cfg.Debug.Enabled,
		PrintSteps:   p.cfg.Debug.PrintSteps,
		StrictShapes: p.cfg.Debug.StrictShapes,
		Logger:       p.logger,
	}
	for {
		run, shapeErr := inferRecovering(files, lib, opts)
		if shapeErr == nil {
			return run
		}
		kept := files[:0:0]
		for _, f := range files {
			if f.Path != shapeErr.Pos.File {
				kept = append(kept, f)
			}
		}
		if len(kept) == len(files) {
			// The shape came from outside every file; give up on strictness.
			p.logger.Warn("unhandled shape outside the batch", "path", shapeErr.Pos.File, "error", shapeErr)
			opts.StrictShapes = false
			continue
		}
		p.logger.Error("dropping file from batch", "path", shapeErr.Pos.File, "error", shapeErr)
		fileErrors[shapeErr.Pos.File] = shapeErr
		files = kept
	}
}

func inferRecovering(files []*ast.File, lib *resolver.Library, opts inference.Options) (run *nullability.Run, shapeErr *inference.UnhandledShapeError) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok || !errors.As(err, &shapeErr) {
				panic(r)
			}
			run = nil
		}
	}()
	return nullability.Infer(files, lib, opts), nil
}

// Persist stores the outcome and keeps the newest keep runs of its root.
func Persist(ctx context.Context, store storage.RunStore, o *Outcome, keep int) (int64, error) {
	id, err := store.SaveRun(ctx, o.Root, o.Report, o.Symbols)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	if keep > 0 {
		if err := store.PruneRuns(ctx, o.Root, keep); err != nil {
			return 0, fmt.Errorf("failed to prune runs: %w", err)
		}
	}
	return id, nil
}

// Diff runs the whole project and narrows the report to declarations
// changed since baseRef.
func (p *Pipeline) Diff(ctx context.Context, root, baseRef string) (*Outcome, []git.ChangedFile, error) {
	changes, err := git.GetChangedFiles(ctx, root, baseRef)
	if err != nil {
		return nil, nil, err
	}
	repo, err := git.RepoRoot(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	changes, err = rebaseChanges(changes, repo, root)
	if err != nil {
		return nil, nil, err
	}
	o, err := p.Run(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	o.Report = analysis.NewAnalyzer(o.Symbols).FilterReport(o.Report, changes)
	return o, changes, nil
}

// rebaseChanges turns repository-relative diff paths into the form the
// crawler reports under root. Changes outside root are dropped.
func rebaseChanges(changes []git.ChangedFile, repo, root string) ([]git.ChangedFile, error) {
	base, err := canonical(root)
	if err != nil {
		return nil, err
	}
	top, err := canonical(repo)
	if err != nil {
		return nil, err
	}
	out := make([]git.ChangedFile, 0, len(changes))
	for _, c := range changes {
		rel, err := filepath.Rel(base, filepath.Join(top, filepath.FromSlash(c.Path)))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		c.Path = filepath.Join(root, rel)
		out = append(out, c)
	}
	return out, nil
}

func canonical(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
