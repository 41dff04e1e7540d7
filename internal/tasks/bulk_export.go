package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/bookclean/internal/formatter"
	"github.com/desertthunder/bookclean/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for exporting several sessions at once.
type BulkExportOpts struct {
	Format     string  // Report format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: bookclean_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5, max: 10)
	RateLimit  float64 // Sessions started per second (default: 5)
	SkipBook   bool    // Write only the review report, not the exported book
}

// SessionExportResult is the outcome of exporting one session.
type SessionExportResult struct {
	SessionID string
	Filename  string
	Files     []string
	Success   bool
	Error     error
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	TotalSessions     int
	SuccessfulExports int
	FailedExports     int
	OutputDirectory   string
	ManifestPath      string
	Results           []SessionExportResult
}

// BulkExport exports several sessions concurrently and writes a manifest.
//
// Each session is opened, its book downloaded and a review report written next to it. A failure
// affects only its own session.
func (e *Engine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no sessions to export", shared.ErrMissingArgument)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("bookclean_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalSessions:   len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]SessionExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan string, len(ids))
	results := make(chan SessionExportResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				for _, rest := range ids[i:] {
					results <- SessionExportResult{SessionID: rest, Error: err}
				}
				return
			}
			e.sendProgress(prog, exportStartedUpdate(i+1, len(ids), id))
			jobs <- id
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	manifest := &formatter.Manifest{GeneratedAt: time.Now().UTC()}
	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		entry := formatter.ManifestEntry{SessionID: res.SessionID, Filename: res.Filename, Files: res.Files}
		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.SessionID, len(res.Files)))
		} else {
			result.FailedExports++
			entry.Error = res.Error.Error()
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.SessionID, res.Error))
		}
		manifest.Entries = append(manifest.Entries, entry)
	}
	manifest.Succeeded = result.SuccessfulExports
	manifest.Failed = result.FailedExports

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker exports sessions from the jobs channel until it is closed.
//
// Jobs are always drained so the collector sees one result per session.
func (e *Engine) exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan string, results chan<- SessionExportResult, opts BulkExportOpts) {
	defer wg.Done()

	for id := range jobs {
		if err := ctx.Err(); err != nil {
			results <- SessionExportResult{SessionID: id, Error: err}
			continue
		}
		results <- e.exportSingleSession(ctx, id, opts)
	}
}

// exportSingleSession writes one session's book and review report under its own directory.
func (e *Engine) exportSingleSession(ctx context.Context, ref string, opts BulkExportOpts) SessionExportResult {
	result := SessionExportResult{SessionID: ref, Files: []string{}}

	t, err := e.Open(ctx, ref)
	if err != nil {
		result.Error = fmt.Errorf("failed to open session: %w", err)
		return result
	}
	result.SessionID = t.ID()
	result.Filename = t.Snapshot().Filename
	dir := filepath.Join(opts.OutputDir, t.ID())

	if !opts.SkipBook {
		artifact, err := e.Export(ctx, t.ID())
		if err != nil {
			result.Error = fmt.Errorf("book export failed: %w", err)
			return result
		}
		path, err := formatter.WriteArtifact(artifact, dir, t.ID()+".epub")
		if err != nil {
			result.Error = fmt.Errorf("book write failed: %w", err)
			return result
		}
		result.Files = append(result.Files, path)
	}

	report, err := e.Report(ctx, t.ID())
	if err != nil {
		result.Error = fmt.Errorf("report failed: %w", err)
		return result
	}
	path, err := formatter.WriteReport(report, opts.Format, filepath.Join(dir, "review"+formatter.Extension(opts.Format)))
	if err != nil {
		result.Error = fmt.Errorf("report write failed: %w", err)
		return result
	}
	result.Files = append(result.Files, path)
	result.Success = true
	return result
}
