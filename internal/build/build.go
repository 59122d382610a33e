// Package build compiles many modules concurrently and writes the results
// into an output tree.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/globalesm/pkg/compiler"
	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
)

// ErrFailed is returned in keep-going mode when at least one module failed.
var ErrFailed = errors.New("build failed")

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Job is one module to compile.
type Job struct {
	// Path is the source file. It is read unless Source is set.
	Path string
	// Source, when non-nil, is used instead of reading Path.
	Source     []byte
	ModuleName string
	// OutPath receives the compiled code. Empty keeps the code in memory only.
	OutPath string
}

// Result is the outcome of one job.
type Result struct {
	Job    Job
	Output *compiler.Output
	Err    error
}

// Summary aggregates a build.
type Summary struct {
	// Results holds one entry per dispatched job, in job order. Jobs skipped
	// after a fatal error have a nil Output and nil Err.
	Results  []Result
	Compiled int
	Cached   int
	Failed   int
	Written  int
	Bytes    int64
	Duration time.Duration
}

// Config configures a Builder.
type Config struct {
	// Workers bounds concurrency. Zero means runtime.NumCPU().
	Workers int
	// KeepGoing compiles every job even after failures.
	KeepGoing bool
	// Language overrides detection for every job.
	Language string
	// Options returns the lowering options for a module name.
	Options func(moduleName string) esm.Options
	Logger  *slog.Logger
	// Progress, if set, is called after each finished job. Workers call it
	// concurrently.
	Progress func(done, total int, res Result)
}

// Builder runs jobs through a shared Compiler. Each job owns its own
// lowering state, so jobs never observe each other.
type Builder struct {
	comp *compiler.Compiler
	cfg  Config
}

// New creates a Builder.
func New(comp *compiler.Compiler, cfg Config) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Options == nil {
		cfg.Options = func(name string) esm.Options {
			return esm.Options{ModuleName: name, RuntimeModule: true}
		}
	}

	return &Builder{comp: comp, cfg: cfg}
}

// Run compiles jobs with a bounded worker pool. Without KeepGoing the first
// error stops dispatch and is returned; with KeepGoing every job runs and
// ErrFailed reports how many failed.
func (b *Builder) Run(ctx context.Context, jobs []Job) (Summary, error) {
	start := time.Now()
	summary := Summary{Results: make([]Result, len(jobs))}

	if len(jobs) == 0 {
		return summary, nil
	}

	workers := b.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workers = min(workers, len(jobs))

	jobCh := make(chan int, workers)

	var (
		firstErr  firstError
		completed atomic.Int64
		wg        sync.WaitGroup
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range jobCh {
				if !b.cfg.KeepGoing && firstErr.failed() {
					continue
				}

				res := b.runJob(ctx, jobs[idx])
				summary.Results[idx] = res

				if res.Err != nil && !b.cfg.KeepGoing {
					firstErr.record(res.Err)
				}

				done := completed.Add(1)
				if b.cfg.Progress != nil {
					b.cfg.Progress(int(done), len(jobs), res)
				}
			}
		}()
	}

dispatch:
	for idx := range jobs {
		if !b.cfg.KeepGoing && firstErr.failed() {
			break
		}

		select {
		case <-ctx.Done():
			break dispatch
		case jobCh <- idx:
		}
	}

	close(jobCh)
	wg.Wait()

	summary.tally()
	summary.Duration = time.Since(start)

	if err := firstErr.get(); err != nil {
		return summary, err
	}

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("build interrupted: %w", err)
	}

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %d of %d modules", ErrFailed, summary.Failed, len(jobs))
	}

	return summary, nil
}

// firstError keeps the first error recorded by any worker. Failing modules
// report errors of unrelated concrete types, so it cannot be an atomic.Value.
type firstError struct {
	mu  sync.Mutex
	err error
	set atomic.Bool
}

func (f *firstError) record(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err == nil {
		f.err = err
		f.set.Store(true)
	}
}

func (f *firstError) failed() bool {
	return f.set.Load()
}

func (f *firstError) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.err
}

// RunOne compiles a single job on the calling goroutine.
func (b *Builder) RunOne(ctx context.Context, job Job) Result {
	return b.runJob(ctx, job)
}

func (b *Builder) runJob(ctx context.Context, job Job) Result {
	res := Result{Job: job}

	src := job.Source
	if src == nil {
		var err error

		src, err = ReadSource(job.Path)
		if err != nil {
			res.Err = err

			return res
		}
	}

	out, err := b.comp.Compile(ctx, compiler.Input{
		Filename: job.Path,
		Source:   src,
		Language: b.cfg.Language,
		Options:  b.cfg.Options(job.ModuleName),
	})
	if err != nil {
		b.cfg.Logger.DebugContext(ctx, "module failed", "file", job.Path, "module", job.ModuleName, "error", err)
		res.Err = err

		return res
	}

	res.Output = out

	if job.OutPath != "" {
		err = WriteOutput(job.OutPath, out.Code)
		if err != nil {
			res.Err = err
		}
	}

	return res
}

// WriteOutput writes code to path, creating parent directories.
func WriteOutput(path, code string) error {
	err := os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	err = os.WriteFile(path, []byte(code), filePerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (s *Summary) tally() {
	for _, res := range s.Results {
		switch {
		case res.Err != nil:
			s.Failed++
		case res.Output != nil:
			s.Compiled++
			s.Bytes += int64(len(res.Output.Code))

			if res.Output.Cached {
				s.Cached++
			}

			if res.Job.OutPath != "" {
				s.Written++
			}
		}
	}
}
