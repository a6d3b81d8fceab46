package bagit

import (
	"context"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/digest"
	"github.com/APTrust/bagr/util/fileutil"
	"golang.org/x/sync/errgroup"
	"io"
	"sync"
)

// hashJob asks for one file to be hashed with algs. A job with no
// algorithms is passed straight through with its size from the walk.
type hashJob struct {
	summary *fileutil.FileSummary
	algs    []digest.Algorithm
}

type hashed struct {
	summary *fileutil.FileSummary
	size    int64
	digests map[string]string
}

// hashFiles pulls jobs from next until it returns io.EOF and hashes
// them on a pool of options.Workers goroutines. Every algorithm for a
// file is computed in one read. collect is called with each result,
// one call at a time, in whatever order files finish.
//
// The context is checked between files and between reads; a file
// that is cut short is never passed to collect. On cancellation the
// context's error is returned.
func hashFiles(ctx context.Context, options Options, next func() (*hashJob, error), collect func(hashed)) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(options.Workers)
	var mutex sync.Mutex
	var walkErr error
	for groupCtx.Err() == nil {
		job, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			walkErr = err
			break
		}
		if job == nil {
			continue
		}
		group.Go(func() error {
			result, err := hashOne(groupCtx, options.FS, job)
			if err != nil {
				return err
			}
			mutex.Lock()
			defer mutex.Unlock()
			collect(result)
			return nil
		})
	}
	err := group.Wait()
	if err == nil {
		err = walkErr
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func hashOne(ctx context.Context, fs fileutil.FileSystem, job *hashJob) (hashed, error) {
	if len(job.algs) == 0 {
		return hashed{summary: job.summary, size: job.summary.Size}, nil
	}
	if err := ctx.Err(); err != nil {
		return hashed{}, err
	}
	file, err := fs.Open(job.summary.AbsPath)
	if err != nil {
		return hashed{}, bagerr.IO("open", job.summary.AbsPath, err)
	}
	defer file.Close()
	hasher := digest.NewMultiHasher(job.algs)
	if _, err := hasher.ReadFrom(&contextReader{ctx: ctx, r: file}); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return hashed{}, ctxErr
		}
		return hashed{}, bagerr.IO("read", job.summary.AbsPath, err)
	}
	return hashed{
		summary: job.summary,
		size:    hasher.Count(),
		digests: hasher.Sums(),
	}, nil
}

// contextReader stops reading once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (reader *contextReader) Read(p []byte) (int, error) {
	if err := reader.ctx.Err(); err != nil {
		return 0, err
	}
	return reader.r.Read(p)
}

// walkerWarnings converts what a walker skipped into report warnings.
func walkerWarnings(walker *fileutil.Walker) []Warning {
	warnings := make([]Warning, 0)
	for _, skipped := range walker.Warnings() {
		kind := SkippedIrregular
		if skipped.Kind == fileutil.SkippedSymlink {
			kind = SkippedSymlink
		}
		warnings = append(warnings, Warning{Kind: kind, Path: skipped.Path})
	}
	return warnings
}

func emitWarnings(tracker *tracker, warnings []Warning) {
	for i := range warnings {
		tracker.emit(Event{Kind: WarningRecorded, Warning: &warnings[i]})
	}
}
