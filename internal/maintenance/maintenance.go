// Package maintenance recomputes stored signatures and words, for example
// after the signature algorithm changed.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/sigboard/internal/constants"
	"github.com/kozaktomas/sigboard/internal/content"
	"github.com/kozaktomas/sigboard/internal/database"
	"github.com/kozaktomas/sigboard/internal/fingerprint"
	"github.com/kozaktomas/sigboard/internal/signature"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// maxReportedFailures caps the failures kept in a result.
const maxReportedFailures = 100

// Progress is reported after every processed post.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ProgressFunc receives progress updates. Calls are serialized.
type ProgressFunc func(Progress)

// Failure describes a post that could not be recomputed.
type Failure struct {
	PostID int64  `json:"post_id"`
	Error  string `json:"error"`
}

// Result summarizes a recompute run.
type Result struct {
	Total    int           `json:"total"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Failures []Failure     `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// tracker collects progress from concurrent workers.
type tracker struct {
	mu       sync.Mutex
	progress Progress
	updated  int
	failures []Failure
	notify   ProgressFunc
}

func (t *tracker) done(postID int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress.Processed++
	if err != nil {
		t.progress.Failed++
		if len(t.failures) < maxReportedFailures {
			t.failures = append(t.failures, Failure{PostID: postID, Error: err.Error()})
		}
	} else {
		t.updated++
	}
	if t.notify != nil {
		t.notify(t.progress)
	}
}

func (t *tracker) result(start time.Time) *Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Result{
		Total:    t.progress.Total,
		Updated:  t.updated,
		Failed:   t.progress.Failed,
		Failures: t.failures,
		Duration: time.Since(start),
	}
}

// SignatureOptions configure RecomputeSignatures.
type SignatureOptions struct {
	Concurrency int          // Parallel workers, defaults to constants.WorkerPoolSize
	Rate        float64      // Posts per second, 0 for unlimited
	OnProgress  ProgressFunc // Optional
}

// RecomputeSignatures recomputes the signature of every stored post from
// its content. Failures of single posts are counted and do not stop the run.
// The returned error is only set when the run itself could not proceed.
func RecomputeSignatures(ctx context.Context, writer database.SignatureWriter, src content.Store, opts SignatureOptions) (*Result, error) {
	start := time.Now()

	ids, err := writer.GetPostIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get post ids: %w", err)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = constants.WorkerPoolSize
	}
	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	t := &tracker{progress: Progress{Total: len(ids)}, notify: opts.OnProgress}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, id := range ids {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			t.done(id, recomputePost(gctx, writer, src, id))
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return t.result(start), fmt.Errorf("recompute interrupted: %w", err)
	}
	return t.result(start), nil
}

func recomputePost(ctx context.Context, writer database.SignatureWriter, src content.Store, postID int64) error {
	data, err := src.Get(ctx, postID)
	if err != nil {
		return err
	}

	c, _, err := fingerprint.ComputeSignature(data)
	if err != nil {
		return err
	}

	if err := writer.Save(ctx, database.NewStoredSignature(postID, fingerprint.ComputeChecksum(data), c)); err != nil {
		return fmt.Errorf("failed to save signature: %w", err)
	}
	return nil
}

// WordsOptions configure RecomputeWords.
type WordsOptions struct {
	BatchSize  int          // Posts per transaction, defaults to constants.WordBatchSize
	OnProgress ProgressFunc // Optional, called once per batch
}

// RecomputeWords regenerates the words of every post from its stored
// signature. No content is read. Words are written in batches, each in a
// single transaction.
func RecomputeWords(ctx context.Context, writer database.SignatureWriter, opts WordsOptions) (*Result, error) {
	start := time.Now()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = constants.WordBatchSize
	}

	total, err := writer.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count signatures: %w", err)
	}

	res := &Result{Total: total}
	progress := Progress{Total: total}

	err = writer.Scan(ctx, batchSize, func(batch []database.StoredSignature) error {
		updates := make([]database.WordsUpdate, len(batch))
		for i := range batch {
			updates[i] = database.WordsUpdate{
				PostID: batch[i].PostID,
				Words:  signature.GenerateWords(batch[i].Signature),
			}
		}
		if err := writer.UpdateWords(ctx, updates); err != nil {
			return fmt.Errorf("failed to update words: %w", err)
		}

		res.Updated += len(updates)
		progress.Processed += len(updates)
		if opts.OnProgress != nil {
			opts.OnProgress(progress)
		}
		return nil
	})
	res.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return res, fmt.Errorf("recompute interrupted: %w", err)
		}
		return res, err
	}
	return res, nil
}
