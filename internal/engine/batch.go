package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchProcessOptions configures Engine.BatchProcessConversations (spec
// §4.10, §6).
type BatchProcessOptions struct {
	BatchSize         int
	MaxConcurrency    int
	OnProgress        func(processed, total int)
	MaxProcessingTime time.Duration
}

// BatchProcessResult is the structured outcome of a batch run (spec §7:
// "{processed, failed, errors?}").
type BatchProcessResult struct {
	Processed int
	Failed    int
	Errors    []error
}

// BatchProcessConversations runs the phased pipeline over ids: load is
// implicit in AnalyzeConversation's own store reads; analytics, gaps, and
// decisions are persisted together per conversation in the fixed order
// spec §5 describes. Patterns are a window-level aggregate and are the
// caller's responsibility to recompute afterward (see
// Engine.RecomputePatterns). A max_processing_time_ms of 0 returns
// immediately with processed=0 (spec §8 boundary behavior).
func (e *Engine) BatchProcessConversations(ctx context.Context, ids []string, opts BatchProcessOptions) (BatchProcessResult, error) {
	if opts.MaxProcessingTime <= 0 {
		return BatchProcessResult{}, nil
	}
	if len(ids) == 0 {
		return BatchProcessResult{}, nil
	}

	concurrency := opts.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	deadline := time.Now().Add(opts.MaxProcessingTime)
	var result BatchProcessResult
	total := len(ids)

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = total
	}

	for start := 0; start < len(ids); start += batchSize {
		if time.Now().After(deadline) {
			break
		}
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		type outcome struct {
			err error
		}
		outcomes := make([]outcome, len(chunk))

		for i, id := range chunk {
			i, id := i, id
			g.Go(func() error {
				if err := e.AnalyzeConversation(gctx, id); err != nil {
					outcomes[i] = outcome{err: err}
				}
				return nil
			})
		}
		_ = g.Wait()

		for _, o := range outcomes {
			if o.err != nil {
				result.Failed++
				result.Errors = append(result.Errors, o.err)
				continue
			}
			result.Processed++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.Processed+result.Failed, total)
		}
	}

	return result, nil
}
