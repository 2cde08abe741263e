// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embedcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/refmatch/ai"
)

// batchEncoder embeds key lists in fixed-size batches on a worker pool.
type batchEncoder struct {
	embedder ai.Embedder
	pool     *ants.Pool
	config   Config
	logger   *slog.Logger
}

func newBatchEncoder(embedder ai.Embedder, config Config, logger *slog.Logger) (*batchEncoder, error) {
	pool, err := ants.NewPool(config.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &batchEncoder{
		embedder: embedder,
		pool:     pool,
		config:   config,
		logger:   logger,
	}, nil
}

func (e *batchEncoder) release() {
	e.pool.Release()
}

// encode returns one unit-length vector per text, in input order.
// The first failing batch cancels the rest.
func (e *batchEncoder) encode(ctx context.Context, texts []string, progress *ProgressTracker) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	progress.Start()
	for start := 0; start < len(texts); start += e.config.BatchSize {
		if workCtx.Err() != nil {
			break
		}
		end := min(start+e.config.BatchSize, len(texts))
		batch := texts[start:end]
		offset := start

		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			vectors, err := e.embedBatch(workCtx, batch)
			if err != nil {
				fail(fmt.Errorf("embed keys %d-%d: %w", offset, offset+len(batch), err))
				return
			}
			copy(out[offset:], vectors)
			progress.Increment(len(batch))
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.Finish()

	dim := len(out[0])
	for i, v := range out {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: key %q has dimension %d, expected %d", ErrDimensionMismatch, texts[i], len(v), dim)
		}
	}
	return out, nil
}

func (e *batchEncoder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = e.embedder.EmbedTexts(ctx, batch)
		if err == nil && len(vectors) != len(batch) {
			err = fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(vectors))
		}
		return err
	}, e.config.MaxRetries, e.config.RetryDelay)
	if err != nil {
		return nil, err
	}

	for i := range vectors {
		vectors[i] = NormalizeVector(vectors[i])
	}
	return vectors, nil
}
