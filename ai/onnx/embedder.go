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

// Package onnx runs sentence-transformer models locally through ONNX
// Runtime using hugot. Models are downloaded from HuggingFace into the
// configured model directory on first use.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/poiesic/refmatch/ai"
)

// ErrNotLoaded indicates the model has not been loaded or was closed.
var ErrNotLoaded = errors.New("onnx model not loaded")

// Embedder implements ai.Embedder with a hugot feature-extraction pipeline.
type Embedder struct {
	config    *ai.Config
	modelPath string
	logger    *slog.Logger

	mu       sync.RWMutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.ModelDir, 0755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	return &Embedder{
		config:    config,
		modelPath: filepath.Join(config.ModelDir, modelDirName(config)),
		logger:    slog.Default().With("component", "onnx-embedder", "model", config.EmbeddingModel),
	}, nil
}

// modelDirName mirrors the directory hugot.DownloadModel creates for a repo.
func modelDirName(config *ai.Config) string {
	if config.ModelRepo == "" {
		return config.EmbeddingModel
	}
	return strings.ReplaceAll(config.ModelRepo, "/", "_")
}

// EnsureModel downloads the model if needed and starts an ORT session.
// It is safe to call more than once.
func (e *Embedder) EnsureModel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pipeline != nil {
		return nil
	}

	if _, err := os.Stat(e.modelPath); os.IsNotExist(err) {
		if err := e.downloadModel(ctx); err != nil {
			return fmt.Errorf("download model: %w", err)
		}
	}
	return e.loadModel()
}

func (e *Embedder) downloadModel(_ context.Context) error {
	if e.config.ModelRepo == "" {
		return fmt.Errorf("model %s not found in %s and no HuggingFace repo configured",
			e.config.EmbeddingModel, e.config.ModelDir)
	}
	e.logger.Info("downloading model", "repo", e.config.ModelRepo, "dir", e.config.ModelDir)

	modelPath, err := hugot.DownloadModel(e.config.ModelRepo, e.config.ModelDir, hugot.NewDownloadOptions())
	if err != nil {
		return fmt.Errorf("download from HuggingFace: %w", err)
	}
	e.modelPath = modelPath
	return nil
}

func (e *Embedder) loadModel() error {
	threads := e.config.Threads
	if threads == 0 {
		threads = runtime.NumCPU()
	}
	sessionOpts := []options.WithOption{
		options.WithIntraOpNumThreads(threads),
	}
	if e.config.OnnxLibraryPath != "" {
		sessionOpts = append(sessionOpts, options.WithOnnxLibraryPath(e.config.OnnxLibraryPath))
	}

	session, err := hugot.NewORTSession(sessionOpts...)
	if err != nil {
		return fmt.Errorf("create ORT session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: e.modelPath,
		Name:      e.config.EmbeddingModel,
	})
	if err != nil {
		session.Destroy()
		return fmt.Errorf("create pipeline: %w", err)
	}

	e.session = session
	e.pipeline = pipeline
	e.logger.Info("model loaded", "path", e.modelPath, "threads", threads)
	return nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return vectors[0], nil
}

// EmbedTexts runs the pipeline on a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.pipeline == nil {
		return nil, ErrNotLoaded
	}
	output, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(output.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyEmbedding, len(output.Embeddings), len(texts))
	}
	return output.Embeddings, nil
}

// Model returns the configured model name.
func (e *Embedder) Model() string {
	return e.config.EmbeddingModel
}

// Close destroys the ORT session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	e.pipeline = nil
	return nil
}
