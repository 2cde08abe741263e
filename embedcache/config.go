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
	"fmt"
	"time"
)

// Config controls how a Manager embeds keys.
type Config struct {
	// BatchSize is the number of keys sent to the embedder per call.
	BatchSize int `yaml:"batch_size"`

	// Workers is the size of the embedding worker pool.
	Workers int `yaml:"workers"`

	// MaxRetries is the number of attempts per batch.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base backoff delay; it doubles on each retry.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// ReportInterval is how many keys pass between progress lines.
	ReportInterval int `yaml:"report_interval"`
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		BatchSize:      64,
		Workers:        4,
		MaxRetries:     3,
		RetryDelay:     500 * time.Millisecond,
		ReportInterval: 256,
	}
}

// Validate checks that every field is usable.
func (c Config) Validate() error {
	switch {
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.MaxRetries < 1:
		return fmt.Errorf("%w: max retries must be positive", ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay cannot be negative", ErrInvalidConfig)
	case c.ReportInterval < 1:
		return fmt.Errorf("%w: report interval must be positive", ErrInvalidConfig)
	}
	return nil
}
