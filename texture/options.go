// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import "time"

// Defaults used by New.
const (
	DefaultCacheSize   = 512
	DefaultConcurrency = 4
	DefaultRetryDelay  = 10 * time.Second
)

// Option configures a Store.
type Option func(*config)

type config struct {
	cacheSize   int
	byteBudget  int64
	concurrency int
	retryDelay  time.Duration
	now         func() time.Time
	metrics     string
}

func defaultConfig() config {
	return config{
		cacheSize:   DefaultCacheSize,
		concurrency: DefaultConcurrency,
		retryDelay:  DefaultRetryDelay,
		now:         time.Now,
	}
}

// WithCacheSize sets how many evictable entries are kept before the least
// recently used is dropped. Zero evicts tiles as soon as they leave the
// view.
func WithCacheSize(n int) Option {
	return func(c *config) {
		c.cacheSize = max(n, 0)
	}
}

// WithByteBudget caps the bytes held by resident textures. Evictable
// entries are dropped, least recently used first, while the budget is
// exceeded. Visible and pinned textures are kept even over budget.
// Zero disables the budget.
func WithByteBudget(bytes int64) Option {
	return func(c *config) {
		c.byteBudget = max(bytes, 0)
	}
}

// WithConcurrency sets the number of loads that may run at once.
// Non-positive values select DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n <= 0 {
			n = DefaultConcurrency
		}
		c.concurrency = n
	}
}

// WithRetryDelay sets how long a tile whose load failed with a network
// error is held back before a mark reissues it.
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) {
		c.retryDelay = max(d, 0)
	}
}

// WithClock replaces time.Now for retry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics records Prometheus metrics for the store under the given
// store label.
func WithMetrics(name string) Option {
	return func(c *config) {
		c.metrics = name
	}
}
