// Package resource bounds the background work of a database: concurrent
// index builds, backfill throughput, checkpoint IO and snapshot buffers.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for snapshot buffers.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentBuilds is the maximum number of index builds running at
	// once across all collections. If 0, defaults to 1.
	MaxConcurrentBuilds int64

	// BuildDocsPerSec limits the documents scanned per second by index
	// backfills. If 0, unlimited.
	BuildDocsPerSec int64

	// IOLimitBytesPerSec is the maximum checkpoint IO throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages shared resources.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	buildSem *semaphore.Weighted
	builds   atomic.Int64

	docLimiter *rate.Limiter
	ioLimiter  *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentBuilds <= 0 {
		cfg.MaxConcurrentBuilds = 1
	}

	c := &Controller{
		cfg:      cfg,
		buildSem: semaphore.NewWeighted(cfg.MaxConcurrentBuilds),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.BuildDocsPerSec > 0 {
		c.docLimiter = rate.NewLimiter(rate.Limit(cfg.BuildDocsPerSec), int(cfg.BuildDocsPerSec))
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Config returns the effective limits.
func (c *Controller) Config() Config { return c.cfg }

// AcquireMemory reserves memory, blocking while a hard limit would be
// exceeded until memory is released or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves memory without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireBuild reserves an index build slot, blocking while all slots are
// busy.
func (c *Controller) AcquireBuild(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.buildSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.builds.Add(1)
	return nil
}

// TryAcquireBuild reserves a build slot without blocking.
func (c *Controller) TryAcquireBuild() bool {
	if c == nil {
		return true
	}
	if !c.buildSem.TryAcquire(1) {
		return false
	}
	c.builds.Add(1)
	return true
}

// ReleaseBuild releases a build slot.
func (c *Controller) ReleaseBuild() {
	if c == nil {
		return
	}
	c.builds.Add(-1)
	c.buildSem.Release(1)
}

// ActiveBuilds returns the number of running index builds.
func (c *Controller) ActiveBuilds() int64 {
	if c == nil {
		return 0
	}
	return c.builds.Load()
}

// ThrottleDocs waits until backfills may scan n more documents. It has the
// signature of index.Throttle.
func (c *Controller) ThrottleDocs(ctx context.Context, n int) error {
	if c == nil || c.docLimiter == nil || n <= 0 {
		return nil
	}
	return waitN(ctx, c.docLimiter, n)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	return waitN(ctx, c.ioLimiter, bytes)
}

// waitN waits for n tokens in chunks no larger than the burst.
func waitN(ctx context.Context, l *rate.Limiter, n int) error {
	burst := l.Burst()
	for n > 0 {
		k := min(n, burst)
		if err := l.WaitN(ctx, k); err != nil {
			return err
		}
		n -= k
	}
	return nil
}
