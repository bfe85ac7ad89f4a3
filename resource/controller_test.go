package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), 50))
	require.NoError(t, c.AcquireMemory(context.Background(), 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(ctx, 20), context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())
	require.NoError(t, c.AcquireMemory(context.Background(), 20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})
	require.NoError(t, c.AcquireMemory(context.Background(), 1000))
	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Builds(t *testing.T) {
	c := NewController(Config{MaxConcurrentBuilds: 2})

	require.NoError(t, c.AcquireBuild(context.Background()))
	require.NoError(t, c.AcquireBuild(context.Background()))
	assert.Equal(t, int64(2), c.ActiveBuilds())
	assert.False(t, c.TryAcquireBuild())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.AcquireBuild(ctx), context.Canceled)

	c.ReleaseBuild()
	assert.True(t, c.TryAcquireBuild())
}

func TestController_ThrottleDocs(t *testing.T) {
	c := NewController(Config{BuildDocsPerSec: 10})

	// The burst is available immediately; chunks beyond it must wait.
	require.NoError(t, c.ThrottleDocs(context.Background(), 10))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.ThrottleDocs(ctx, 25))
}

func TestNilController(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireBuild(context.Background()))
	c.ReleaseBuild()
	require.NoError(t, c.ThrottleDocs(context.Background(), 1<<20))
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.True(t, c.TryAcquireMemory(1))
}

func TestRateLimitedIO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	var buf bytes.Buffer
	w := NewRateLimitedWriter(context.Background(), &buf, c)
	_, err := w.Write([]byte("snapshot"))
	require.NoError(t, err)

	r := NewRateLimitedReader(context.Background(), &buf, c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(got))
}
