package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionchat/internal/detection"
	"visionchat/internal/logger"
)

// busyDetector records how many callers use it at once.
type busyDetector struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	closed  bool
}

func (d *busyDetector) Detect(ctx context.Context, _ []byte) (*detection.Result, error) {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		m := d.maxSeen.Load()
		if n <= m || d.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return &detection.Result{}, nil
}

func (d *busyDetector) Close() error {
	d.closed = true
	return nil
}

func TestNewDetectorPool_RequiresDetectors(t *testing.T) {
	_, err := NewDetectorPool(nil, logger.NewWriterLogger(io.Discard))
	assert.Error(t, err)
}

func TestDetectorPool_NeverSharesAnInstance(t *testing.T) {
	a, b := &busyDetector{}, &busyDetector{}
	pool, err := NewDetectorPool([]Detector{a, b}, logger.NewWriterLogger(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Size())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Detect(context.Background(), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, a.maxSeen.Load(), int32(1))
	assert.LessOrEqual(t, b.maxSeen.Load(), int32(1))
}

func TestDetectorPool_ContextEndsWait(t *testing.T) {
	block := make(chan struct{})
	slow := detectorFunc(func(ctx context.Context, _ []byte) (*detection.Result, error) {
		<-block
		return &detection.Result{}, nil
	})
	pool, err := NewDetectorPool([]Detector{slow}, logger.NewWriterLogger(io.Discard))
	require.NoError(t, err)

	go pool.Detect(context.Background(), nil)
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Detect(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
}

func TestDetectorPool_ReturnsDetectorAfterError(t *testing.T) {
	boom := errors.New("boom")
	failing := detectorFunc(func(context.Context, []byte) (*detection.Result, error) { return nil, boom })
	pool, err := NewDetectorPool([]Detector{failing}, logger.NewWriterLogger(io.Discard))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := pool.Detect(context.Background(), nil)
		assert.ErrorIs(t, err, boom)
	}
}

func TestDetectorPool_CloseReleasesClosers(t *testing.T) {
	d := &busyDetector{}
	pool, err := NewDetectorPool([]Detector{d, detectorFunc(nil)}, logger.NewWriterLogger(io.Discard))
	require.NoError(t, err)

	require.NoError(t, pool.Close())
	assert.True(t, d.closed)
}
