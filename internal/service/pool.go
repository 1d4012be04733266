package service

import (
	"context"
	"errors"
	"io"

	"visionchat/internal/detection"
	"visionchat/internal/logger"
)

// Detector finds objects in a raw image and returns them with an annotated
// JPEG. Implementations report common.ErrBadInput for undecodable images and
// common.ErrDetectionUnavailable when the model cannot run.
type Detector interface {
	Detect(ctx context.Context, imageBytes []byte) (*detection.Result, error)
}

// DetectorPool lends out one detector per in-flight request, so an instance
// is never used by two goroutines at the same time.
type DetectorPool struct {
	idle      chan Detector
	detectors []Detector
	logger    *logger.Logger
}

// NewDetectorPool takes ownership of detectors.
func NewDetectorPool(detectors []Detector, logger *logger.Logger) (*DetectorPool, error) {
	if len(detectors) == 0 {
		return nil, errors.New("detector pool needs at least one detector")
	}

	pool := &DetectorPool{
		idle:      make(chan Detector, len(detectors)),
		detectors: detectors,
		logger:    logger,
	}
	for _, d := range detectors {
		pool.idle <- d
	}

	logger.Info("Detector pool started with %d worker(s)", len(detectors))
	return pool, nil
}

// Detect waits for a free detector or for ctx to end.
func (p *DetectorPool) Detect(ctx context.Context, imageBytes []byte) (*detection.Result, error) {
	var d Detector
	select {
	case d = <-p.idle:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.idle <- d }()

	return d.Detect(ctx, imageBytes)
}

// Size is the number of detectors in the pool.
func (p *DetectorPool) Size() int {
	return len(p.detectors)
}

// Close releases every detector that holds resources. Call it only after
// the HTTP server has stopped.
func (p *DetectorPool) Close() error {
	var errs []error
	for _, d := range p.detectors {
		if c, ok := d.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	p.logger.Info("All detector workers stopped")
	return errors.Join(errs...)
}
