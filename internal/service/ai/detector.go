// Package ai runs the SSD MobileNet COCO network through OpenCV's DNN module.
package ai

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	"gocv.io/x/gocv"

	"visionchat/internal/common"
	"visionchat/internal/detection"
	"visionchat/internal/logger"
)

// SSD input geometry. Pixels are scaled into [-1,1] around a 127.5 mean.
const (
	inputSize  = 300
	inputScale = 1.0 / 127.5
	inputMean  = 127.5
)

var boxColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}

// DetectorService owns one DNN network. A gocv.Net must not be used from two
// goroutines at once; callers share instances through service.DetectorPool.
type DetectorService struct {
	net        gocv.Net
	ready      bool
	modelPath  string
	configPath string
	threshold  float64
	logger     *logger.Logger
}

// NewDetectorService loads the network from modelPath/configPath. A missing or
// broken model is logged and every later Detect reports
// common.ErrDetectionUnavailable.
func NewDetectorService(modelPath, configPath string, threshold float64, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:  modelPath,
		configPath: configPath,
		threshold:  threshold,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
		return service
	}

	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); err != nil {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if _, err := os.Stat(s.configPath); err != nil {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		net.Close()
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Detect decodes imageBytes, runs the network and draws the surviving boxes.
func (s *DetectorService) Detect(ctx context.Context, imageBytes []byte) (*detection.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := detection.Decode(imageBytes)
	if err != nil {
		return nil, err
	}

	if !s.ready {
		return nil, fmt.Errorf("%w: detection network not initialized", common.ErrDetectionUnavailable)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to convert image: %v", common.ErrBadInput, err)
	}
	defer mat.Close()

	raw, err := s.forward(mat)
	if err != nil {
		return nil, err
	}
	detections := detection.Normalize(raw, mat.Cols(), mat.Rows(), s.threshold)
	for _, d := range detections {
		s.logger.Info("Detected %s (%.2f)", d.ClassName, d.Confidence)
	}

	annotated, err := s.drawDetections(&mat, detections)
	if err != nil {
		return nil, err
	}

	return &detection.Result{
		Annotated:  annotated,
		Detections: detections,
		Width:      mat.Cols(),
		Height:     mat.Rows(),
	}, nil
}

// forward returns every row of the network output in pixel coordinates.
func (s *DetectorService) forward(mat gocv.Mat) ([]detection.Detection, error) {
	blob := gocv.BlobFromImage(mat, inputScale, image.Pt(inputSize, inputSize),
		gocv.NewScalar(inputMean, inputMean, inputMean, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()
	if output.Empty() {
		return nil, fmt.Errorf("%w: network produced no output", common.ErrDetectionUnavailable)
	}

	// Output rows: [batch_id, class_id, confidence, x1, y1, x2, y2], coords in [0,1].
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	width, height := float64(mat.Cols()), float64(mat.Rows())
	raw := make([]detection.Detection, 0, rows.Rows())
	for i := 0; i < rows.Rows(); i++ {
		raw = append(raw, detection.Detection{
			ClassName:  detection.COCOLabel(int(rows.GetFloatAt(i, 1))),
			Confidence: float64(rows.GetFloatAt(i, 2)),
			BBox: detection.BBox{
				float64(rows.GetFloatAt(i, 3)) * width,
				float64(rows.GetFloatAt(i, 4)) * height,
				float64(rows.GetFloatAt(i, 5)) * width,
				float64(rows.GetFloatAt(i, 6)) * height,
			},
		})
	}
	return raw, nil
}

// drawDetections draws the boxes onto mat and returns it re-encoded as JPEG.
func (s *DetectorService) drawDetections(mat *gocv.Mat, detections []detection.Detection) ([]byte, error) {
	for _, d := range detections {
		rect := image.Rect(int(d.BBox[0]), int(d.BBox[1]), int(d.BBox[2]), int(d.BBox[3]))
		if err := gocv.Rectangle(mat, rect, boxColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", d.ClassName, d.Confidence)
		pt := image.Pt(rect.Min.X, max(rect.Min.Y-5, 12))
		if err := gocv.PutText(mat, label, pt, gocv.FontHersheySimplex, 0.5, boxColor, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *mat)
	if err != nil {
		s.logger.Error("Failed to encode image: %v", err)
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	if s.ready {
		s.ready = false
		return s.net.Close()
	}
	return nil
}
