// Package detection holds the detector-independent result types and the
// normalization and overlay helpers shared by every detector backend.
package detection

import (
	"math"
	"strings"
)

// BBox is a pixel rectangle [x1, y1, x2, y2] with x1<x2 and y1<y2.
type BBox [4]float64

func (b BBox) Width() float64  { return b[2] - b[0] }
func (b BBox) Height() float64 { return b[3] - b[1] }

// Detection is a single detected object.
type Detection struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Result is what a detector returns for one image.
type Result struct {
	Annotated  []byte // JPEG with boxes and labels drawn
	Detections []Detection
	Width      int
	Height     int
}

// Normalize filters raw detector output so every returned detection has a
// non-empty label, a confidence in [0,1] at or above threshold, and a box
// clamped to the width x height image with positive area.
func Normalize(raw []Detection, width, height int, threshold float64) []Detection {
	out := make([]Detection, 0, len(raw))
	w, h := float64(width), float64(height)

	for _, d := range raw {
		label := strings.TrimSpace(d.ClassName)
		if label == "" {
			continue
		}
		conf := d.Confidence
		if math.IsNaN(conf) {
			continue
		}
		conf = clamp(conf, 0, 1)
		if conf < threshold {
			continue
		}

		box := d.BBox
		for _, v := range box {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				box = BBox{}
				break
			}
		}
		// Some models emit corners in either order.
		x1, x2 := math.Min(box[0], box[2]), math.Max(box[0], box[2])
		y1, y2 := math.Min(box[1], box[3]), math.Max(box[1], box[3])
		box = BBox{clamp(x1, 0, w), clamp(y1, 0, h), clamp(x2, 0, w), clamp(y2, 0, h)}
		if !(box[0] < box[2] && box[1] < box[3]) {
			continue
		}

		out = append(out, Detection{ClassName: label, Confidence: conf, BBox: box})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
