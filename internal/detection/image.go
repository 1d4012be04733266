package detection

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"visionchat/internal/common"
)

const (
	boxThickness = 2
	jpegQuality  = 90
)

// Decode parses any raster format imaging understands. Unreadable input is
// reported as common.ErrBadInput.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrBadInput)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBadInput, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", common.ErrBadInput)
	}
	return img, nil
}

// EncodeJPEG encodes img as a JPEG buffer.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Annotate draws every detection's box and "label (conf)" caption on a copy
// of img and returns it JPEG-encoded.
func Annotate(img image.Image, detections []Detection) ([]byte, error) {
	bounds := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)

	for _, d := range detections {
		c := classColor(d.ClassName)
		rect := image.Rect(int(d.BBox[0]), int(d.BBox[1]), int(d.BBox[2]), int(d.BBox[3]))
		drawRect(canvas, rect, c)
		drawLabel(canvas, rect.Min, fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence), c)
	}

	return EncodeJPEG(canvas)
}

func drawRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	for i := 0; i < boxThickness; i++ {
		edge := r.Inset(i)
		if edge.Empty() {
			return
		}
		draw.Draw(dst, image.Rect(edge.Min.X, edge.Min.Y, edge.Max.X, edge.Min.Y+1), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(edge.Min.X, edge.Max.Y-1, edge.Max.X, edge.Max.Y), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(edge.Min.X, edge.Min.Y, edge.Min.X+1, edge.Max.Y), src, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(edge.Max.X-1, edge.Min.Y, edge.Max.X, edge.Max.Y), src, image.Point{}, draw.Src)
	}
}

func drawLabel(dst *image.RGBA, at image.Point, text string, bg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	// Caption sits above the box, or inside it when the box touches the top.
	top := at.Y - height
	if top < 0 {
		top = at.Y
	}
	box := image.Rect(at.X, top, at.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, box, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(at.X+2, top+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}

func classColor(name string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(name))
	v := h.Sum32()
	return color.RGBA{R: uint8(v>>16) | 0x40, G: uint8(v>>8) | 0x40, B: uint8(v) | 0x40, A: 255}
}
