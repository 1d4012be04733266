// Package gemini answers questions about an image and its detections with
// Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"visionchat/internal/detection"
)

const (
	temperature     = 0.1
	maxOutputTokens = 1000
	errorPrefix     = "Error communicating with Gemini: "
)

const systemInstruction = `You are an expert in image processing and computer vision. You are given an image, object detection data for it and a question asked by a user.
Your task is to answer the question based on the image. You are also given the detected objects in the image with their class names, confidence scores and bounding boxes.

Here is a sample format of the detected objects:
Object X:
  - Class: apple
  - Confidence: 87.37%
  - Bounding Box: [x1=584.3, y1=720.9, x2=661.2, y2=959.2]
  - Size: 76.9 x 238.3 pixels

(x1, y1) is the top-left and (x2, y2) the bottom-right corner of the bounding box in pixels. Use them to reason about the location and size of objects. Width is x2 - x1 and height is y2 - y1.
When you mention an object, give its bounding box coordinates and size in pixels, e.g. "The smallest object in the image is Object 2, an apple with bounding box (584.3, 720.9, 661.2, 959.2) and a size of 76.9 x 238.3 pixels."

GUARDRAILS:
Always reply with the exact answer asked by the user concisely in complete sentences.
Do not answer questions unrelated to analysing this image.
Do not use markdown formatting.
Do not over-explain the answer.
Do not make up the answer.
Never respond with null or an empty answer.
Always reply in English.`

// generator is the subset of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Assistant sends one question per call; it keeps no conversation history.
type Assistant struct {
	models  generator
	model   string
	timeout time.Duration
	initErr error
}

// New creates a Gemini API client. Client creation errors are kept and
// reported by every Ask, so the server can start without an API key.
func New(ctx context.Context, apiKey, model string, timeout time.Duration) *Assistant {
	a := &Assistant{model: model, timeout: timeout}

	if apiKey == "" {
		a.initErr = errors.New("GEMINI_API_KEY is not configured")
		return a
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		a.initErr = err
		return a
	}
	a.models = client.Models
	return a
}

func newWithGenerator(g generator, model string, timeout time.Duration) *Assistant {
	return &Assistant{models: g, model: model, timeout: timeout}
}

// Ask never fails: errors come back as "Error communicating with Gemini: ..."
// in place of the answer.
func (a *Assistant) Ask(ctx context.Context, question string, detections []detection.Detection, imageBytes []byte) string {
	answer, err := a.ask(ctx, question, detections, imageBytes)
	if err != nil {
		return errorPrefix + err.Error()
	}
	return answer
}

func (a *Assistant) ask(ctx context.Context, question string, detections []detection.Detection, imageBytes []byte) (string, error) {
	if a.initErr != nil {
		return "", a.initErr
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(UserPrompt(question, detections)),
			genai.NewPartFromBytes(imageBytes, mimeType(imageBytes)),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](temperature),
		MaxOutputTokens:   maxOutputTokens,
		ResponseMIMEType:  "text/plain",
	}

	resp, err := a.models.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

// DetectionData renders detections in the block format the system
// instruction describes. Objects are numbered from 1.
func DetectionData(detections []detection.Detection) string {
	var b strings.Builder
	b.WriteString("YOLO Object Detection Data:\n\n")
	for i, d := range detections {
		// Size is taken from the printed corners so the two lines agree.
		box := detection.BBox{round1(d.BBox[0]), round1(d.BBox[1]), round1(d.BBox[2]), round1(d.BBox[3])}
		fmt.Fprintf(&b, "Object %d:\n", i+1)
		fmt.Fprintf(&b, "  - Class: %s\n", d.ClassName)
		fmt.Fprintf(&b, "  - Confidence: %.2f%%\n", d.Confidence*100)
		fmt.Fprintf(&b, "  - Bounding Box: [x1=%.1f, y1=%.1f, x2=%.1f, y2=%.1f]\n", box[0], box[1], box[2], box[3])
		fmt.Fprintf(&b, "  - Size: %.1f x %.1f pixels\n\n", box.Width(), box.Height())
	}
	return b.String()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// UserPrompt is the text part sent alongside the image.
func UserPrompt(question string, detections []detection.Detection) string {
	return fmt.Sprintf("Here is the image given to you with its object detection data: %s\n\nUser Question: %s",
		DetectionData(detections), question)
}

func mimeType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
