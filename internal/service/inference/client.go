// Package inference detects objects by delegating to an external model
// server over HTTP.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"visionchat/internal/common"
	"visionchat/internal/detection"
)

const requestTimeout = 60 * time.Second

// Client posts images as multipart "file" to the inference URL and expects
// {"detections":[{"class_name","confidence","bbox":[x1,y1,x2,y2]}]} back.
type Client struct {
	inferenceURL string
	threshold    float64
	httpClient   *http.Client
}

func NewClient(inferenceURL string, threshold float64) *Client {
	return &Client{
		inferenceURL: inferenceURL,
		threshold:    threshold,
		httpClient:   &http.Client{Timeout: requestTimeout},
	}
}

// Detect validates the image locally, asks the remote model and renders the
// overlay in process.
func (c *Client) Detect(ctx context.Context, imageBytes []byte) (*detection.Result, error) {
	img, err := detection.Decode(imageBytes)
	if err != nil {
		return nil, err
	}

	raw, err := c.predict(ctx, imageBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDetectionUnavailable, err)
	}

	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	detections := detection.Normalize(raw, width, height, c.threshold)

	annotated, err := detection.Annotate(img, detections)
	if err != nil {
		return nil, err
	}

	return &detection.Result{
		Annotated:  annotated,
		Detections: detections,
		Width:      width,
		Height:     height,
	}, nil
}

func (c *Client) predict(ctx context.Context, imageData []byte) ([]detection.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imageData)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []detection.Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Detections, nil
}
