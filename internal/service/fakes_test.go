package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"visionchat/internal/auth"
	"visionchat/internal/detection"
	"visionchat/internal/logger"
	"visionchat/internal/model"
	"visionchat/internal/repository"
	"visionchat/internal/repository/sqlite"
	"visionchat/internal/storage"
)

type detectorFunc func(ctx context.Context, imageBytes []byte) (*detection.Result, error)

func (f detectorFunc) Detect(ctx context.Context, imageBytes []byte) (*detection.Result, error) {
	return f(ctx, imageBytes)
}

// fixedDetector returns the same detections for every image.
func fixedDetector(dets ...detection.Detection) Detector {
	return detectorFunc(func(context.Context, []byte) (*detection.Result, error) {
		return &detection.Result{Annotated: []byte("annotated"), Detections: dets, Width: 640, Height: 480}, nil
	})
}

type fakeAssistant struct {
	question   string
	detections []detection.Detection
	image      []byte
	answer     string
}

func (a *fakeAssistant) Ask(_ context.Context, question string, dets []detection.Detection, img []byte) string {
	a.question, a.detections, a.image = question, dets, img
	return a.answer
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[int64][][]byte
}

func (p *recordingPublisher) Publish(userID int64, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[int64][][]byte{}
	}
	p.events[userID] = append(p.events[userID], data)
}

// failingImages refuses every insert.
type failingImages struct {
	repository.ImageRepository
}

func (failingImages) CreateWithDetections(context.Context, string, string, int64, []detection.Detection) (*model.Image, error) {
	return nil, errors.New("disk full")
}

type testEnv struct {
	store  *sqlite.Store
	files  *storage.LocalStore
	auth   *AuthService
	logger *logger.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.NewStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	files, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	log := logger.NewWriterLogger(io.Discard)
	return &testEnv{
		store:  store,
		files:  files,
		auth:   NewAuthService(store.Users(), auth.NewTokenIssuer("test-secret", time.Hour), log),
		logger: log,
	}
}
