package route

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionchat/internal/auth"
	"visionchat/internal/common"
	"visionchat/internal/detection"
	"visionchat/internal/logger"
	"visionchat/internal/repository/sqlite"
	"visionchat/internal/service"
	"visionchat/internal/service/websocket"
	"visionchat/internal/storage"
)

type stubDetector struct {
	mu     sync.Mutex
	result *detection.Result
	err    error
}

func (d *stubDetector) Detect(context.Context, []byte) (*detection.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, d.err
}

func (d *stubDetector) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// echoAssistant answers with the class names it was given.
type echoAssistant struct{}

func (echoAssistant) Ask(_ context.Context, question string, dets []detection.Detection, _ []byte) string {
	names := make([]string, 0, len(dets))
	for _, d := range dets {
		names = append(names, d.ClassName)
	}
	return "I can see: " + strings.Join(names, ", ")
}

type testServer struct {
	*httptest.Server
	detector *stubDetector
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	dir := t.TempDir()
	log := logger.NewWriterLogger(io.Discard)

	store, err := sqlite.NewStore(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	files, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	hub := websocket.NewHubService(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	det := &stubDetector{result: &detection.Result{
		Annotated:  []byte("jpeg"),
		Detections: []detection.Detection{{ClassName: "cat", Confidence: 0.91, BBox: detection.BBox{10, 10, 100, 100}}},
	}}

	handler := SetupRoutes(Services{
		Auth:        service.NewAuthService(store.Users(), auth.NewTokenIssuer("secret", time.Hour), log),
		Detection:   service.NewDetectionService(det, files, store.Images(), hub, log),
		Chat:        service.NewChatService(store.Images(), files, echoAssistant{}, log),
		Images:      service.NewImageService(store.Images()),
		Hub:         hub,
		MaxUpload:   maxUpload,
		CORSOrigins: []string{"*"},
	}, log)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, detector: det}
}

func (s *testServer) postForm(t *testing.T, path, token string, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req)
}

func (s *testServer) upload(t *testing.T, token, filename string, data []byte) (*http.Response, map[string]any) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write(data)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/detect", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return do(t, req)
}

func (s *testServer) get(t *testing.T, path, token string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	}
	return resp, body
}

func (s *testServer) signupAndLogin(t *testing.T, email string) string {
	t.Helper()
	resp, _ := s.postForm(t, "/api/auth/signup", "", url.Values{"email": {email}, "password": {"pw"}, "full_name": {"A"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.postForm(t, "/api/auth/login", "", url.Values{"username": {email}, "password": {"pw"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["access_token"].(string)
}

func TestExampleScenario(t *testing.T) {
	s := newTestServer(t, 1<<20)

	resp, body := s.postForm(t, "/api/auth/signup", "", url.Values{"email": {"a@x.com"}, "password": {"pw"}, "full_name": {"A"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User created successfully", body["message"])

	resp, body = s.postForm(t, "/api/auth/login", "", url.Values{"username": {"a@x.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bearer", body["token_type"])
	token := body["access_token"].(string)

	resp, body = s.get(t, "/api/auth/me", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, "A", body["full_name"])

	resp, body = s.upload(t, token, "cat.jpg", []byte("cat-image"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["image_id"])
	assert.Equal(t, "data:image/jpeg;base64,anBlZw==", body["annotated_image"])
	dets := body["detections"].([]any)
	require.Len(t, dets, 1)
	cat := dets[0].(map[string]any)
	assert.Equal(t, "cat", cat["class_name"])
	assert.Equal(t, 0.91, cat["confidence"])
	assert.Equal(t, []any{10.0, 10.0, 100.0, 100.0}, cat["bbox"])

	resp, body = s.postForm(t, "/api/chat", token, url.Values{"question": {"what animal is this?"}, "image_id": {"1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["response"], "cat")

	resp, body = s.get(t, "/api/images", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	images := body["images"].([]any)
	require.Len(t, images, 1)
	assert.Equal(t, float64(1), images[0].(map[string]any)["detection_count"])
}

func TestListImagesReportsEffectivePaging(t *testing.T) {
	s := newTestServer(t, 1<<20)
	token := s.signupAndLogin(t, "p@x.com")

	resp, body := s.get(t, "/api/images?limit=500&offset=-3", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(100), body["limit"])
	assert.Equal(t, float64(0), body["offset"])

	_, body = s.get(t, "/api/images", token)
	assert.Equal(t, float64(20), body["limit"])
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t, 1<<20)
	s.signupAndLogin(t, "b@x.com")

	resp, body := s.postForm(t, "/api/auth/signup", "", url.Values{"email": {"b@x.com"}, "password": {"other"}, "full_name": {"Other"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email already registered", body["detail"])

	resp, body = s.postForm(t, "/api/auth/login", "", url.Values{"username": {"b@x.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Incorrect email or password", body["detail"])
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))

	resp, _ = s.postForm(t, "/api/auth/signup", "", url.Values{"email": {"c@x.com"}, "password": {"pw"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.get(t, "/api/auth/me", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.get(t, "/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDetectErrors(t *testing.T) {
	s := newTestServer(t, 1024)
	token := s.signupAndLogin(t, "d@x.com")

	s.detector.fail(common.ErrBadInput)
	resp, _ := s.upload(t, token, "x.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s.detector.fail(common.ErrDetectionUnavailable)
	resp, body := s.upload(t, token, "x.jpg", []byte("img"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, body["detail"])

	s.detector.fail(nil)
	resp, _ = s.upload(t, token, "big.jpg", bytes.Repeat([]byte("x"), 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/detect", strings.NewReader("a=b"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = do(t, req)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	_, body = s.get(t, "/api/images", token)
	assert.Empty(t, body["images"], "failed uploads must not be stored")
}

func TestChatIsolation(t *testing.T) {
	s := newTestServer(t, 1<<20)
	tokens := []string{s.signupAndLogin(t, "u1@x.com"), s.signupAndLogin(t, "u2@x.com"), s.signupAndLogin(t, "u3@x.com")}
	imageIDs := make([]string, len(tokens))
	for i, tok := range tokens {
		resp, body := s.upload(t, tok, "a.jpg", []byte("img"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		imageIDs[i] = strconv.FormatInt(int64(body["image_id"].(float64)), 10)
	}

	for ti, tok := range tokens {
		for ii, id := range imageIDs {
			resp, body := s.postForm(t, "/api/chat", tok, url.Values{"question": {"q"}, "image_id": {id}})
			if ti == ii {
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			} else {
				assert.Equal(t, http.StatusNotFound, resp.StatusCode, "user %d image %d", ti, ii)
				assert.Equal(t, "Image not found", body["detail"])
			}
		}
	}

	resp, _ := s.postForm(t, "/api/chat", tokens[0], url.Values{"question": {"q"}, "image_id": {"abc"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp, _ = s.postForm(t, "/api/chat", tokens[0], url.Values{"image_id": {"1"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDetectionFeed(t *testing.T) {
	s := newTestServer(t, 1<<20)
	token := s.signupAndLogin(t, "feed@x.com")

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/ws?token=" + url.QueryEscape(token)
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	messages := make(chan []byte, 32)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(messages)
				return
			}
			messages <- msg
		}
	}()

	// Registration is asynchronous; retry the upload until an event arrives.
	var data []byte
	for attempt := 0; attempt < 20 && data == nil; attempt++ {
		resp, _ := s.upload(t, token, "cat.jpg", []byte("img"))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		select {
		case data = <-messages:
		case <-time.After(100 * time.Millisecond):
		}
	}
	require.NotNil(t, data, "no detection event received")

	var event service.DetectionEvent
	require.NoError(t, json.Unmarshal(data, &event))

	assert.NotZero(t, event.ImageID)
	require.Len(t, event.Detections, 1)
	assert.Equal(t, "cat", event.Detections[0].ClassName)
}

func TestDetectionFeedRequiresToken(t *testing.T) {
	s := newTestServer(t, 1<<20)

	_, resp, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/api/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMethods(t *testing.T) {
	s := newTestServer(t, 1<<20)

	resp, body := s.get(t, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(s.URL + "/api/detect")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
