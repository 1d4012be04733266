package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"visionchat/internal/common"
	"visionchat/internal/logger"
	"visionchat/internal/model"
)

type tokenMap map[string]*model.User

func (m tokenMap) CurrentUser(_ context.Context, token string) (*model.User, error) {
	if u, ok := m[token]; ok {
		return u, nil
	}
	return nil, common.ErrUnauthorized
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(UserFromContext(r.Context()).Email))
	})
}

func TestRequireAuth(t *testing.T) {
	alice := &model.User{ID: 1, Email: "alice@x.com"}
	var logs bytes.Buffer
	h := RequireAuth(tokenMap{"good": alice}, logger.NewWriterLogger(&logs))(echoUser())

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer good", "", http.StatusOK},
		{"lowercase scheme", "bearer good", "", http.StatusOK},
		{"query token", "", "?token=good", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", "", http.StatusUnauthorized},
		{"header wins over query", "Bearer bad", "?token=good", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "alice@x.com", rec.Body.String())
			} else {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
				assert.JSONEq(t, `{"detail":"Could not validate credentials"}`, rec.Body.String())
			}
		})
	}
}

func TestUserFromContext_Empty(t *testing.T) {
	assert.Nil(t, UserFromContext(context.Background()))
	u := &model.User{ID: 9}
	assert.Same(t, u, UserFromContext(WithUser(context.Background(), u)))
}

func TestRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	h := RequestLogger(logger.NewWriterLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/chat", nil))
	assert.Contains(t, logs.String(), "POST /api/chat 418")
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("allowed origin", func(t *testing.T) {
		h := CORS([]string{"http://app.test"})(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://app.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		h := CORS([]string{"http://app.test"})(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		h := CORS([]string{"*"})(next)
		req := httptest.NewRequest(http.MethodOptions, "/api/detect", nil)
		req.Header.Set("Origin", "http://any.test")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://any.test", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
