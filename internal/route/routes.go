package route

import (
	"net/http"

	"visionchat/internal/handler"
	"visionchat/internal/logger"
	"visionchat/internal/middleware"
	"visionchat/internal/service"
	"visionchat/internal/service/websocket"
)

// Services groups what the handlers need.
type Services struct {
	Auth        *service.AuthService
	Detection   *service.DetectionService
	Chat        *service.ChatService
	Images      *service.ImageService
	Hub         *websocket.HubService
	MaxUpload   int64
	CORSOrigins []string
}

// SetupRoutes registers the API endpoints and wraps the mux with CORS and
// request logging. Routes under protected require a bearer token.
func SetupRoutes(s Services, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()
	protected := middleware.RequireAuth(s.Auth, logger)

	mux.HandleFunc("GET /healthz", handler.HealthHandler(logger))

	// Auth endpoints
	mux.HandleFunc("POST /api/auth/login", handler.LoginHandler(s.Auth, logger))
	mux.HandleFunc("POST /api/auth/signup", handler.SignupHandler(s.Auth, logger))
	mux.Handle("GET /api/auth/me", protected(handler.MeHandler(logger)))

	// Detection and chat
	mux.Handle("POST /api/detect", protected(handler.DetectHandler(s.Detection, s.MaxUpload, logger)))
	mux.Handle("POST /api/chat", protected(handler.ChatHandler(s.Chat, logger)))
	mux.Handle("GET /api/images", protected(handler.ListImagesHandler(s.Images, logger)))

	if s.Hub != nil {
		mux.Handle("GET /api/ws", protected(handler.DetectionFeedHandler(s.Hub, s.CORSOrigins, logger)))
	}

	return middleware.CORS(s.CORSOrigins)(middleware.RequestLogger(logger)(mux))
}
