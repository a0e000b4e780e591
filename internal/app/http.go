package app

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter serves:
//
//	GET /       plain text greeting
//	GET /users  JSON array of user names
//	GET /ws     WebSocket answering "get_users"
func NewRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Hello World!"))
	})
	r.Get("/users", svc.handleUsers)
	r.Get("/ws", svc.handleWebSocket)
	return r
}

func (s *Service) handleUsers(w http.ResponseWriter, r *http.Request) {
	names, err := s.UserNames(r.Context())
	if err != nil {
		// store errors never reach the client
		s.logger.Error("list users", "err", err, "request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
