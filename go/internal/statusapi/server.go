package statusapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/a1ctf/gamesync/go/internal/game/judge"
	"github.com/a1ctf/gamesync/go/internal/game/session"
	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Session is the read model and command surface served over HTTP.
type Session interface {
	Snapshot() session.Snapshot
	Notices() session.NoticesView
	MarkNoticesRead()
	Challenges() session.ChallengesView
	SelectChallenge(challengeID int64) error
	Scoreboard() *models.ScoreboardSnapshot
	OpenForm(challengeID int64) (judge.Form, error)
	FocusForm(challengeID int64) (judge.Form, error)
	Form(challengeID int64) (judge.Form, error)
	SubmitFlag(challengeID int64, flag string) error
	DismissForm(challengeID int64) error
}

// Server serves the local status API.
type Server struct {
	srv *http.Server
}

// New builds the server for sess listening on addr. hub may be nil.
func New(addr string, sess Session, hub *Hub) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           Handler(sess, hub),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Handler returns the full middleware stack and routes for sess. The event
// stream route is only mounted with a hub.
func Handler(sess Session, hub *Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	addRoutes(r, sess, hub)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(r), &http2.Server{})
}

// Run serves until Shutdown is called.
func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	log.Info().Str("addr", s.srv.Addr).Msg("status api listening")
	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		}()

		next.ServeHTTP(ww, r)
	})
}
