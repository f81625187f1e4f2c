package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/backoffice/internal/config"
	"github.com/kiwari-pos/backoffice/internal/enum"
	"github.com/kiwari-pos/backoffice/internal/handler"
	mw "github.com/kiwari-pos/backoffice/internal/middleware"
	"github.com/kiwari-pos/backoffice/internal/ws"
	"github.com/rs/zerolog"
)

// Services groups what the HTTP layer calls into. Now is the report clock;
// nil means time.Now.
type Services struct {
	Orders  handler.OrderServicer
	Reports handler.ReportServicer
	Hub     *ws.Hub
	Now     func() time.Time
}

// New creates a Chi router with all application routes wired up.
// Every /branches/{bid} route is authenticated and scoped to the token's
// branch; reports additionally require a manager or owner.
func New(cfg *config.Config, svc Services, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/branches/{bid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(svc.Hub, cfg.JWTSecret, w, r)
	})

	orderHandler := handler.NewOrderHandler(svc.Orders, cfg.Location(), logger)
	reportsHandler := handler.NewReportsHandler(svc.Reports, logger, svc.Now)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/branches/{bid}", func(r chi.Router) {
			r.Use(mw.RequireBranch)

			r.Route("/orders", orderHandler.RegisterRoutes)
			r.Route("/cart", orderHandler.RegisterCartRoutes)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
				r.Route("/reports", reportsHandler.RegisterRoutes)
			})
		})
	})

	logger.Debug().Msg("router initialized")
	return r
}
