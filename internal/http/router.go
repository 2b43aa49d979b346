package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter builds the admin API.
func NewRouter(h *SiteHandler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(recoverJSON(logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(requestLogger(logger))

	r.Get("/healthz", h.Health)
	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/workbook/template", h.Template)

		api.Route("/site", func(site chi.Router) {
			site.Get("/", h.GetSite)
			site.Post("/import", h.Import)
			site.Post("/import/remote", h.ImportRemote)
			site.Get("/validate", h.Validate)
			site.Get("/workbook", h.Workbook)
			site.Post("/export", h.Export)
			site.Post("/bootstrap/{gid}/{lid}", h.Bootstrap)

			site.Route("/garages/{gid}/levels/{lid}/devices/{did}", func(dev chi.Router) {
				dev.Post("/export", h.ExportDevice)
				dev.Put("/placement", h.PlaceDevice)
				dev.Delete("/placement", h.UnplaceDevice)
			})
		})
	})
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startedAt := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", time.Since(startedAt).Milliseconds()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func recoverJSON(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					if recovered == http.ErrAbortHandler {
						panic(recovered)
					}
					logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", r.URL.Path))
					writeJSON(w, http.StatusInternalServerError, Fail("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
