package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/api/handler"
	apimw "github.com/notifyhub/delivery-queue/internal/api/middleware"
	"github.com/notifyhub/delivery-queue/internal/processor"
	"github.com/notifyhub/delivery-queue/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.QueueService,
	proc *processor.Processor,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	// Recoverer turns handler panics into 500s; RealIP trusts the
	// forwarding headers; request bodies are capped at 1 MB.
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	qh := handler.NewQueueHandler(svc, logger)
	sh := handler.NewStatsHandler(svc)
	ph := handler.NewProcessHandler(proc, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Queue — /batch must be registered before /{id} so chi does not
		// treat the literal string "batch" as an ID.
		r.Post("/queue/batch", qh.EnqueueBatch)
		r.Post("/queue", qh.Enqueue)
		r.Get("/queue/{id}", qh.GetByID)

		// Processing trigger
		r.Post("/process", ph.Trigger)

		// Stats rollups
		r.Get("/stats", sh.Stats)
		r.Get("/batches/{id}/stats", sh.BatchStats)
	})

	return r
}
