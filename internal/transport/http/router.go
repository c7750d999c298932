// Package httptransport is the thin HTTP layer over the verification
// pipeline. Handlers decode, delegate to domain services, and translate
// domain errors; business logic stays out of this package.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kycflow/internal/audit"
	"kycflow/internal/bulk"
	"kycflow/internal/crypto"
	"kycflow/internal/health"
	"kycflow/internal/linktoken"
	"kycflow/internal/notify"
	"kycflow/internal/queue"
	"kycflow/internal/storage"
	"kycflow/pkg/platform/middleware/metadata"
)

type Handler struct {
	vault    *crypto.Vault
	queue    *queue.Queue
	bulk     *bulk.Controller
	monitor  *health.Monitor
	trail    *audit.Trail
	notifier *notify.StoreNotifier
	links    *linktoken.Service
	entries  storage.EntryStore
	logger   *slog.Logger
}

type Option func(*Handler)

// WithLinkService enables the self-service link endpoints. Without it
// they answer not_configured.
func WithLinkService(links *linktoken.Service) Option {
	return func(h *Handler) { h.links = links }
}

func WithNotifier(n *notify.StoreNotifier) Option {
	return func(h *Handler) { h.notifier = n }
}

func NewHandler(vault *crypto.Vault, q *queue.Queue, b *bulk.Controller, monitor *health.Monitor, trail *audit.Trail, entries storage.EntryStore, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		vault:   vault,
		queue:   q,
		bulk:    b,
		monitor: monitor,
		trail:   trail,
		entries: entries,
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// NewRouter mounts every public endpoint.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metadata.ClientMetadata)
	r.Use(chimw.Recoverer)

	r.Post("/verifications", h.handleEnqueue)
	r.Get("/verifications/{itemID}", h.handleItemStatus)
	r.Get("/queue/stats", h.handleQueueStats)

	r.Post("/bulk", h.handleBulkStart)
	r.Post("/bulk/{jobID}/pause", h.handleBulkPause)
	r.Post("/bulk/{jobID}/resume", h.handleBulkResume)
	r.Get("/bulk/{jobID}/progress", h.handleBulkProgress)

	r.Get("/users/{userID}/verifications", h.handleUserItems)
	r.Get("/users/{userID}/notifications", h.handleUserNotifications)
	r.Get("/users/{userID}/audit", h.handleUserAudit)

	r.Get("/alerts", h.handleAlerts)
	r.Post("/alerts/{alertID}/acknowledge", h.handleAcknowledge)
	r.Get("/health/registries", h.handleRegistryHealth)
	r.Get("/healthz", h.handleLiveness)

	r.Post("/links", h.handleIssueLink)
	r.Post("/links/verify", h.handleLinkVerify)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (h *Handler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
