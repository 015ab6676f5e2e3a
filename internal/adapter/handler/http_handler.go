package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rl1809/blood-service/internal/core/access"
	"github.com/rl1809/blood-service/internal/core/domain"
	"github.com/rl1809/blood-service/internal/core/service"
	"github.com/rl1809/blood-service/internal/observability"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderRole      = "X-Role"
	HeaderRequestID = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

type HTTPHandler struct {
	subscriptions *service.SubscriptionService
	inventory     *service.InventoryService
	demands       *service.DemandService
	logger        *zap.Logger
	metrics       *observability.Metrics
}

type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func NewHTTPHandler(
	subscriptions *service.SubscriptionService,
	inventory *service.InventoryService,
	demands *service.DemandService,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		subscriptions: subscriptions,
		inventory:     inventory,
		demands:       demands,
		logger:        logger.With(zap.String("component", "http_server")),
		metrics:       metrics,
	}
}

// Router mounts every route. Routes under /blood require the identity
// headers; /blood/admin routes additionally require the admin role.
func (h *HTTPHandler) Router() http.Handler {
	mux := http.NewServeMux()

	h.handle(mux, "GET /blood/user/availability", h.user(h.ListInventory))
	h.handle(mux, "GET /blood/user/demands", h.user(h.ListDemands))
	h.handle(mux, "POST /blood/user/subscribe", h.user(h.Subscribe))
	h.handle(mux, "GET /blood/user/subscriptions", h.user(h.ListSubscriptions))

	h.handle(mux, "POST /blood/admin/blood", h.admin(h.UpsertInventory))
	h.handle(mux, "GET /blood/admin/blood", h.admin(h.ListInventory))
	h.handle(mux, "POST /blood/admin/demand", h.admin(h.CreateDemand))
	h.handle(mux, "GET /blood/admin/demands", h.admin(h.ListDemands))

	h.handle(mux, "GET /health", h.HealthCheck)

	return mux
}

func (h *HTTPHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var sub domain.Subscription
	if !h.decodeBody(w, r, &sub) {
		return
	}

	// The subscriber is always the caller, never the body.
	id, _ := access.FromContext(r.Context())
	sub.UserID = id.UserID

	stored, err := h.subscriptions.Subscribe(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Subscription added", ID: stored.ID})
}

func (h *HTTPHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	id, _ := access.FromContext(r.Context())

	subs, err := h.subscriptions.ListByUser(r.Context(), id.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, subs)
}

func (h *HTTPHandler) UpsertInventory(w http.ResponseWriter, r *http.Request) {
	var rec domain.InventoryRecord
	if !h.decodeBody(w, r, &rec) {
		return
	}

	stored, _, err := h.inventory.Upsert(r.Context(), rec)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Blood inventory added/updated", ID: stored.ID})
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	records, err := h.inventory.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *HTTPHandler) CreateDemand(w http.ResponseWriter, r *http.Request) {
	var demand domain.Demand
	if !h.decodeBody(w, r, &demand) {
		return
	}

	stored, err := h.demands.Create(r.Context(), demand)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Demand added", ID: stored.ID})
}

func (h *HTTPHandler) ListDemands(w http.ResponseWriter, r *http.Request) {
	demands, err := h.demands.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, demands)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Blood Service running"})
}

func (h *HTTPHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Detail: "request body too large"})
			return false
		}

		message := "invalid request body"
		if errors.Is(err, domain.ErrValidation) {
			message = err.Error()
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: message})
		return false
	}
	return true
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, access.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = "Unauthorized"
	case errors.Is(err, access.ErrForbidden):
		status = http.StatusForbidden
		message = "Access denied"
	default:
		observability.FromContext(r.Context()).Error("store_failure", zap.Error(err))
	}

	writeJSON(w, status, ErrorResponse{Detail: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
