// Package rest provides HTTP handlers for order-related operations.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	ordererrors "github.com/ordertrack/ordertrack/internal/errors"
	"github.com/ordertrack/ordertrack/internal/service"
	"github.com/ordertrack/ordertrack/pkg/web"
)

type Handler struct {
	service  service.OrderService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new instance of Handler with the provided service.
func NewHandler(service service.OrderService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the order service.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/owner/{owner}", h.GetByOwner)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Put("/status", h.UpdateStatus)

			r.Route("/items", func(r chi.Router) {
				r.Post("/", h.AddItem)
				r.Delete("/", h.Clear)
				r.Put("/{itemID}", h.UpdateItemQuantity)
				r.Delete("/{itemID}", h.RemoveItem)
			})
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// Create handles the creation of a new order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var dto service.OrderCreateDto
	if !h.decodeAndValidate(w, r, mLogger, &dto) {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to create order", "owner", dto.Owner)
	created, err := h.service.Create(r.Context(), dto)
	if err != nil {
		if errors.Is(err, ordererrors.ErrOwnerConflict) {
			mLogger.WarnContext(r.Context(), "Owner already has an active order", "owner", dto.Owner)
			web.RespondError(w, mLogger, http.StatusConflict, fmt.Sprintf("Owner %s already has an active order", dto.Owner))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error creating order", "owner", dto.Owner, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to create order")
		return
	}
	mLogger.InfoContext(r.Context(), "Order created successfully", slog.Int64("ID", created.ID))
	web.RespondJSON(w, mLogger, http.StatusCreated, created)
}

// List retrieves a snapshot of all orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	list, err := h.service.List(r.Context())
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving order list", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved order list", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// Get retrieves an order by its ID.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParsePathID(w, r, mLogger, "id")
	if !ok {
		return
	}

	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// GetByOwner retrieves the live order for an owner.
func (h *Handler) GetByOwner(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	owner := chi.URLParam(r, "owner")
	if owner == "" {
		web.RespondError(w, mLogger, http.StatusBadRequest, "Owner is required")
		return
	}

	found, err := h.service.GetByOwner(r.Context(), owner)
	if err != nil {
		if errors.Is(err, ordererrors.ErrOrderNotFound) {
			mLogger.WarnContext(r.Context(), "No order for owner", "owner", owner)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("No order for owner %s", owner))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving order by owner", "owner", owner, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to retrieve order")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// AddItem adds a line item to an order.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParsePathID(w, r, mLogger, "id")
	if !ok {
		return
	}
	var dto service.ItemCreateDto
	if !h.decodeAndValidate(w, r, mLogger, &dto) {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to add item", "ID", id, "productRef", dto.ProductRef)
	updated, err := h.service.AddItem(r.Context(), id, dto)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	mLogger.InfoContext(r.Context(), "Item added successfully", slog.Int64("ID", id))
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// UpdateItemQuantity sets a line item's quantity; zero removes the item.
func (h *Handler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParsePathID(w, r, mLogger, "id")
	if !ok {
		return
	}
	itemID, ok := web.ParsePathID(w, r, mLogger, "itemID")
	if !ok {
		return
	}
	var dto service.ItemQuantityDto
	if !h.decodeAndValidate(w, r, mLogger, &dto) {
		return
	}

	updated, err := h.service.UpdateItemQuantity(r.Context(), id, itemID, dto.Quantity)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	mLogger.InfoContext(r.Context(), "Item quantity updated", slog.Int64("ID", id), slog.Int64("itemID", itemID))
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// RemoveItem removes a line item from an order.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParsePathID(w, r, mLogger, "id")
	if !ok {
		return
	}
	itemID, ok := web.ParsePathID(w, r, mLogger, "itemID")
	if !ok {
		return
	}

	updated, err := h.service.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	mLogger.InfoContext(r.Context(), "Item removed", slog.Int64("ID", id), slog.Int64("itemID", itemID))
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// Clear empties an order's items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParsePathID(w, r, mLogger, "id")
	if !ok {
		return
	}

	cleared, err := h.service.Clear(r.Context(), id)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error clearing order", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to clear order with ID %d", id))
		return
	}
	if !cleared {
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %d not found", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Order cleared", slog.Int64("ID", id))
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus applies a status transition to an order.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParsePathID(w, r, mLogger, "id")
	if !ok {
		return
	}
	var dto service.StatusUpdateDto
	if !h.decodeAndValidate(w, r, mLogger, &dto) {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to update status", "ID", id, "status", dto.Status)
	updated, err := h.service.UpdateStatus(r.Context(), id, dto.Status)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, id)
		return
	}
	mLogger.InfoContext(r.Context(), "Order status updated", slog.Int64("ID", id), slog.String("status", string(updated.Status)))
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// Delete permanently removes an order.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParsePathID(w, r, mLogger, "id")
	if !ok {
		return
	}

	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error deleting order", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to delete order with ID %d", id))
		return
	}
	if !deleted {
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %d not found", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Order deleted", slog.Int64("ID", id))
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// decodeAndValidate decodes the request body into dto and validates it.
// On failure it writes the error response and returns false.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, dto any) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dto); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				// fieldErr.Tag() returns "required", "min", etc.
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return false
		}
		mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondServiceError maps service errors onto HTTP status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error, id int64) {
	switch {
	case errors.Is(err, ordererrors.ErrOrderNotFound):
		mLogger.WarnContext(r.Context(), "Order not found", "ID", id)
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %d not found", id))
	case errors.Is(err, ordererrors.ErrItemNotFound):
		mLogger.WarnContext(r.Context(), "Order item not found", "ID", id)
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Item not found in order %d", id))
	case errors.Is(err, ordererrors.ErrInvalidQuantity),
		errors.Is(err, ordererrors.ErrInvalidStatus),
		errors.Is(err, ordererrors.ErrTransitionNotAllowed):
		mLogger.WarnContext(r.Context(), "Invalid order mutation", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, err.Error())
	default:
		mLogger.ErrorContext(r.Context(), "Error processing order", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to process order with ID %d", id))
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
