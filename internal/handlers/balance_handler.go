package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/paystream/ledger/internal/models"
	"github.com/paystream/ledger/internal/services"
)

const maxBodyBytes = 1_048_576 // 1 MB

// BalanceHandler exposes the command surface over HTTP. It translates
// JSON requests into commands against the single-writer command service
// and domain errors into status codes.
type BalanceHandler struct {
	commands  *services.BalanceCommandService
	events    *services.EventService
	validator *services.ValidationHelper
}

func NewBalanceHandler(commands *services.BalanceCommandService, events *services.EventService) *BalanceHandler {
	return &BalanceHandler{
		commands:  commands,
		events:    events,
		validator: services.NewValidationHelper(),
	}
}

type createBalanceRequest struct {
	ID *models.BalanceID `json:"id" validate:"required"`
}

type moveBalanceRequest struct {
	ID     *models.BalanceID `json:"id" validate:"required"`
	Amount *models.Amount    `json:"amount" validate:"required"`
}

type transferBalanceRequest struct {
	FromID *models.BalanceID `json:"from_id" validate:"required"`
	ToID   *models.BalanceID `json:"to_id" validate:"required"`
	Amount *models.Amount    `json:"amount" validate:"required"`
}

// CreateBalance handles POST /balance.
func (h *BalanceHandler) CreateBalance(w http.ResponseWriter, r *http.Request) {
	var req createBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.commands.CreateBalance(*req.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

// Deposit handles POST /balance/deposit.
func (h *BalanceHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req moveBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.commands.Deposit(*req.ID, *req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Withdraw handles POST /balance/withdraw.
func (h *BalanceHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req moveBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.commands.Withdraw(*req.ID, *req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Transfer handles POST /balance/transfer.
func (h *BalanceHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.commands.Transfer(*req.FromID, *req.ToID, *req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetBalance handles GET /balance?id=. The cache is consulted first; a
// miss falls through to the authoritative in-memory ledger.
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		services.SendErrorResponse(w, "Invalid or missing id parameter", http.StatusBadRequest, nil)
		return
	}
	if balance, ok := h.commands.LookupCached(id); ok {
		writeJSON(w, http.StatusOK, balance)
		return
	}
	balance, err := h.commands.GetBalance(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// GetEvents handles GET /balance-events?offset=&limit=. Offset defaults to
// 1 and limit to 10.
func (h *BalanceHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	offset := uint64(1)
	limit := uint64(10)
	if raw := r.URL.Query().Get("offset"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			services.SendErrorResponse(w, "Invalid offset parameter", http.StatusBadRequest, nil)
			return
		}
		offset = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			services.SendErrorResponse(w, "Invalid limit parameter", http.StatusBadRequest, nil)
			return
		}
		limit = v
	}
	events, err := h.events.ReadEvents(offset, limit)
	if err != nil {
		log.Printf("[HANDLER] failed to read events: %v", err)
		services.SendErrorResponse(w, "Failed to read events", http.StatusInternalServerError, nil)
		return
	}
	if events == nil {
		events = []services.EventData{}
	}
	writeJSON(w, http.StatusOK, events)
}

// decode reads, parses and validates a JSON request body. It writes the
// error response itself and reports whether the request may proceed.
func (h *BalanceHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDomainError(w http.ResponseWriter, err error) {
	var (
		alreadyExists *models.AlreadyExistsError
		notFound      *models.NotFoundError
		insufficient  *models.InsufficientFundsError
		overflow      *models.OverflowError
	)
	switch {
	case errors.As(err, &alreadyExists):
		services.SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.As(err, &notFound):
		services.SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	case errors.As(err, &insufficient), errors.As(err, &overflow):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	default:
		log.Printf("[HANDLER] command failed: %v", err)
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}
