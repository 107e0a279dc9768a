package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// DisputeTokener defines only the methods needed by these handlers.
type DisputeTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// Disputer defines the interface that the service must implement.
type Disputer interface {
	Open(ctx context.Context, transactionID, userID uuid.UUID, reason string) (*models.DisputeDB, error)
	StartInvestigation(ctx context.Context, disputeID uuid.UUID) (*models.DisputeDB, error)
	Resolve(ctx context.Context, disputeID uuid.UUID, resolution string) (*models.DisputeDB, error)
	Reject(ctx context.Context, disputeID uuid.UUID, resolution string) (*models.DisputeDB, error)
}

// OpenDisputeRequest represents the JSON body for opening a dispute
// swagger:model OpenDisputeRequest
type OpenDisputeRequest struct {
	// Disputed transaction identifier
	// required: true
	TransactionID string `json:"transaction_id"`

	// Why the transaction is disputed
	// required: true
	Reason string `json:"reason"`
}

// ResolveDisputeRequest represents the JSON body for closing a dispute
// swagger:model ResolveDisputeRequest
type ResolveDisputeRequest struct {
	// Close the dispute in the customer's favor
	// default: true
	Accept bool `json:"accept"`

	// Resolution notes
	Resolution string `json:"resolution"`
}

// DisputeResponse represents a dispute in API responses
// swagger:model DisputeResponse
type DisputeResponse struct {
	// Dispute identifier
	DisputeID string `json:"dispute_id"`

	// Disputed transaction identifier
	TransactionID string `json:"transaction_id"`

	// Dispute status
	// default: open
	Status string `json:"status"`

	// Why the transaction is disputed
	Reason string `json:"reason"`

	// Resolution notes
	Resolution string `json:"resolution,omitempty"`

	// Resolution time, RFC 3339
	ResolvedAt string `json:"resolved_at,omitempty"`
}

func toDisputeResponse(d *models.DisputeDB) DisputeResponse {
	resp := DisputeResponse{
		DisputeID:     d.DisputeID.String(),
		TransactionID: d.TransactionID.String(),
		Status:        string(d.Status),
		Reason:        d.Reason,
	}
	if d.Resolution != nil {
		resp.Resolution = *d.Resolution
	}
	if d.ResolvedAt != nil {
		resp.ResolvedAt = d.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

// NewOpenDisputeHandler returns an HTTP handler for disputing a transaction.
// @Summary Open a dispute
// @Description Raises a dispute against a completed transaction the caller participated in, within the dispute window.
// @Tags disputes
// @Accept json
// @Produce json
// @Param request body handlers.OpenDisputeRequest true "Dispute Request"
// @Success 201 {object} handlers.DisputeResponse "Dispute opened"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 403 {object} handlers.ErrorResponse "Not a transaction participant"
// @Failure 409 {object} handlers.ErrorResponse "Transaction already disputed"
// @Failure 422 {object} handlers.ErrorResponse "Dispute window expired"
// @Router /disputes [post]
// @Security BearerAuth
func NewOpenDisputeHandler(
	svc Disputer,
	tokenGetter DisputeTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims)
		if !ok {
			return
		}

		var req OpenDisputeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode dispute request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		transactionID, err := uuid.Parse(req.TransactionID)
		if err != nil || req.Reason == "" {
			writeError(w, http.StatusBadRequest, "Transaction id and reason are required")
			return
		}

		dispute, err := svc.Open(ctx, transactionID, claims.UserID, req.Reason)
		if err != nil {
			logger.Log.Errorw("failed to open dispute", "transaction_id", transactionID, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusCreated, toDisputeResponse(dispute))
	}
}

// NewResolveDisputeHandler returns an HTTP handler for closing a dispute.
// @Summary Resolve or reject a dispute
// @Description Closes an open or investigated dispute, in the customer's favor or not.
// @Tags disputes
// @Accept json
// @Produce json
// @Param id path string true "Dispute ID"
// @Param request body handlers.ResolveDisputeRequest true "Resolution"
// @Success 200 {object} handlers.DisputeResponse "Dispute closed"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Dispute not found"
// @Failure 409 {object} handlers.ErrorResponse "Dispute already closed"
// @Router /disputes/{id}/resolve [post]
// @Security BearerAuth
func NewResolveDisputeHandler(
	svc Disputer,
	tokenGetter DisputeTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if _, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims); !ok {
			return
		}

		disputeID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dispute id")
			return
		}

		var req ResolveDisputeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Log.Errorw("failed to decode resolution request", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var dispute *models.DisputeDB
		if req.Accept {
			dispute, err = svc.Resolve(ctx, disputeID, req.Resolution)
		} else {
			dispute, err = svc.Reject(ctx, disputeID, req.Resolution)
		}
		if err != nil {
			logger.Log.Errorw("failed to close dispute", "dispute_id", disputeID, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, toDisputeResponse(dispute))
	}
}

// NewInvestigateDisputeHandler returns an HTTP handler for starting a dispute investigation.
// @Summary Start dispute investigation
// @Description Moves an open dispute into the investigating state.
// @Tags disputes
// @Produce json
// @Param id path string true "Dispute ID"
// @Success 200 {object} handlers.DisputeResponse "Investigation started"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 404 {object} handlers.ErrorResponse "Dispute not found"
// @Router /disputes/{id}/investigate [post]
// @Security BearerAuth
func NewInvestigateDisputeHandler(
	svc Disputer,
	tokenGetter DisputeTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if _, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims); !ok {
			return
		}

		disputeID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dispute id")
			return
		}

		dispute, err := svc.StartInvestigation(ctx, disputeID)
		if err != nil {
			logger.Log.Errorw("failed to start investigation", "dispute_id", disputeID, "error", err)
			status, msg := statusForServiceError(err)
			writeError(w, status, msg)
			return
		}

		writeJSON(w, http.StatusOK, toDisputeResponse(dispute))
	}
}
