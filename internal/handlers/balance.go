package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
)

// BalanceTokener defines only the methods needed by this handler.
type BalanceTokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// WalletReader defines the interface that the repository must implement.
type WalletReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.WalletDB, error)
}

// WalletBalance represents one wallet's balances
// swagger:model WalletBalance
type WalletBalance struct {
	// Wallet identifier
	WalletID string `json:"wallet_id"`

	// Currency code
	// default: USD
	Currency string `json:"currency"`

	// Total balance including held funds
	// default: 100.00
	Balance string `json:"balance"`

	// Spendable balance
	// default: 75.00
	AvailableBalance string `json:"available_balance"`

	// Funds reserved by holds
	// default: 25.00
	PendingBalance string `json:"pending_balance"`

	// Wallet status
	// default: active
	Status string `json:"status"`
}

// BalanceResponse represents a successful response with the user's wallets
// swagger:model BalanceResponse
type BalanceResponse struct {
	// The user's wallets
	Wallets []WalletBalance `json:"wallets"`
}

// NewGetBalanceHandler returns an HTTP handler for fetching the caller's wallet balances.
// @Summary Get wallet balances
// @Description Returns all wallets of the authenticated user with total, available and pending balances
// @Tags wallet
// @Produce json
// @Success 200 {object} handlers.BalanceResponse "Wallet balances"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /balance [get]
// @Security BearerAuth
func NewGetBalanceHandler(
	walletReader WalletReader,
	tokenGetter BalanceTokener,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, ok := authorize(ctx, w, r, tokenGetter.GetTokenFromRequest, tokenGetter.GetClaims)
		if !ok {
			return
		}

		wallets, err := walletReader.GetByUserID(ctx, claims.UserID)
		if err != nil {
			logger.Log.Errorw("failed to get balance", "userID", claims.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		resp := BalanceResponse{Wallets: make([]WalletBalance, 0, len(wallets))}
		for _, wallet := range wallets {
			resp.Wallets = append(resp.Wallets, WalletBalance{
				WalletID:         wallet.WalletID.String(),
				Currency:         wallet.Currency,
				Balance:          wallet.Balance.String(),
				AvailableBalance: wallet.AvailableBalance.String(),
				PendingBalance:   wallet.PendingBalance.String(),
				Status:           string(wallet.Status),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
