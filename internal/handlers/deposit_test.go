package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/jwt"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/models"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/services"
)

func TestDepositHandler(t *testing.T) {
	userID := uuid.New()
	validToken := "valid-token"
	walletID := uuid.New()

	validBody := DepositRequest{
		WalletID:  walletID.String(),
		Amount:    "100.00",
		Currency:  "USD",
		Reference: "topup-1",
	}

	tests := []struct {
		name               string
		requestBody        any
		setupMocks         func(mockSvc *MockDepositor, mockTokener *MockDepositTokener)
		expectedStatusCode int
	}{
		{
			name:        "successful deposit",
			requestBody: validBody,
			setupMocks: func(mockSvc *MockDepositor, mockTokener *MockDepositTokener) {
				mockTokener.EXPECT().GetTokenFromRequest(gomock.Any(), gomock.Any()).Return(validToken, nil)
				mockTokener.EXPECT().GetClaims(gomock.Any(), validToken).Return(&jwt.Claims{UserID: userID}, nil)
				mockSvc.EXPECT().Deposit(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ any, op models.OperationRequest) (*models.TransactionDB, error) {
						assert.Equal(t, models.TransactionTypeDeposit, op.Type)
						assert.Nil(t, op.SourceWalletID)
						assert.Equal(t, walletID, *op.DestWalletID)
						assert.Equal(t, "100.00", op.Amount.String())
						return completedTestTransaction(models.TransactionTypeDeposit, "100.00"), nil
					})
			},
			expectedStatusCode: http.StatusOK,
		},
		{
			name: "invalid amount",
			requestBody: DepositRequest{
				WalletID: walletID.String(),
				Amount:   "one hundred",
			},
			setupMocks: func(mockSvc *MockDepositor, mockTokener *MockDepositTokener) {
				mockTokener.EXPECT().GetTokenFromRequest(gomock.Any(), gomock.Any()).Return(validToken, nil)
				mockTokener.EXPECT().GetClaims(gomock.Any(), validToken).Return(&jwt.Claims{UserID: userID}, nil)
			},
			expectedStatusCode: http.StatusBadRequest,
		},
		{
			name:        "unauthorized",
			requestBody: validBody,
			setupMocks: func(mockSvc *MockDepositor, mockTokener *MockDepositTokener) {
				mockTokener.EXPECT().GetTokenFromRequest(gomock.Any(), gomock.Any()).Return("", http.ErrNoCookie)
			},
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:        "provider failure",
			requestBody: validBody,
			setupMocks: func(mockSvc *MockDepositor, mockTokener *MockDepositTokener) {
				mockTokener.EXPECT().GetTokenFromRequest(gomock.Any(), gomock.Any()).Return(validToken, nil)
				mockTokener.EXPECT().GetClaims(gomock.Any(), validToken).Return(&jwt.Claims{UserID: userID}, nil)
				mockSvc.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, services.ErrProviderFailure)
			},
			expectedStatusCode: http.StatusBadGateway,
		},
		{
			name:        "wallet not active",
			requestBody: validBody,
			setupMocks: func(mockSvc *MockDepositor, mockTokener *MockDepositTokener) {
				mockTokener.EXPECT().GetTokenFromRequest(gomock.Any(), gomock.Any()).Return(validToken, nil)
				mockTokener.EXPECT().GetClaims(gomock.Any(), validToken).Return(&jwt.Claims{UserID: userID}, nil)
				mockSvc.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, services.ErrWalletNotActive)
			},
			expectedStatusCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockTokener := NewMockDepositTokener(ctrl)
			mockSvc := NewMockDepositor(ctrl)
			tt.setupMocks(mockSvc, mockTokener)

			bodyBytes, _ := json.Marshal(tt.requestBody)
			req := httptest.NewRequest(http.MethodPost, "/wallet/deposit", bytes.NewReader(bodyBytes))
			rr := httptest.NewRecorder()

			NewDepositHandler(mockSvc, mockTokener).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatusCode, rr.Code)

			if tt.expectedStatusCode == http.StatusOK {
				var resp DepositResponse
				assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, "Account topped up successfully", resp.Message)
			}
		})
	}
}
