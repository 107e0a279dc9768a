package facades

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-wallet-ledger/internal/logger"
	"github.com/sbilibin2017/gw-wallet-ledger/internal/money"
)

// ProviderName identifies the external payment rail a flow settles over.
type ProviderName string

const (
	ProviderInternal    ProviderName = "internal"
	ProviderFlutterwave ProviderName = "flutterwave"
	ProviderPaystack    ProviderName = "paystack"
)

// ProviderResult is what a payment provider reports back for one settlement.
type ProviderResult struct {
	Success           bool
	ProviderReference string
	Fee               money.Money
}

// InternalProviderFacade settles deposits and withdrawals on the internal
// rail: no network hop, instant confirmation, a flat provider fee. External
// rails plug in behind the same Process signature.
type InternalProviderFacade struct {
	name ProviderName
	fee  money.Money
}

func NewInternalProviderFacade(fee money.Money) *InternalProviderFacade {
	return &InternalProviderFacade{name: ProviderInternal, fee: fee}
}

// Process confirms a settlement on the internal rail.
func (f *InternalProviderFacade) Process(ctx context.Context, amount money.Money, currency, reference string) (ProviderResult, error) {
	if ctx.Err() != nil {
		return ProviderResult{}, ctx.Err()
	}
	if !amount.IsPositive() {
		return ProviderResult{}, fmt.Errorf("provider %s: non-positive amount %s", f.name, amount)
	}

	result := ProviderResult{
		Success:           true,
		ProviderReference: fmt.Sprintf("%s-%s", f.name, uuid.New()),
		Fee:               f.fee,
	}

	logger.Log.Infow("provider settlement confirmed",
		"provider", f.name,
		"amount", amount,
		"currency", currency,
		"reference", reference,
		"provider_reference", result.ProviderReference,
	)

	return result, nil
}
