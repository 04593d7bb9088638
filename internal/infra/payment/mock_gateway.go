package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecstore/internal/usecase"

	"github.com/google/uuid"
)

var ErrInvalidAmount = errors.New("payment: amount must be at least 1 cent")

// MockGateway は外部決済を呼ばずにインテントを返す
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) CreateIntent(ctx context.Context, req usecase.PaymentIntentRequest) (usecase.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return usecase.PaymentIntent{}, err
	}
	if req.AmountCents < 1 {
		return usecase.PaymentIntent{}, ErrInvalidAmount
	}
	if strings.TrimSpace(req.Currency) == "" {
		return usecase.PaymentIntent{}, errors.New("payment: currency is required")
	}

	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return usecase.PaymentIntent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_%s", id, strings.ReplaceAll(uuid.NewString(), "-", "")),
	}, nil
}

var _ usecase.PaymentGateway = (*MockGateway)(nil)
