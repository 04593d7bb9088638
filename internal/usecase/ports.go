package usecase

import (
	"context"
	"time"

	"ecstore/internal/domain/model"

	"github.com/shopspring/decimal"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// 外部決済サービス
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error)
}

type PaymentIntentRequest struct {
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// 注文イベントの送信先
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, ev OrderEvent) error
	PublishOrderPaid(ctx context.Context, ev OrderEvent) error
}

type OrderEvent struct {
	OrderID       int64            `json:"order_id"`
	UserID        int64            `json:"user_id"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Items         []OrderEventItem `json:"items,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

type OrderEventItem struct {
	ProductID       *int64          `json:"product_id"`
	Quantity        int64           `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// 同じキーの注文を二重に作らない
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

// 商品詳細の読み取りキャッシュ
type ProductCache interface {
	Get(ctx context.Context, id int64) (model.Product, bool, error)
	Set(ctx context.Context, p model.Product) error
	Invalidate(ctx context.Context, ids ...int64) error
}

// 注文まわりの業務メトリクス
type CheckoutRecorder interface {
	OrderPlaced(paymentMethod string, total decimal.Decimal)
	CheckoutFailed(reason string)
	OrderPaid(source string)
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderCreated(context.Context, OrderEvent) error { return nil }
func (noopPublisher) PublishOrderPaid(context.Context, OrderEvent) error    { return nil }

type noopRecorder struct{}

func (noopRecorder) OrderPlaced(string, decimal.Decimal) {}
func (noopRecorder) CheckoutFailed(string)               {}
func (noopRecorder) OrderPaid(string)                    {}
