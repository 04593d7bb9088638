package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ecstore/internal/domain/model"
	"ecstore/internal/logger"
	repo "ecstore/internal/repository"

	"github.com/shopspring/decimal"
)

type PaymentUsecase struct {
	tx       repo.TransactionManager
	gateway  PaymentGateway
	events   OrderEventPublisher
	metrics  CheckoutRecorder
	clock    Clock
	currency string
}

// DI
func NewPaymentUsecase(
	tx repo.TransactionManager,
	gateway PaymentGateway,
	events OrderEventPublisher,
	metrics CheckoutRecorder,
	currency string,
) *PaymentUsecase {
	if events == nil {
		events = noopPublisher{}
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	if currency == "" {
		currency = "usd"
	}
	return &PaymentUsecase{
		tx:       tx,
		gateway:  gateway,
		events:   events,
		metrics:  metrics,
		clock:    realClock{},
		currency: currency,
	}
}

type CreateIntentOutput struct {
	ClientSecret string `json:"clientSecret"`
}

type ConfirmOrderInput struct {
	OrderID       int64
	TransactionID string
}

type ConfirmOrderOutput struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var hundred = decimal.NewFromInt(100)

// CreateIntent は未決済の自分の注文に対して決済インテントを作る
func (u *PaymentUsecase) CreateIntent(ctx context.Context, userID int64, orderID int64) (CreateIntentOutput, error) {
	if userID <= 0 {
		return CreateIntentOutput{}, unauthorized()
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findPayableOrder(ctx, r, userID, orderID)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return CreateIntentOutput{}, err
	}

	if !order.TotalAmount.IsPositive() {
		return CreateIntentOutput{}, validationError("Order amount must be positive to process payment.")
	}

	//セント単位に切り捨て
	cents := order.TotalAmount.Mul(hundred).IntPart()
	intent, err := u.gateway.CreateIntent(ctx, PaymentIntentRequest{
		AmountCents: cents,
		Currency:    u.currency,
		Metadata: map[string]string{
			"order_id": strconv.FormatInt(order.ID, 10),
			"user_id":  strconv.FormatInt(userID, 10),
		},
	})
	if err != nil {
		u.metrics.CheckoutFailed(ErrPaymentFailed.Error())
		logger.FromCtx(ctx).Warn().Err(err).Int64("order_id", order.ID).Msg("payment intent failed")
		return CreateIntentOutput{}, paymentFailed(err.Error())
	}

	logger.FromCtx(ctx).Info().
		Int64("order_id", order.ID).
		Str("intent_id", intent.ID).
		Int64("amount_cents", cents).
		Msg("payment intent created")
	return CreateIntentOutput{ClientSecret: intent.ClientSecret}, nil
}

// ConfirmOrder は注文を決済済みにする（モック決済）
func (u *PaymentUsecase) ConfirmOrder(ctx context.Context, userID int64, in ConfirmOrderInput) (ConfirmOrderOutput, error) {
	if userID <= 0 {
		return ConfirmOrderOutput{}, unauthorized()
	}

	txID := strings.TrimSpace(in.TransactionID)
	if txID == "" {
		txID = fmt.Sprintf("mock_%d", in.OrderID)
	}
	if len(txID) > 100 {
		return ConfirmOrderOutput{}, validationError("transaction_id: Ensure this field has no more than 100 characters.")
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findPayableOrder(ctx, r, userID, in.OrderID)
		if err != nil {
			return err
		}

		if err := r.Orders().MarkCompleted(ctx, o.ID, txID); err != nil {
			return internalError()
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  userID,
			Action:       model.AuditActionConfirmPayment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   fmt.Sprintf(`{"is_completed":false,"transaction_id":%q}`, o.TransactionID),
			AfterJSON:    fmt.Sprintf(`{"is_completed":true,"transaction_id":%q}`, txID),
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return internalError()
		}

		o.IsCompleted = true
		o.TransactionID = txID
		order = o
		return nil
	})
	if err != nil {
		return ConfirmOrderOutput{}, err
	}

	if err := u.events.PublishOrderPaid(ctx, OrderEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: string(PaymentMethodGateway),
		TransactionID: txID,
		OccurredAt:    u.clock.Now().UTC(),
	}); err != nil {
		logger.FromCtx(ctx).Warn().Err(err).Int64("order_id", order.ID).Msg("publish order.paid failed")
	}
	u.metrics.OrderPaid(string(PaymentMethodGateway))
	logger.FromCtx(ctx).Info().Int64("order_id", order.ID).Str("transaction_id", txID).Msg("order paid")

	return ConfirmOrderOutput{
		Status:  "success",
		Message: fmt.Sprintf("Order %d marked as paid.", order.ID),
	}, nil
}

// 自分の未完了注文だけ。他人の注文は404
func findPayableOrder(ctx context.Context, r repo.TxRepos, userID, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, validationError("order_id: A valid integer is required.")
	}
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, notFound()
	}
	if err != nil {
		return model.Order{}, internalError()
	}
	if o.UserID != userID {
		return model.Order{}, notFound()
	}
	if o.IsCompleted {
		return model.Order{}, validationError("Order is already completed.")
	}
	return o, nil
}
