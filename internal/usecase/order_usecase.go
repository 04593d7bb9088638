package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ecstore/internal/domain/model"
	"ecstore/internal/logger"
	repo "ecstore/internal/repository"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	// 注文は未決済で作成し、決済確認で完了にする
	PaymentMethodGateway PaymentMethod = "gateway"
	// クレジット残高から即時に引き落とす
	PaymentMethodCredits PaymentMethod = "credits"
)

const idempotencyScope = "order-create"

type OrderOptions struct {
	Idempotency IdempotencyStore
	Events      OrderEventPublisher
	Cache       ProductCache
	Metrics     CheckoutRecorder
	Clock       Clock
}

type OrderUsecase struct {
	tx      repo.TransactionManager
	idem    IdempotencyStore
	events  OrderEventPublisher
	cache   ProductCache
	metrics CheckoutRecorder
	clock   Clock
}

func NewOrderUsecase(tx repo.TransactionManager, opts OrderOptions) *OrderUsecase {
	u := &OrderUsecase{
		tx:      tx,
		idem:    opts.Idempotency,
		events:  opts.Events,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		clock:   opts.Clock,
	}
	if u.events == nil {
		u.events = noopPublisher{}
	}
	if u.metrics == nil {
		u.metrics = noopRecorder{}
	}
	if u.clock == nil {
		u.clock = realClock{}
	}
	return u
}

type CreateOrderInput struct {
	Address        string
	City           string
	PostalCode     string
	Country        string
	PaymentMethod  PaymentMethod
	IdempotencyKey string
}

type OrderItemOutput struct {
	ID              int64           `json:"id"`
	Product         *int64          `json:"product"`
	ProductName     string          `json:"product_name"`
	Quantity        int64           `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type OrderOutput struct {
	ID            int64             `json:"id"`
	User          int64             `json:"user"`
	UserUsername  *string           `json:"user_username"`
	Items         []OrderItemOutput `json:"items"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	Address       string            `json:"address"`
	City          string            `json:"city"`
	PostalCode    string            `json:"postal_code"`
	Country       string            `json:"country"`
	DateOrdered   time.Time         `json:"date_ordered"`
	IsCompleted   bool              `json:"is_completed"`
	TransactionID *string           `json:"transaction_id"`
}

// 決済方法ごとの前後処理
type settlement interface {
	// 注文を作る前に呼ぶ。ここで失敗すれば何も書き込まない
	precheck(ctx context.Context, r repo.TxRepos, userID int64, cartTotal decimal.Decimal) error
	// 在庫・合計の確定後に呼ぶ
	settle(ctx context.Context, r repo.TxRepos, order *model.Order) error
}

type gatewaySettlement struct{}

func (gatewaySettlement) precheck(context.Context, repo.TxRepos, int64, decimal.Decimal) error {
	return nil
}

func (gatewaySettlement) settle(context.Context, repo.TxRepos, *model.Order) error {
	return nil
}

type creditsSettlement struct {
	clock Clock
}

func (s creditsSettlement) precheck(ctx context.Context, r repo.TxRepos, userID int64, cartTotal decimal.Decimal) error {
	user, err := r.Users().FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return unauthorized()
	}
	if err != nil {
		return internalError()
	}
	if user.Credits.LessThan(cartTotal) {
		return insufficientCredits(cartTotal, user.Credits)
	}
	return nil
}

func (s creditsSettlement) settle(ctx context.Context, r repo.TxRepos, order *model.Order) error {
	//残高が足りるときだけ減算（同時注文で足りなくなったら失敗）
	ok, err := r.Users().DebitCreditsIfEnough(ctx, order.UserID, order.TotalAmount)
	if err != nil {
		return internalError()
	}
	if !ok {
		user, err := r.Users().FindByID(ctx, order.UserID)
		if err != nil {
			return internalError()
		}
		return insufficientCredits(order.TotalAmount, user.Credits)
	}

	txID := fmt.Sprintf("credits_%d_%s", order.ID, s.clock.Now().UTC().Format("20060102150405"))
	if err := r.Orders().MarkCompleted(ctx, order.ID, txID); err != nil {
		return internalError()
	}
	order.IsCompleted = true
	order.TransactionID = txID
	return nil
}

func (u *OrderUsecase) settlementFor(m PaymentMethod) (settlement, error) {
	switch m {
	case "", PaymentMethodGateway:
		return gatewaySettlement{}, nil
	case PaymentMethodCredits:
		return creditsSettlement{clock: u.clock}, nil
	default:
		return nil, validationError(fmt.Sprintf("\"%s\" is not a valid payment_method.", m))
	}
}

// CreateOrder はカートから注文を作る。replayedは同じ冪等キーの既存注文を返したとき true
func (u *OrderUsecase) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (OrderOutput, bool, error) {
	if userID <= 0 {
		return OrderOutput{}, false, unauthorized()
	}
	if err := validateShipping(in); err != nil {
		return OrderOutput{}, false, err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentMethodGateway
	}
	s, err := u.settlementFor(in.PaymentMethod)
	if err != nil {
		return OrderOutput{}, false, err
	}

	log := logger.FromCtx(ctx)
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderOutput{}, false, validationError("Idempotency key is too long.")
	}
	scope := idempotencyScope + ":" + strconv.FormatInt(userID, 10)

	useIdem := u.idem != nil && key != ""
	if useIdem {
		//同じキーなら同じ結果
		if prev, found, err := u.idem.Recall(ctx, scope, key); err != nil {
			log.Warn().Err(err).Msg("idempotency recall failed")
			useIdem = false
		} else if found {
			if out, err := u.replay(ctx, userID, prev); err == nil {
				return out, true, nil
			}
		}
	}
	if useIdem {
		locked, err := u.idem.TryLock(ctx, scope, key)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency lock failed")
			useIdem = false
		} else if !locked {
			return OrderOutput{}, false, conflict("A request with this idempotency key is already in progress.")
		}
	}

	var order model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		created, err := u.placeOrder(ctx, r, userID, in, s)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		if useIdem {
			_ = u.idem.Release(ctx, scope, key)
		}
		if he, ok := AsHTTPError(err); ok {
			u.metrics.CheckoutFailed(he.Code)
			return OrderOutput{}, false, err
		}
		u.metrics.CheckoutFailed(ErrInternal.Error())
		log.Error().Err(err).Int64("user_id", userID).Msg("order transaction failed")
		return OrderOutput{}, false, internalError()
	}

	if useIdem {
		if err := u.idem.Remember(ctx, scope, key, strconv.FormatInt(order.ID, 10)); err != nil {
			log.Warn().Err(err).Int64("order_id", order.ID).Msg("idempotency remember failed")
		}
	}

	u.afterCommit(ctx, order, in.PaymentMethod)
	return toOrderOutput(order), false, nil
}

// placeOrder はカートを検証して注文・明細・在庫・カートを一括で更新する。
// 呼び出し側のトランザクション内で実行し、errorを返せば全て巻き戻る
func (u *OrderUsecase) placeOrder(ctx context.Context, r repo.TxRepos, userID int64, in CreateOrderInput, s settlement) (model.Order, error) {
	cart, err := r.Carts().FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, emptyCart()
	}
	if err != nil {
		return model.Order{}, internalError()
	}

	cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return model.Order{}, internalError()
	}
	if len(cartItems) == 0 {
		return model.Order{}, emptyCart()
	}

	cartTotal := decimal.Zero
	for _, ci := range cartItems {
		cartTotal = cartTotal.Add(ci.TotalPrice())
	}
	if err := s.precheck(ctx, r, userID, cartTotal); err != nil {
		return model.Order{}, err
	}

	//明細のIDを得るため合計0で先に作る
	order := model.Order{
		UserID:      userID,
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		PostalCode:  strings.TrimSpace(in.PostalCode),
		Country:     strings.TrimSpace(in.Country),
		TotalAmount: decimal.Zero,
	}
	if err := r.Orders().Create(ctx, &order); err != nil {
		return model.Order{}, internalError()
	}

	//在庫はDBの現在値で再チェック
	orderItems := make([]model.OrderItem, 0, len(cartItems))
	total := decimal.Zero
	for _, ci := range cartItems {
		if ci.Quantity <= 0 {
			_ = r.Orders().Delete(ctx, order.ID)
			return model.Order{}, validationError("quantity: Ensure this value is greater than or equal to 1.")
		}
		p, err := r.Products().FindByID(ctx, ci.ProductID)
		if err != nil {
			_ = r.Orders().Delete(ctx, order.ID)
			if errors.Is(err, repo.ErrNotFound) {
				return model.Order{}, validationError("Product does not exist or is not available.")
			}
			return model.Order{}, internalError()
		}
		if p.Stock < ci.Quantity {
			// 空の注文を残さない
			_ = r.Orders().Delete(ctx, order.ID)
			return model.Order{}, insufficientStock(fmt.Sprintf(
				"Insufficient stock for %s. Available: %d, Requested: %d", p.Name, p.Stock, ci.Quantity))
		}

		productID := p.ID
		orderItems = append(orderItems, model.OrderItem{
			OrderID:             order.ID,
			ProductID:           &productID,
			ProductNameSnapshot: p.Name,
			Quantity:            ci.Quantity,
			PriceAtPurchase:     p.Price,
		})
		total = total.Add(p.Price.Mul(decimal.NewFromInt(ci.Quantity)))
	}

	//decimal(10,2)に収まらない合計は保存できない
	if total.GreaterThanOrEqual(maxPrice) {
		_ = r.Orders().Delete(ctx, order.ID)
		return model.Order{}, validationError(fmt.Sprintf("Order total %s exceeds the maximum allowed amount.", total.StringFixed(2)))
	}

	if err := r.OrderItems().CreateBulk(ctx, order.ID, orderItems); err != nil {
		return model.Order{}, internalError()
	}

	//在庫は相対更新（stock = stock - qty）
	for _, it := range orderItems {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, *it.ProductID, it.Quantity)
		if err != nil {
			return model.Order{}, internalError()
		}
		if !ok {
			//チェック後に他の注文が在庫を使った
			available := int64(0)
			if p, err := r.Products().FindByID(ctx, *it.ProductID); err == nil {
				available = p.Stock
			}
			return model.Order{}, insufficientStock(fmt.Sprintf(
				"Insufficient stock for %s. Available: %d, Requested: %d", it.ProductNameSnapshot, available, it.Quantity))
		}
	}

	if err := r.Orders().UpdateTotal(ctx, order.ID, total); err != nil {
		return model.Order{}, internalError()
	}
	order.TotalAmount = total
	order.Items = orderItems

	if err := r.Carts().Clear(ctx, cart.ID); err != nil {
		return model.Order{}, internalError()
	}

	if err := s.settle(ctx, r, &order); err != nil {
		return model.Order{}, err
	}

	saved, err := r.Orders().FindByID(ctx, order.ID)
	if err != nil {
		return model.Order{}, internalError()
	}
	return saved, nil
}

// コミット後の副作用。失敗しても注文は確定済みなのでログだけ
func (u *OrderUsecase) afterCommit(ctx context.Context, order model.Order, method PaymentMethod) {
	log := logger.FromCtx(ctx)

	productIDs := make([]int64, 0, len(order.Items))
	evItems := make([]OrderEventItem, 0, len(order.Items))
	for _, it := range order.Items {
		if it.ProductID != nil {
			productIDs = append(productIDs, *it.ProductID)
		}
		evItems = append(evItems, OrderEventItem{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}

	if u.cache != nil && len(productIDs) > 0 {
		if err := u.cache.Invalidate(ctx, productIDs...); err != nil {
			log.Warn().Err(err).Int64("order_id", order.ID).Msg("product cache invalidate failed")
		}
	}

	ev := OrderEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: string(method),
		TransactionID: order.TransactionID,
		Items:         evItems,
		OccurredAt:    u.clock.Now().UTC(),
	}
	if err := u.events.PublishOrderCreated(ctx, ev); err != nil {
		log.Warn().Err(err).Int64("order_id", order.ID).Msg("publish order.created failed")
	}
	if order.IsCompleted {
		if err := u.events.PublishOrderPaid(ctx, ev); err != nil {
			log.Warn().Err(err).Int64("order_id", order.ID).Msg("publish order.paid failed")
		}
		u.metrics.OrderPaid(string(method))
	}

	u.metrics.OrderPlaced(string(method), order.TotalAmount)
	log.Info().
		Int64("order_id", order.ID).
		Int64("user_id", order.UserID).
		Str("total", order.TotalAmount.StringFixed(2)).
		Str("payment_method", string(method)).
		Bool("completed", order.IsCompleted).
		Msg("order placed")
}

// 冪等キーで記録済みの注文を返す
func (u *OrderUsecase) replay(ctx context.Context, userID int64, orderIDStr string) (OrderOutput, error) {
	orderID, err := strconv.ParseInt(orderIDStr, 10, 64)
	if err != nil {
		return OrderOutput{}, err
	}
	return u.GetOrder(ctx, userID, orderID)
}

func (u *OrderUsecase) ListOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, unauthorized()
	}

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByUserID(ctx, userID)
		if err != nil {
			return internalError()
		}
		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			outs = append(outs, toOrderOutput(o))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetOrder(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, unauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, notFound()
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound()
		}
		if err != nil {
			return internalError()
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return notFound()
		}
		out = toOrderOutput(o)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// RecalculateTotal は明細から合計を出し直し、違っていれば保存する（管理者用）
func (u *OrderUsecase) RecalculateTotal(ctx context.Context, orderID int64) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound()
		}
		if err != nil {
			return internalError()
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return internalError()
		}
		o.Items = items

		total := o.ItemsTotal()
		if !total.Equal(o.TotalAmount) {
			if err := r.Orders().UpdateTotal(ctx, orderID, total); err != nil {
				return internalError()
			}
			o.TotalAmount = total
		}
		out = toOrderOutput(o)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func validateShipping(in CreateOrderInput) error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"address", in.Address, 255},
		{"city", in.City, 100},
		{"postal_code", in.PostalCode, 20},
		{"country", in.Country, 100},
	}
	for _, f := range fields {
		if len(strings.TrimSpace(f.value)) > f.max {
			return validationError(fmt.Sprintf("%s: Ensure this field has no more than %d characters.", f.name, f.max))
		}
	}
	return nil
}

func toOrderOutput(o model.Order) OrderOutput {
	items := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemOutput{
			ID:              it.ID,
			Product:         it.ProductID,
			ProductName:     it.ProductNameSnapshot,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}

	out := OrderOutput{
		ID:          o.ID,
		User:        o.UserID,
		Items:       items,
		TotalAmount: o.TotalAmount,
		Address:     o.Address,
		City:        o.City,
		PostalCode:  o.PostalCode,
		Country:     o.Country,
		DateOrdered: o.CreatedAt,
		IsCompleted: o.IsCompleted,
	}
	if o.User != nil {
		name := o.User.Username
		out.UserUsername = &name
	}
	if o.TransactionID != "" {
		txID := o.TransactionID
		out.TransactionID = &txID
	}
	return out
}
