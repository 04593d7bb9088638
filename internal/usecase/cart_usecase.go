package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecstore/internal/domain/model"
	repo "ecstore/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart と /cart-items の業務ロジック。
// 在庫は注文確定まで減らさない
type CartUsecase struct {
	tx repo.TransactionManager
}

func NewCartUsecase(tx repo.TransactionManager) *CartUsecase {
	return &CartUsecase{tx: tx}
}

type CartItemOutput struct {
	ID           int64           `json:"id"`
	Product      int64           `json:"product"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int64           `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	DateAdded    time.Time       `json:"date_added"`
}

type CartOutput struct {
	ID         int64            `json:"id"`
	User       int64            `json:"user"`
	Items      []CartItemOutput `json:"items"`
	TotalPrice decimal.Decimal  `json:"total_price"`
	TotalItems int64            `json:"total_items"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type AddCartItemInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得（無ければ作って空を返す）
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, unauthorized()
	}

	var out CartOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return internalError()
		}
		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return internalError()
		}
		cart.Items = items
		out = toCartOutput(cart)
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) ListItems(ctx context.Context, userID int64) ([]CartItemOutput, error) {
	cart, err := u.GetCart(ctx, userID)
	if err != nil {
		return []CartItemOutput{}, err
	}
	return cart.Items, nil
}

func (u *CartUsecase) GetItem(ctx context.Context, userID int64, cartItemID int64) (CartItemOutput, error) {
	if userID <= 0 {
		return CartItemOutput{}, unauthorized()
	}

	var out CartItemOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := findOwnedItem(ctx, r, userID, cartItemID)
		if err != nil {
			return err
		}
		out = toCartItemOutput(item)
		return nil
	})
	if err != nil {
		return CartItemOutput{}, err
	}
	return out, nil
}

// AddItem はカートに追加する（同一商品は数量加算）。
// createdは新しい明細を作ったとき true
func (u *CartUsecase) AddItem(ctx context.Context, userID int64, in AddCartItemInput) (CartItemOutput, bool, error) {
	if userID <= 0 {
		return CartItemOutput{}, false, unauthorized()
	}
	if in.ProductID <= 0 {
		return CartItemOutput{}, false, validationError("product_id: This field is required.")
	}
	if in.Quantity < 1 {
		return CartItemOutput{}, false, validationError("quantity: Ensure this value is greater than or equal to 1.")
	}

	var (
		out     CartItemOutput
		created bool
	)
	//却下したときは作った明細ごと巻き戻す
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsAvailable) {
			return validationError("Product does not exist or is not available.")
		}
		if err != nil {
			return internalError()
		}

		cart, err := r.Carts().GetOrCreateByUserID(ctx, userID)
		if err != nil {
			return internalError()
		}

		item, isNew, err := r.CartItems().GetOrCreate(ctx, cart.ID, p.ID)
		if err != nil {
			return internalError()
		}

		//新規行の数量は仮の値なので0から数える
		current := item.Quantity
		if isNew {
			current = 0
		}
		//加算前に残り枠と比べる（int64のあふれ防止）
		if in.Quantity > p.Stock-current {
			return insufficientStock(fmt.Sprintf("Cannot add %d item(s). Only %d available.", in.Quantity, p.Stock))
		}
		prospective := current + in.Quantity

		if err := r.CartItems().UpdateQuantity(ctx, item.ID, prospective); err != nil {
			return internalError()
		}
		item.Quantity = prospective
		item.Product = p

		out = toCartItemOutput(item)
		created = isNew
		return nil
	})
	if err != nil {
		return CartItemOutput{}, false, err
	}
	return out, created, nil
}

// UpdateItem は数量を置き換える。0以下なら削除して nil を返す
func (u *CartUsecase) UpdateItem(ctx context.Context, userID int64, cartItemID int64, qty int64) (*CartItemOutput, error) {
	if userID <= 0 {
		return nil, unauthorized()
	}

	var out *CartItemOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := findOwnedItem(ctx, r, userID, cartItemID)
		if err != nil {
			return err
		}

		if qty <= 0 {
			if err := r.CartItems().DeleteByID(ctx, item.ID); err != nil {
				return internalError()
			}
			return nil
		}

		p, err := r.Products().FindByID(ctx, item.ProductID)
		if err != nil {
			return internalError()
		}
		if qty > p.Stock {
			return insufficientStock(fmt.Sprintf("Cannot update quantity. Only %d of %s available.", p.Stock, p.Name))
		}

		if err := r.CartItems().UpdateQuantity(ctx, item.ID, qty); err != nil {
			return internalError()
		}
		item.Quantity = qty
		item.Product = p

		o := toCartItemOutput(item)
		out = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *CartUsecase) DeleteItem(ctx context.Context, userID int64, cartItemID int64) error {
	if userID <= 0 {
		return unauthorized()
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		item, err := findOwnedItem(ctx, r, userID, cartItemID)
		if err != nil {
			return err
		}
		if err := r.CartItems().DeleteByID(ctx, item.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFound()
			}
			return internalError()
		}
		return nil
	})
}

// 所有チェック。他人の明細は404
func findOwnedItem(ctx context.Context, r repo.TxRepos, userID, cartItemID int64) (model.CartItem, error) {
	if cartItemID <= 0 {
		return model.CartItem{}, notFound()
	}
	owned, err := r.CartItems().IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return model.CartItem{}, internalError()
	}
	if !owned {
		return model.CartItem{}, notFound()
	}

	item, err := r.CartItems().FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, notFound()
	}
	if err != nil {
		return model.CartItem{}, internalError()
	}
	return item, nil
}

func toCartItemOutput(it model.CartItem) CartItemOutput {
	return CartItemOutput{
		ID:           it.ID,
		Product:      it.ProductID,
		ProductName:  it.Product.Name,
		ProductPrice: it.Product.Price,
		Quantity:     it.Quantity,
		TotalPrice:   it.TotalPrice(),
		DateAdded:    it.CreatedAt,
	}
}

func toCartOutput(c model.Cart) CartOutput {
	items := make([]CartItemOutput, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, toCartItemOutput(it))
	}
	return CartOutput{
		ID:         c.ID,
		User:       c.UserID,
		Items:      items,
		TotalPrice: c.TotalPrice(),
		TotalItems: c.TotalItems(),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
