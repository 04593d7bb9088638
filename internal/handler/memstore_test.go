package handler_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ecstore/internal/domain/model"
	repo "ecstore/internal/repository"

	"github.com/shopspring/decimal"
)

// =====================
// in-memory store（handlerテスト用のTxManager）
// =====================

type memStore struct {
	mu         sync.Mutex
	categories map[int64]model.Category
	products   map[int64]model.Product
	carts      map[int64]model.Cart // userID -> cart
	items      map[int64]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64]model.OrderItem
	users      map[int64]model.User
	audit      []model.AuditLog
	nextID     int64
}

func newMemStore(products ...model.Product) *memStore {
	s := &memStore{
		categories: map[int64]model.Category{},
		products:   map[int64]model.Product{},
		carts:      map[int64]model.Cart{},
		items:      map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64]model.OrderItem{},
		users:      map[int64]model.User{},
		nextID:     100,
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) addUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type memSnapshot struct {
	categories map[int64]model.Category
	products   map[int64]model.Product
	carts      map[int64]model.Cart
	items      map[int64]model.CartItem
	orders     map[int64]model.Order
	orderItems map[int64]model.OrderItem
	users      map[int64]model.User
	audit      []model.AuditLog
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		categories: copyMap(s.categories),
		products:   copyMap(s.products),
		carts:      copyMap(s.carts),
		items:      copyMap(s.items),
		orders:     copyMap(s.orders),
		orderItems: copyMap(s.orderItems),
		users:      copyMap(s.users),
		audit:      append([]model.AuditLog(nil), s.audit...),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.categories = snap.categories
	s.products = snap.products
	s.carts = snap.carts
	s.items = snap.items
	s.orders = snap.orders
	s.orderItems = snap.orderItems
	s.users = snap.users
	s.audit = snap.audit
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 失敗したら元に戻す
	snap := s.snapshot()
	if err := fn(memRepos{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memRepos struct{ s *memStore }

func (r memRepos) Orders() repo.OrderRepository         { return memOrders{r.s} }
func (r memRepos) OrderItems() repo.OrderItemRepository { return memOrderItems{r.s} }
func (r memRepos) Carts() repo.CartRepository           { return memCarts{r.s} }
func (r memRepos) CartItems() repo.CartItemRepository   { return memCartItems{r.s} }
func (r memRepos) Inventory() repo.InventoryRepository  { return memInventory{r.s} }
func (r memRepos) Products() repo.ProductRepository     { return memProducts{r.s} }
func (r memRepos) Users() repo.UserRepository           { return memUsers{r.s} }
func (r memRepos) AuditLogs() repo.AuditLogRepository   { return memAuditLogs{r.s} }

// ---- carts ----

type memCarts struct{ s *memStore }

func (r memCarts) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	c, ok := r.s.carts[userID]
	if !ok {
		c = model.Cart{ID: r.s.id(), UserID: userID}
		r.s.carts[userID] = c
	}
	return c, nil
}

func (r memCarts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	c, ok := r.s.carts[userID]
	if !ok {
		return model.Cart{}, repo.ErrNotFound
	}
	return c, nil
}

func (r memCarts) Clear(ctx context.Context, cartID int64) error {
	for id, it := range r.s.items {
		if it.CartID == cartID {
			delete(r.s.items, id)
		}
	}
	return nil
}

type memCartItems struct{ s *memStore }

func (r memCartItems) withProduct(it model.CartItem) model.CartItem {
	it.Product = r.s.products[it.ProductID]
	return it
}

func (r memCartItems) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	for _, it := range r.s.items {
		if it.CartID == cartID {
			out = append(out, r.withProduct(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memCartItems) FindByID(ctx context.Context, id int64) (model.CartItem, error) {
	it, ok := r.s.items[id]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return r.withProduct(it), nil
}

func (r memCartItems) GetOrCreate(ctx context.Context, cartID int64, productID int64) (model.CartItem, bool, error) {
	for _, it := range r.s.items {
		if it.CartID == cartID && it.ProductID == productID {
			return r.withProduct(it), false, nil
		}
	}
	it := model.CartItem{ID: r.s.id(), CartID: cartID, ProductID: productID, Quantity: 1}
	r.s.items[it.ID] = it
	return r.withProduct(it), true, nil
}

func (r memCartItems) UpdateQuantity(ctx context.Context, id int64, qty int64) error {
	it, ok := r.s.items[id]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	r.s.items[id] = it
	return nil
}

func (r memCartItems) DeleteByID(ctx context.Context, id int64) error {
	if _, ok := r.s.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.items, id)
	return nil
}

func (r memCartItems) IsOwnedByUser(ctx context.Context, id int64, userID int64) (bool, error) {
	it, ok := r.s.items[id]
	if !ok {
		return false, nil
	}
	c, ok := r.s.carts[userID]
	return ok && c.ID == it.CartID, nil
}

// ---- catalog ----

type memCategories struct{ s *memStore }

func (r memCategories) withSubs(c model.Category) model.Category {
	c.Subcategories = nil
	for _, sub := range r.s.categories {
		if sub.ParentID != nil && *sub.ParentID == c.ID {
			c.Subcategories = append(c.Subcategories, sub)
		}
	}
	return c
}

func (r memCategories) List(ctx context.Context) ([]model.Category, error) {
	out := []model.Category{}
	for _, c := range r.s.categories {
		out = append(out, r.withSubs(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memCategories) FindByID(ctx context.Context, id int64) (model.Category, error) {
	c, ok := r.s.categories[id]
	if !ok {
		return model.Category{}, repo.ErrNotFound
	}
	return r.withSubs(c), nil
}

func (r memCategories) FindBySlug(ctx context.Context, slug string) (model.Category, error) {
	for _, c := range r.s.categories {
		if c.Slug == slug {
			return r.withSubs(c), nil
		}
	}
	return model.Category{}, repo.ErrNotFound
}

func (r memCategories) Create(ctx context.Context, c *model.Category) error {
	c.ID = r.s.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.s.categories[c.ID] = *c
	return nil
}

func (r memCategories) Update(ctx context.Context, c *model.Category) error {
	if _, ok := r.s.categories[c.ID]; !ok {
		return repo.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	r.s.categories[c.ID] = *c
	return nil
}

func (r memCategories) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.categories[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.categories, id)
	for pid, p := range r.s.products {
		if p.CategoryID == id {
			_ = memProducts{r.s}.Delete(ctx, pid)
		}
	}
	return nil
}

func (r memCategories) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	for _, c := range r.s.categories {
		if c.Slug == slug && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r memCategories) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	for _, c := range r.s.categories {
		if c.Name == name && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type memProducts struct{ s *memStore }

func (r memProducts) withCategory(p model.Product) model.Product {
	if c, ok := r.s.categories[p.CategoryID]; ok {
		p.Category = &c
	}
	return p
}

func (r memProducts) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	all := []model.Product{}
	for _, p := range r.s.products {
		if q.AvailableOnly && !p.IsAvailable {
			continue
		}
		if q.CategoryID != nil && p.CategoryID != *q.CategoryID {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		all = append(all, r.withCategory(p))
	}
	// 新しい順
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	start := (q.Page - 1) * q.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return r.withCategory(p), nil
}

func (r memProducts) Create(ctx context.Context, p *model.Product) error {
	if taken, _ := r.SlugExists(ctx, p.Slug, 0); taken {
		return repo.ErrConflict
	}
	p.ID = r.s.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.Category = nil
	r.s.products[p.ID] = stored
	return nil
}

func (r memProducts) Update(ctx context.Context, p *model.Product) error {
	if _, ok := r.s.products[p.ID]; !ok {
		return repo.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	stored := *p
	stored.Category = nil
	r.s.products[p.ID] = stored
	return nil
}

// 注文明細の参照はNULL、カート明細は削除
func (r memProducts) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.products[id]; !ok {
		return repo.ErrNotFound
	}
	for oid, it := range r.s.orderItems {
		if it.ProductID != nil && *it.ProductID == id {
			it.ProductID = nil
			r.s.orderItems[oid] = it
		}
	}
	for cid, it := range r.s.items {
		if it.ProductID == id {
			delete(r.s.items, cid)
		}
	}
	delete(r.s.products, id)
	return nil
}

func (r memProducts) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	for _, p := range r.s.products {
		if p.Slug == slug && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type memInventory struct{ s *memStore }

func (r memInventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	p, ok := r.s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.s.products[productID] = p
	return true, nil
}

// ---- orders ----

type memOrders struct{ s *memStore }

func (r memOrders) Create(ctx context.Context, o *model.Order) error {
	o.ID = r.s.id()
	o.CreatedAt = time.Now()
	stored := *o
	stored.Items = nil
	stored.User = nil
	r.s.orders[o.ID] = stored
	return nil
}

func (r memOrders) load(o model.Order) model.Order {
	items, _ := memOrderItems{r.s}.ListByOrderID(context.Background(), o.ID)
	o.Items = items
	if u, ok := r.s.users[o.UserID]; ok {
		o.User = &u
	}
	return o
}

func (r memOrders) FindByID(ctx context.Context, id int64) (model.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return r.load(o), nil
}

func (r memOrders) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	out := []model.Order{}
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, r.load(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r memOrders) UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.TotalAmount = total
	r.s.orders[id] = o
	return nil
}

func (r memOrders) MarkCompleted(ctx context.Context, id int64, transactionID string) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.IsCompleted = true
	o.TransactionID = transactionID
	r.s.orders[id] = o
	return nil
}

func (r memOrders) Delete(ctx context.Context, id int64) error {
	delete(r.s.orders, id)
	for iid, it := range r.s.orderItems {
		if it.OrderID == id {
			delete(r.s.orderItems, iid)
		}
	}
	return nil
}

type memOrderItems struct{ s *memStore }

func (r memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for i := range items {
		items[i].ID = r.s.id()
		items[i].OrderID = orderID
		r.s.orderItems[items[i].ID] = items[i]
	}
	return nil
}

func (r memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	for _, it := range r.s.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- users / audit ----

type memUsers struct{ s *memStore }

func (r memUsers) Create(ctx context.Context, u *model.User) error {
	u.ID = r.s.id()
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r memUsers) List(ctx context.Context, limit int, offset int) ([]model.User, int64, error) {
	out := []model.User{}
	for _, u := range r.s.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (r memUsers) Update(ctx context.Context, u *model.User) error {
	r.s.users[u.ID] = *u
	return nil
}

func (r memUsers) IncrementTokenVersion(ctx context.Context, id int64) error {
	u, ok := r.s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.TokenVersion++
	r.s.users[id] = u
	return nil
}

func (r memUsers) DebitCreditsIfEnough(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	u, ok := r.s.users[id]
	if !ok || u.Credits.LessThan(amount) {
		return false, nil
	}
	u.Credits = u.Credits.Sub(amount)
	r.s.users[id] = u
	return true, nil
}

type memAuditLogs struct{ s *memStore }

func (r memAuditLogs) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = r.s.id()
	r.s.audit = append(r.s.audit, log)
	return nil
}

func (r memAuditLogs) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	out := []model.AuditLog{}
	for _, l := range r.s.audit {
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
