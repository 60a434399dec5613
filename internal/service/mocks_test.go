package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/repo"
	"github.com/MorseWayne/cloth_shop/internal/storage"
)

// 内存版存储：所有仓储共享同一份状态，fakeTxManager 在事务失败时整体回滚

type fakeTxKey struct{}

func inFakeTx(ctx context.Context) bool {
	return ctx.Value(fakeTxKey{}) != nil
}

func duplicateKeyError() error {
	return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
}

type memState struct {
	nextID   int64
	users    map[int64]domain.User
	products map[int64]domain.Product
	variants map[domain.VariantKey]domain.StockVariant
	logs     []domain.InventoryLogEntry
	carts    map[int64]*domain.Cart // user_id -> cart
	orders   map[int64]*domain.Order
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:   s.nextID,
		users:    make(map[int64]domain.User, len(s.users)),
		products: make(map[int64]domain.Product, len(s.products)),
		variants: make(map[domain.VariantKey]domain.StockVariant, len(s.variants)),
		logs:     append([]domain.InventoryLogEntry(nil), s.logs...),
		carts:    make(map[int64]*domain.Cart, len(s.carts)),
		orders:   make(map[int64]*domain.Order, len(s.orders)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = cloneCart(v)
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	return c
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Lines = make([]*domain.CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		lc := *l
		cp.Lines = append(cp.Lines, &lc)
	}
	return &cp
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = make([]*domain.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		ic := *it
		cp.Items = append(cp.Items, &ic)
	}
	return &cp
}

type memStore struct {
	mu    sync.Mutex
	state *memState

	// 故障注入
	appendErr      error
	createOrderErr error
	clearLinesErr  error
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		nextID:   1,
		users:    map[int64]domain.User{},
		products: map[int64]domain.Product{},
		variants: map[domain.VariantKey]domain.StockVariant{},
		carts:    map[int64]*domain.Cart{},
		orders:   map[int64]*domain.Order{},
	}}
}

func (m *memStore) id() int64 {
	id := m.state.nextID
	m.state.nextID++
	return id
}

func (m *memStore) variant(key domain.VariantKey) (domain.StockVariant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state.variants[key]
	return v, ok
}

func (m *memStore) ledgerSum(key domain.VariantKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, e := range m.state.logs {
		if e.Key() == key {
			sum += e.AppliedChange
		}
	}
	return sum
}

func (m *memStore) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.logs)
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

// fakeTxManager 串行执行事务，失败时恢复快照
type fakeTxManager struct {
	store *memStore
	txMu  sync.Mutex
	calls int
}

func (f *fakeTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inFakeTx(ctx) {
		return fn(ctx)
	}
	f.txMu.Lock()
	defer f.txMu.Unlock()
	f.calls++

	f.store.mu.Lock()
	snapshot := f.store.state.clone()
	f.store.mu.Unlock()

	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		f.store.mu.Lock()
		f.store.state = snapshot
		f.store.mu.Unlock()
		return err
	}
	return nil
}

// ---- users ----

type fakeUserRepo struct{ s *memStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.state.users {
		if u.Username == user.Username || u.Email == user.Email {
			return duplicateKeyError()
		}
	}
	user.ID = r.s.id()
	user.CreatedAt = time.Now()
	r.s.state.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.state.users {
		if match(u) {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

// ---- products ----

type fakeProductRepo struct {
	s     *memStore
	gets  int
	getMu sync.Mutex
}

func (r *fakeProductRepo) Create(ctx context.Context, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	r.s.state.products[p.ID] = *p
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	r.getMu.Lock()
	r.gets++
	r.getMu.Unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.state.products[id]
	if !ok || p.Status == domain.ProductStatusDeleted {
		return nil, nil
	}
	return &p, nil
}

func (r *fakeProductRepo) UpdatePrice(ctx context.Context, id int64, product *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.state.products[id]
	if !ok || p.Status == domain.ProductStatusDeleted {
		return domain.NotFoundError("product", id)
	}
	p.Price = product.Price
	r.s.state.products[id] = p
	return nil
}

func (r *fakeProductRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.state.products[id]; ok {
		p.Status = domain.ProductStatusDeleted
		r.s.state.products[id] = p
	}
	return nil
}

func (r *fakeProductRepo) setStatus(id int64, status domain.ProductStatus) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.state.products[id]
	p.Status = status
	r.s.state.products[id] = p
}

// ---- variants ----

type fakeVariantRepo struct{ s *memStore }

func (r *fakeVariantRepo) Create(ctx context.Context, v *domain.StockVariant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.state.variants[v.Key()]; exists {
		return duplicateKeyError()
	}
	v.ID = r.s.id()
	v.Available = v.Quantity > 0
	r.s.state.variants[v.Key()] = *v
	return nil
}

func (r *fakeVariantRepo) GetByKey(ctx context.Context, key domain.VariantKey) (*domain.StockVariant, error) {
	v, ok := r.s.variant(key)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *fakeVariantRepo) ListByProduct(ctx context.Context, productID int64) ([]*domain.StockVariant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.StockVariant
	for _, v := range r.s.state.variants {
		if v.ProductID == productID {
			cp := v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, nil
}

func (r *fakeVariantRepo) GetByKeyForUpdate(ctx context.Context, key domain.VariantKey) (*domain.StockVariant, error) {
	if !inFakeTx(ctx) {
		return nil, repo.ErrTxRequired
	}
	return r.GetByKey(ctx, key)
}

func (r *fakeVariantRepo) ApplyDelta(ctx context.Context, key domain.VariantKey, delta int) (domain.VariantChange, error) {
	if !inFakeTx(ctx) {
		return domain.VariantChange{}, repo.ErrTxRequired
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.state.variants[key]
	if !ok {
		return domain.VariantChange{}, domain.NotFoundError("stock variant", key)
	}
	previous := v.Quantity
	applied := v.ApplyDelta(delta)
	r.s.state.variants[key] = v
	cp := v
	return domain.VariantChange{Variant: &cp, Previous: previous, Applied: applied}, nil
}

// ---- inventory logs ----

type fakeLogRepo struct{ s *memStore }

func (r *fakeLogRepo) Append(ctx context.Context, e *domain.InventoryLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.appendErr != nil {
		return r.s.appendErr
	}
	e.ID = r.s.id()
	r.s.state.logs = append(r.s.state.logs, *e)
	return nil
}

func (r *fakeLogRepo) AppliedByOrder(ctx context.Context, orderID int64, changeType domain.ChangeType) (map[domain.VariantKey]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sums := make(map[domain.VariantKey]int)
	for _, e := range r.s.state.logs {
		if e.OrderID != nil && *e.OrderID == orderID && e.ChangeType == changeType {
			sums[e.Key()] += e.AppliedChange
		}
	}
	return sums, nil
}

type fakeLogQuery struct{ s *memStore }

func (q *fakeLogQuery) Find(ctx context.Context, lq *domain.LedgerQuery) ([]*domain.InventoryLogEntry, int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()

	var matched []*domain.InventoryLogEntry
	for i := len(q.s.state.logs) - 1; i >= 0; i-- {
		e := q.s.state.logs[i]
		if lq.ProductID != nil && e.ProductID != *lq.ProductID {
			continue
		}
		if lq.Color != "" && e.Color != lq.Color {
			continue
		}
		if lq.Size != "" && e.Size != lq.Size {
			continue
		}
		if lq.ChangeType != "" && e.ChangeType != lq.ChangeType {
			continue
		}
		if lq.From != nil && e.CreatedAt.Before(*lq.From) {
			continue
		}
		if lq.To != nil && e.CreatedAt.After(*lq.To) {
			continue
		}
		cp := e
		matched = append(matched, &cp)
	}

	total := int64(len(matched))
	start := (lq.Page - 1) * lq.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + lq.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (q *fakeLogQuery) ReplaySums(ctx context.Context, productID *int64) ([]*domain.VariantDrift, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()

	var out []*domain.VariantDrift
	for key, v := range q.s.state.variants {
		if productID != nil && key.ProductID != *productID {
			continue
		}
		sum := 0
		for _, e := range q.s.state.logs {
			if e.Key() == key {
				sum += e.AppliedChange
			}
		}
		out = append(out, &domain.VariantDrift{VariantKey: key, Quantity: v.Quantity, LedgerSum: sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantKey.String() < out[j].VariantKey.String() })
	return out, nil
}

func (q *fakeLogQuery) ProductIDsWithVariants(ctx context.Context) ([]int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	seen := map[int64]bool{}
	ids := []int64{}
	for key := range q.s.state.variants {
		if !seen[key.ProductID] {
			seen[key.ProductID] = true
			ids = append(ids, key.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// corruptQuantity 绕过流水直接改库存，用于对账测试
func (m *memStore) corruptQuantity(key domain.VariantKey, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.state.variants[key]
	v.Quantity = qty
	v.Available = qty > 0
	m.state.variants[key] = v
}

// ---- carts ----

type fakeCartRepo struct{ s *memStore }

func (r *fakeCartRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.carts[userID]
	if !ok {
		return nil, nil
	}
	return cloneCart(c), nil
}

func (r *fakeCartRepo) GetByUserIDForUpdate(ctx context.Context, userID int64) (*domain.Cart, error) {
	if !inFakeTx(ctx) {
		return nil, repo.ErrTxRequired
	}
	return r.GetByUserID(ctx, userID)
}

func (r *fakeCartRepo) GetOrCreate(ctx context.Context, userID int64) (*domain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.carts[userID]
	if !ok {
		c = &domain.Cart{ID: r.s.id(), UserID: userID, Lines: []*domain.CartLine{}}
		r.s.state.carts[userID] = c
	}
	return &domain.Cart{ID: c.ID, UserID: userID, Lines: []*domain.CartLine{}}, nil
}

func (r *fakeCartRepo) cartByID(cartID int64) *domain.Cart {
	for _, c := range r.s.state.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (r *fakeCartRepo) UpsertLine(ctx context.Context, cartID int64, key domain.VariantKey, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.cartByID(cartID)
	if c == nil {
		return errors.New("cart not found")
	}
	if l := c.FindLine(key); l != nil {
		l.Quantity += quantity
		return nil
	}
	c.Lines = append(c.Lines, &domain.CartLine{
		ID: r.s.id(), CartID: cartID, ProductID: key.ProductID, Color: key.Color, Size: key.Size, Quantity: quantity,
	})
	return nil
}

func (r *fakeCartRepo) UpdateLineQuantity(ctx context.Context, cartID, lineID int64, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.cartByID(cartID); c != nil {
		for _, l := range c.Lines {
			if l.ID == lineID {
				l.Quantity = quantity
			}
		}
	}
	return nil
}

func (r *fakeCartRepo) DeleteLine(ctx context.Context, cartID, lineID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.cartByID(cartID)
	if c == nil {
		return false, nil
	}
	for i, l := range c.Lines {
		if l.ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCartRepo) DeleteLinesByProduct(ctx context.Context, cartID, productID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.cartByID(cartID)
	if c == nil {
		return 0, nil
	}
	kept := c.Lines[:0]
	var removed int64
	for _, l := range c.Lines {
		if l.ProductID == productID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	c.Lines = kept
	return removed, nil
}

func (r *fakeCartRepo) ClearLines(ctx context.Context, cartID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.clearLinesErr != nil {
		return r.s.clearLinesErr
	}
	if c := r.cartByID(cartID); c != nil {
		c.Lines = []*domain.CartLine{}
	}
	return nil
}

// ---- orders ----

type fakeOrderRepo struct{ s *memStore }

func (r *fakeOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createOrderErr != nil {
		return r.s.createOrderErr
	}
	for _, existing := range r.s.state.orders {
		if o.IdempotencyKey != "" && existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
			return duplicateKeyError()
		}
	}
	o.ID = r.s.id()
	o.CreatedAt = time.Now()
	for _, it := range o.Items {
		it.ID = r.s.id()
		it.OrderID = o.ID
	}
	r.s.state.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.state.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	if !inFakeTx(ctx) {
		return nil, repo.ErrTxRequired
	}
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.state.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*domain.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*domain.Order
	for _, o := range r.s.state.orders {
		if o.UserID == userID {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.state.orders[id]
	if !ok || o.Status != from {
		return 0, nil
	}
	o.Status = to
	return 1, nil
}

func (r *fakeOrderRepo) UpdatePaymentSlip(ctx context.Context, id int64, slipURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o, ok := r.s.state.orders[id]; ok {
		o.PaymentSlipURL = slipURL
	}
	return nil
}

// ---- collaborators ----

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.OrderEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, e *domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() []*domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*domain.OrderEvent(nil), p.events...)
}

type fakeSlipStore struct {
	mu    sync.Mutex
	saved map[string]string
}

var _ storage.SlipStore = (*fakeSlipStore)(nil)

func (s *fakeSlipStore) Save(ctx context.Context, orderNumber, ext string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := "slips/" + orderNumber + ext
	s.saved[ref] = string(data)
	return ref, nil
}

// ---- test environment ----

type testEnv struct {
	store     *memStore
	txm       *fakeTxManager
	users     *fakeUserRepo
	products  *fakeProductRepo
	variants  *fakeVariantRepo
	publisher *fakePublisher
	slips     *fakeSlipStore

	inventory InventoryService
	carts     CartService
	orders    OrderService
	catalog   ProductService
	orderDeps OrderDeps
}

type envOption func(*OrderDeps)

func withStrictCheckout() envOption {
	return func(d *OrderDeps) { d.StrictCheckout = true }
}

func newTestEnv(t testing.TB, opts ...envOption) *testEnv {
	t.Helper()
	store := newMemStore()
	env := &testEnv{
		store:     store,
		txm:       &fakeTxManager{store: store},
		users:     &fakeUserRepo{s: store},
		products:  &fakeProductRepo{s: store},
		variants:  &fakeVariantRepo{s: store},
		publisher: &fakePublisher{},
		slips:     &fakeSlipStore{saved: map[string]string{}},
	}
	logger := zap.NewNop()
	logs := &fakeLogRepo{s: store}
	cartRepo := &fakeCartRepo{s: store}

	env.inventory = NewInventoryService(env.txm, env.variants, logs, &fakeLogQuery{s: store}, env.products, logger)
	env.carts = NewCartService(env.txm, cartRepo, env.products, logger)
	env.catalog = NewProductService(env.products, logger)

	deps := OrderDeps{
		TxManager:     env.txm,
		Orders:        &fakeOrderRepo{s: store},
		Carts:         cartRepo,
		Products:      env.products,
		Users:         env.users,
		Variants:      env.variants,
		InventoryLogs: logs,
		Publisher:     env.publisher,
		SlipStore:     env.slips,
		Logger:        logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.orderDeps = deps
	env.orders = NewOrderService(deps)
	return env
}

func (e *testEnv) seedUser(t testing.TB, username string) int64 {
	t.Helper()
	u := &domain.User{Username: username, Email: username + "@example.com", Role: domain.UserRoleUser, IsActive: true}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u.ID
}

func (e *testEnv) seedProduct(t testing.TB, name, price string) int64 {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), &domain.CreateProductRequest{
		Name:  name,
		Price: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return p.ID
}

func (e *testEnv) seedVariant(t testing.TB, productID int64, color, size string, qty int) domain.VariantKey {
	t.Helper()
	_, err := e.inventory.CreateVariants(context.Background(), productID, &domain.CreateVariantsRequest{
		Variants: []domain.VariantSpec{{Color: color, Size: size, InitialQuantity: qty}},
	}, nil)
	require.NoError(t, err)
	return domain.VariantKey{ProductID: productID, Color: color, Size: size}
}

func (e *testEnv) quantity(t testing.TB, key domain.VariantKey) int {
	t.Helper()
	v, ok := e.store.variant(key)
	require.True(t, ok, "variant %s missing", key)
	return v.Quantity
}

func sampleShipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Country:      "GB",
		PostalCode:   "NW1",
		PhoneNumber:  "+44 20 0000 0000",
		HomeAddress:  "12 St James's Square",
		EmailAddress: "ada@example.com",
	}
}

func checkoutRequest(method domain.PaymentMethod) *domain.CheckoutRequest {
	return &domain.CheckoutRequest{
		Shipping: sampleShipping(),
		Payment:  domain.PaymentInfo{Method: method},
	}
}
