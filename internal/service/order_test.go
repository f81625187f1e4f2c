package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/backoffice/internal/database"
	"github.com/kiwari-pos/backoffice/internal/enum"
	"github.com/kiwari-pos/backoffice/internal/events"
	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/kiwari-pos/backoffice/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	commits   atomic.Int32
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits.Add(1)
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx     pgx.Tx
	err    error
	begins atomic.Int32
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	m.begins.Add(1)
	return m.tx, m.err
}

// fakeStore is an in-memory OrderStore. UpdateOrderStatus behaves like the
// real compare-and-set query.
type fakeStore struct {
	mu sync.Mutex

	menu       map[uuid.UUID]database.MenuItem
	variants   map[uuid.UUID][]database.MenuItemVariant
	menuAddons map[uuid.UUID][]database.MenuItemAddon
	menuGets   int

	orders     map[uuid.UUID]database.Order
	items      []database.OrderItem
	itemAddons []database.OrderItemAddon
	events     []database.OrderEvent

	conflictsLeft  int
	createOrderErr error
	updates        int

	readBarrier  *sync.WaitGroup
	beforeUpdate func(s *fakeStore)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		menu:       map[uuid.UUID]database.MenuItem{},
		variants:   map[uuid.UUID][]database.MenuItemVariant{},
		menuAddons: map[uuid.UUID][]database.MenuItemAddon{},
		orders:     map[uuid.UUID]database.Order{},
	}
}

func (s *fakeStore) GetMenuItem(_ context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuGets++
	mi, ok := s.menu[arg.ID]
	if !ok || mi.BranchID != arg.BranchID {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return mi, nil
}

func (s *fakeStore) ListMenuItemVariants(_ context.Context, id uuid.UUID) ([]database.MenuItemVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variants[id], nil
}

func (s *fakeStore) ListMenuItemAddons(_ context.Context, id uuid.UUID) ([]database.MenuItemAddon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menuAddons[id], nil
}

func (s *fakeStore) GetOrder(_ context.Context, arg database.GetOrderParams) (database.Order, error) {
	s.mu.Lock()
	o, ok := s.orders[arg.ID]
	s.mu.Unlock()

	if s.readBarrier != nil {
		s.readBarrier.Done()
		s.readBarrier.Wait()
	}
	if !ok || o.BranchID != arg.BranchID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (s *fakeStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	return nil, nil
}

func (s *fakeStore) ListOrdersInRange(_ context.Context, arg database.ListOrdersInRangeParams) ([]database.Order, error) {
	return nil, nil
}

func (s *fakeStore) ListOrderItemsByOrderIDs(_ context.Context, ids []uuid.UUID) ([]database.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.OrderItem
	for _, it := range s.items {
		for _, id := range ids {
			if it.OrderID == id {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ListOrderItemAddonsByItemIDs(_ context.Context, ids []uuid.UUID) ([]database.OrderItemAddon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.OrderItemAddon
	for _, a := range s.itemAddons {
		for _, id := range ids {
			if a.OrderItemID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ListOrderEvents(_ context.Context, orderID uuid.UUID) ([]database.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.OrderEvent
	for _, e := range s.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) GetNextOrderNumber(_ context.Context, branchID uuid.UUID) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int32
	for _, o := range s.orders {
		if o.BranchID == branchID {
			n++
		}
	}
	return n + 1, nil
}

func (s *fakeStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_branch_id_order_number_key"}
	}
	if s.createOrderErr != nil {
		return database.Order{}, s.createOrderErr
	}
	o := database.Order{
		ID:              uuid.New(),
		BranchID:        arg.BranchID,
		OrderNumber:     arg.OrderNumber,
		CustomerName:    arg.CustomerName,
		CustomerPhone:   arg.CustomerPhone,
		CustomerEmail:   arg.CustomerEmail,
		Channel:         arg.Channel,
		DeliveryType:    arg.DeliveryType,
		DeliveryAddress: arg.DeliveryAddress,
		Subtotal:        arg.Subtotal,
		DeliveryFee:     arg.DeliveryFee,
		TotalAmount:     arg.TotalAmount,
		Notes:           arg.Notes,
		Status:          arg.Status,
		CreatedBy:       arg.CreatedBy,
		CreatedAt:       arg.CreatedAt,
		UpdatedAt:       arg.CreatedAt,
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *fakeStore) CreateOrderItem(_ context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := database.OrderItem{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		MenuItemID:  arg.MenuItemID,
		Name:        arg.Name,
		VariantName: arg.VariantName,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
		TotalPrice:  arg.TotalPrice,
		Notes:       arg.Notes,
	}
	s.items = append(s.items, it)
	return it, nil
}

func (s *fakeStore) CreateOrderItemAddon(_ context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := database.OrderItemAddon{
		ID:          uuid.New(),
		OrderItemID: arg.OrderItemID,
		Name:        arg.Name,
		Price:       arg.Price,
		Quantity:    arg.Quantity,
	}
	s.itemAddons = append(s.itemAddons, a)
	return a, nil
}

func (s *fakeStore) CreateOrderEvent(_ context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := database.OrderEvent{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		Status:      arg.Status,
		Description: arg.Description,
		OccurredAt:  arg.OccurredAt,
		CreatedBy:   arg.CreatedBy,
	}
	s.events = append(s.events, e)
	return e, nil
}

func coalesceTime(cur, next pgtype.Timestamptz) pgtype.Timestamptz {
	if cur.Valid {
		return cur
	}
	return next
}

func coalesceText(cur, next pgtype.Text) pgtype.Text {
	if cur.Valid {
		return cur
	}
	return next
}

func (s *fakeStore) UpdateOrderStatus(_ context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[arg.ID]
	if !ok || o.BranchID != arg.BranchID || o.Status != arg.ExpectedStatus {
		return database.Order{}, pgx.ErrNoRows
	}
	s.updates++
	o.Status = arg.Status
	o.PaidAt = coalesceTime(o.PaidAt, arg.PaidAt)
	o.ReadyAt = coalesceTime(o.ReadyAt, arg.ReadyAt)
	o.DispatchedAt = coalesceTime(o.DispatchedAt, arg.DispatchedAt)
	o.DeliveredAt = coalesceTime(o.DeliveredAt, arg.DeliveredAt)
	o.PaymentMethod = coalesceText(o.PaymentMethod, arg.PaymentMethod)
	o.PaymentReference = coalesceText(o.PaymentReference, arg.PaymentReference)
	o.UpdatedAt = arg.UpdatedAt
	s.orders[o.ID] = o
	return o, nil
}

func (s *fakeStore) status(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu  sync.Mutex
	got []events.OrderEvent
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, ev)
	return p.err
}

func (p *recordingPublisher) published() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OrderEvent(nil), p.got...)
}

// --- Test helpers ---

var (
	testBranch = uuid.New()
	testUser   = uuid.New()
	fixedNow   = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
)

func num(s string) pgtype.Numeric {
	return database.DecimalToNumeric(decimal.RequireFromString(s))
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	return database.NumericToDecimal(n).Equal(decimal.RequireFromString(expected))
}

type testEnv struct {
	svc   *OrderService
	store *fakeStore
	tx    *mockTx
	pool  *mockTxBeginner
	pub   *recordingPublisher

	jollof   uuid.UUID
	plantain uuid.UUID
}

// newTestEnv seeds a two-item menu: Jollof Rice (50, Large 70, Extra Chicken
// add-on 15) and Fried Plantain (10).
func newTestEnv() *testEnv {
	store := newFakeStore()
	env := &testEnv{store: store, tx: &mockTx{}, pub: &recordingPublisher{}}
	env.pool = &mockTxBeginner{tx: env.tx}

	env.jollof = uuid.New()
	store.menu[env.jollof] = database.MenuItem{ID: env.jollof, BranchID: testBranch, Name: "Jollof Rice", BasePrice: num("50"), IsActive: true}
	store.variants[env.jollof] = []database.MenuItemVariant{
		{MenuItemID: env.jollof, Name: "Regular", Price: num("50")},
		{MenuItemID: env.jollof, Name: "Large", Price: num("70")},
	}
	store.menuAddons[env.jollof] = []database.MenuItemAddon{{MenuItemID: env.jollof, Name: "Extra Chicken", Price: num("15")}}

	env.plantain = uuid.New()
	store.menu[env.plantain] = database.MenuItem{ID: env.plantain, BranchID: testBranch, Name: "Fried Plantain", BasePrice: num("10"), IsActive: true}

	newStore := func(db database.DBTX) OrderStore { return store }
	reader := repository.NewOrderRepository(store, zerolog.Nop())
	env.svc = NewOrderService(env.pool, newStore, reader, zerolog.Nop(),
		WithPublisher(env.pub),
		WithClock(func() time.Time { return fixedNow }),
	)
	return env
}

func (e *testEnv) deliveryRequest() CreateOrderRequest {
	return CreateOrderRequest{
		BranchID:        testBranch,
		CreatedBy:       testUser,
		CustomerName:    "Ada",
		CustomerPhone:   "08030000000",
		Channel:         model.ChannelWebsite,
		DeliveryType:    model.DeliveryTypeDelivery,
		DeliveryAddress: "12 Allen Avenue",
		DeliveryFee:     decimal.NewFromInt(5),
		Items: []CartItemRequest{
			{MenuItemID: e.jollof, VariantName: "Large", Quantity: 2, Addons: []AddonRequest{{Name: "Extra Chicken", Quantity: 2}}},
			{MenuItemID: e.plantain, Quantity: 1},
		},
	}
}

// seedOrder stores an order directly in status.
func (e *testEnv) seedOrder(status model.OrderStatus) uuid.UUID {
	id := uuid.New()
	e.store.orders[id] = database.Order{
		ID:           id,
		BranchID:     testBranch,
		OrderNumber:  "ORD-0009",
		Channel:      "phone",
		DeliveryType: "pickup",
		Subtotal:     num("40"),
		DeliveryFee:  num("0"),
		TotalAmount:  num("40"),
		Status:       string(status),
		CreatedAt:    pgtype.Timestamptz{Time: fixedNow.Add(-time.Hour), Valid: true},
		UpdatedAt:    pgtype.Timestamptz{Time: fixedNow.Add(-time.Hour), Valid: true},
	}
	e.store.events = append(e.store.events, database.OrderEvent{
		ID:          uuid.New(),
		OrderID:     id,
		Status:      "pending",
		Description: "Order placed",
		OccurredAt:  pgtype.Timestamptz{Time: fixedNow.Add(-time.Hour), Valid: true},
	})
	return id
}

// --- CreateOrder ---

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateOrderRequest)
		want   error
	}{
		{"empty items", func(r *CreateOrderRequest) { r.Items = nil }, model.ErrEmptyItems},
		{"unknown channel", func(r *CreateOrderRequest) { r.Channel = "fax" }, model.ErrInvalidChannel},
		{"unknown delivery type", func(r *CreateOrderRequest) { r.DeliveryType = "drone" }, model.ErrInvalidDeliveryType},
		{"delivery without address", func(r *CreateOrderRequest) { r.DeliveryAddress = "   " }, model.ErrDeliveryAddressRequired},
		{"negative delivery fee", func(r *CreateOrderRequest) { r.DeliveryFee = decimal.NewFromInt(-1) }, model.ErrInvalidAmount},
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }, model.ErrInvalidQuantity},
		{"quantity beyond int32", func(r *CreateOrderRequest) { r.Items[0].Quantity = 1<<32 + 1 }, model.ErrInvalidQuantity},
		{"addon quantity beyond int32", func(r *CreateOrderRequest) { r.Items[0].Addons[0].Quantity = 1<<32 + 1 }, model.ErrInvalidQuantity},
		{"unknown menu item", func(r *CreateOrderRequest) { r.Items[1].MenuItemID = uuid.New() }, model.ErrNotFound},
		{"unknown variant", func(r *CreateOrderRequest) { r.Items[0].VariantName = "Family" }, model.ErrNotFound},
		{"unknown addon", func(r *CreateOrderRequest) { r.Items[0].Addons[0].Name = "Extra Beef" }, model.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			req := env.deliveryRequest()
			tc.mutate(&req)

			_, err := env.svc.CreateOrder(context.Background(), req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(env.store.orders) != 0 {
				t.Errorf("no order should be stored, got %d", len(env.store.orders))
			}
			if env.tx.commits.Load() != 0 {
				t.Error("transaction should not be committed")
			}
			if len(env.pub.published()) != 0 {
				t.Error("nothing should be published")
			}
		})
	}
}

func TestCreateOrder_PricesAndPersists(t *testing.T) {
	env := newTestEnv()

	order, err := env.svc.CreateOrder(context.Background(), env.deliveryRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.OrderNumber != "ORD-0001" {
		t.Errorf("order number: got %s, want ORD-0001", order.OrderNumber)
	}
	if order.Status != model.StatusPending {
		t.Errorf("status: got %s, want pending", order.Status)
	}
	// 2 x 70 + 2 x 15 = 170, plus 10 for plantain
	if !order.Subtotal.Equal(decimal.NewFromInt(180)) {
		t.Errorf("subtotal: got %s, want 180", order.Subtotal)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(185)) {
		t.Errorf("total: got %s, want 185", order.TotalAmount)
	}
	if order.DeliveryAddress == nil || *order.DeliveryAddress != "12 Allen Avenue" {
		t.Errorf("delivery address: got %v", order.DeliveryAddress)
	}
	if !order.CreatedAt.Equal(fixedNow) {
		t.Errorf("created at: got %v, want %v", order.CreatedAt, fixedNow)
	}

	if len(order.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(order.Items))
	}
	jollof := order.Items[0]
	if jollof.VariantName != "Large" || jollof.Quantity != 2 {
		t.Errorf("first item: got %s x%d", jollof.VariantName, jollof.Quantity)
	}
	if !jollof.TotalPrice.Equal(decimal.NewFromInt(140)) {
		t.Errorf("item total price: got %s, want 140 (add-ons excluded)", jollof.TotalPrice)
	}
	if !jollof.LineTotal().Equal(decimal.NewFromInt(170)) {
		t.Errorf("line total: got %s, want 170", jollof.LineTotal())
	}
	lineSum := decimal.Zero
	for _, it := range order.Items {
		lineSum = lineSum.Add(it.LineTotal())
	}
	if !order.Subtotal.Equal(lineSum) {
		t.Errorf("subtotal %s should equal the sum of line totals %s", order.Subtotal, lineSum)
	}
	if len(env.store.itemAddons) != 1 || env.store.itemAddons[0].Quantity != 2 {
		t.Errorf("stored add-ons: %+v", env.store.itemAddons)
	}

	if len(env.store.events) != 1 || env.store.events[0].Description != "Order placed" {
		t.Fatalf("placed event not stored: %+v", env.store.events)
	}
	if uuid.UUID(env.store.events[0].CreatedBy.Bytes) != testUser {
		t.Error("placed event should record who created the order")
	}
	if len(order.Events) != 1 || order.Events[0].Status != model.StatusPending {
		t.Errorf("order events: %+v", order.Events)
	}

	if env.tx.commits.Load() != 1 {
		t.Errorf("commits: got %d, want 1", env.tx.commits.Load())
	}
	got := env.pub.published()
	if len(got) != 1 || got[0].Type != enum.EventOrderCreated || got[0].OrderID != order.ID {
		t.Errorf("published: %+v", got)
	}
}

func TestCreateOrder_MergesRepeatedLines(t *testing.T) {
	env := newTestEnv()
	req := env.deliveryRequest()
	req.Items = []CartItemRequest{
		{MenuItemID: env.jollof, VariantName: "Large", Quantity: 1},
		{MenuItemID: env.jollof, VariantName: "Large", Quantity: 2},
	}

	order, err := env.svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 3 {
		t.Fatalf("expected one merged line of 3, got %+v", order.Items)
	}
	if env.store.menuGets != 1 {
		t.Errorf("menu item should be loaded once, got %d", env.store.menuGets)
	}
}

func TestCreateOrder_PickupIgnoresDeliveryFee(t *testing.T) {
	env := newTestEnv()
	req := env.deliveryRequest()
	req.DeliveryType = model.DeliveryTypePickup
	req.DeliveryAddress = ""

	order, err := env.svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.DeliveryFee.IsZero() {
		t.Errorf("delivery fee: got %s, want 0", order.DeliveryFee)
	}
	if !order.TotalAmount.Equal(order.Subtotal) {
		t.Errorf("total %s should equal subtotal %s", order.TotalAmount, order.Subtotal)
	}
	if order.DeliveryAddress != nil {
		t.Errorf("pickup order should have no address, got %q", *order.DeliveryAddress)
	}
}

func TestCreateOrder_SubsequentOrderNumber(t *testing.T) {
	env := newTestEnv()
	env.seedOrder(model.StatusDelivered)

	order, err := env.svc.CreateOrder(context.Background(), env.deliveryRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.OrderNumber != "ORD-0002" {
		t.Errorf("order number: got %s, want ORD-0002", order.OrderNumber)
	}
}

func TestCreateOrder_RetryOnUniqueViolation(t *testing.T) {
	env := newTestEnv()
	env.store.conflictsLeft = 2

	order, err := env.svc.CreateOrder(context.Background(), env.deliveryRequest())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if order.OrderNumber == "" {
		t.Error("order number should be set")
	}
	if got := env.pool.begins.Load(); got != 3 {
		t.Errorf("transactions begun: got %d, want 3", got)
	}
	if len(env.pub.published()) != 1 {
		t.Error("created event should be published once")
	}
}

func TestCreateOrder_RetryExhausted(t *testing.T) {
	env := newTestEnv()
	env.store.conflictsLeft = maxOrderNumberRetries

	_, err := env.svc.CreateOrder(context.Background(), env.deliveryRequest())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !isOrderNumberConflict(err) {
		t.Errorf("expected the unique violation to be kept, got %v", err)
	}
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if got := env.pool.begins.Load(); got != maxOrderNumberRetries {
		t.Errorf("transactions begun: got %d, want %d", got, maxOrderNumberRetries)
	}
}

func TestCreateOrder_NonUniqueErrorNotRetried(t *testing.T) {
	env := newTestEnv()
	env.store.createOrderErr = errors.New("connection reset")

	_, err := env.svc.CreateOrder(context.Background(), env.deliveryRequest())
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if got := env.pool.begins.Load(); got != 1 {
		t.Errorf("transactions begun: got %d, want 1", got)
	}
}

func TestCreateOrder_BeginFails(t *testing.T) {
	env := newTestEnv()
	env.pool.err = errors.New("pool closed")

	_, err := env.svc.CreateOrder(context.Background(), env.deliveryRequest())
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestCreateOrder_PublishFailureDoesNotFail(t *testing.T) {
	env := newTestEnv()
	env.pub.err = errors.New("broker down")

	if _, err := env.svc.CreateOrder(context.Background(), env.deliveryRequest()); err != nil {
		t.Fatalf("publish failure must not fail the order: %v", err)
	}
}

// --- Quote ---

func TestQuote(t *testing.T) {
	env := newTestEnv()
	req := env.deliveryRequest()

	q, err := env.svc.Quote(context.Background(), QuoteRequest{
		BranchID:     testBranch,
		DeliveryType: req.DeliveryType,
		DeliveryFee:  req.DeliveryFee,
		Items:        req.Items,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Totals.Subtotal.Equal(decimal.NewFromInt(180)) || !q.Totals.Total.Equal(decimal.NewFromInt(185)) {
		t.Errorf("totals: subtotal %s total %s", q.Totals.Subtotal, q.Totals.Total)
	}
	if len(q.Items) != 2 || !q.Totals.Lines[0].Equal(decimal.NewFromInt(170)) {
		t.Errorf("lines: %+v", q.Totals.Lines)
	}
	if len(env.store.orders) != 0 || env.tx.commits.Load() != 0 {
		t.Error("quote must not write anything")
	}
}

func TestQuote_Invalid(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.Quote(context.Background(), QuoteRequest{BranchID: testBranch, DeliveryType: model.DeliveryTypePickup}); !errors.Is(err, model.ErrEmptyItems) {
		t.Errorf("expected ErrEmptyItems, got %v", err)
	}
	_, err := env.svc.Quote(context.Background(), QuoteRequest{
		BranchID:     uuid.New(),
		DeliveryType: model.DeliveryTypePickup,
		Items:        []CartItemRequest{{MenuItemID: env.jollof, Quantity: 1}},
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("menu of another branch should not resolve, got %v", err)
	}
}

// --- TransitionStatus ---

func TestTransitionStatus_PaidWithPayment(t *testing.T) {
	env := newTestEnv()
	id := env.seedOrder(model.StatusPending)

	order, err := env.svc.TransitionStatus(context.Background(), TransitionRequest{
		BranchID:         testBranch,
		OrderID:          id,
		UserID:           testUser,
		Status:           model.StatusPaid,
		PaymentMethod:    model.PaymentMethodCard,
		PaymentReference: "PSK-1234",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Status != model.StatusPaid {
		t.Errorf("status: got %s, want paid", order.Status)
	}
	if order.PaidAt == nil || !order.PaidAt.Equal(fixedNow) {
		t.Errorf("paid_at: got %v, want %v", order.PaidAt, fixedNow)
	}
	if order.PaymentMethod == nil || *order.PaymentMethod != model.PaymentMethodCard {
		t.Errorf("payment method: got %v", order.PaymentMethod)
	}
	if order.PaymentReference == nil || *order.PaymentReference != "PSK-1234" {
		t.Errorf("payment reference: got %v", order.PaymentReference)
	}
	if len(order.Events) != 2 || order.Events[1].Description != "Payment received via card" {
		t.Errorf("events: %+v", order.Events)
	}

	row := env.store.orders[id]
	if row.Status != "paid" || !row.PaidAt.Valid || row.PaymentMethod.String != "card" {
		t.Errorf("stored row not updated: %+v", row)
	}
	if len(env.store.events) != 2 {
		t.Errorf("stored events: got %d, want 2", len(env.store.events))
	}

	got := env.pub.published()
	if len(got) != 1 {
		t.Fatalf("published: got %d events, want 1", len(got))
	}
	if got[0].Type != enum.EventOrderStatusChanged || got[0].PreviousStatus == nil || *got[0].PreviousStatus != model.StatusPending {
		t.Errorf("published event: %+v", got[0])
	}
}

func TestTransitionStatus_TimestampNotOverwritten(t *testing.T) {
	env := newTestEnv()
	id := env.seedOrder(model.StatusPreparing)
	earlier := fixedNow.Add(-30 * time.Minute)
	row := env.store.orders[id]
	row.ReadyAt = pgtype.Timestamptz{Time: earlier, Valid: true}
	env.store.orders[id] = row

	order, err := env.svc.TransitionStatus(context.Background(), TransitionRequest{
		BranchID: testBranch, OrderID: id, UserID: testUser, Status: model.StatusReady,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ReadyAt == nil || !order.ReadyAt.Equal(earlier) {
		t.Errorf("ready_at should keep %v, got %v", earlier, order.ReadyAt)
	}
}

func TestTransitionStatus_Rejected(t *testing.T) {
	tests := []struct {
		name string
		from model.OrderStatus
		to   model.OrderStatus
		want error
	}{
		{"skip ahead", model.StatusPending, model.StatusReady, model.ErrIllegalTransition},
		{"backwards", model.StatusDispatched, model.StatusPreparing, model.ErrIllegalTransition},
		{"cancel delivered", model.StatusDelivered, model.StatusCancelled, model.ErrTerminalState},
		{"revive cancelled", model.StatusCancelled, model.StatusPending, model.ErrTerminalState},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			id := env.seedOrder(tc.from)

			_, err := env.svc.TransitionStatus(context.Background(), TransitionRequest{
				BranchID: testBranch, OrderID: id, UserID: testUser, Status: tc.to,
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var te *model.TransitionError
			if !errors.As(err, &te) || te.From != tc.from || te.To != tc.to || te.OrderID != id {
				t.Errorf("expected TransitionError %s->%s, got %v", tc.from, tc.to, err)
			}
			if env.store.updates != 0 {
				t.Error("no update should be attempted")
			}
			if env.store.status(id) != string(tc.from) {
				t.Errorf("status changed to %s", env.store.status(id))
			}
			if env.tx.commits.Load() != 0 || len(env.pub.published()) != 0 {
				t.Error("nothing should be committed or published")
			}
		})
	}
}

func TestTransitionStatus_NotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.TransitionStatus(context.Background(), TransitionRequest{
		BranchID: testBranch, OrderID: uuid.New(), UserID: testUser, Status: model.StatusPaid,
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransitionStatus_InvalidInput(t *testing.T) {
	env := newTestEnv()
	id := env.seedOrder(model.StatusPending)

	_, err := env.svc.TransitionStatus(context.Background(), TransitionRequest{
		BranchID: testBranch, OrderID: id, Status: "completed-ish",
	})
	if !errors.Is(err, model.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}

	_, err = env.svc.TransitionStatus(context.Background(), TransitionRequest{
		BranchID: testBranch, OrderID: id, Status: model.StatusPaid, PaymentMethod: "crypto",
	})
	if !errors.Is(err, model.ErrInvalidPaymentMethod) {
		t.Errorf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestTransitionStatus_ConflictingUpdate(t *testing.T) {
	env := newTestEnv()
	id := env.seedOrder(model.StatusPending)

	// another device cancels between our read and our write
	env.store.beforeUpdate = func(s *fakeStore) {
		s.mu.Lock()
		o := s.orders[id]
		o.Status = string(model.StatusCancelled)
		s.orders[id] = o
		s.mu.Unlock()
	}

	_, err := env.svc.TransitionStatus(context.Background(), TransitionRequest{
		BranchID: testBranch, OrderID: id, UserID: testUser, Status: model.StatusPaid,
	})
	if !errors.Is(err, model.ErrConflictingUpdate) {
		t.Fatalf("expected ErrConflictingUpdate, got %v", err)
	}
	var te *model.TransitionError
	if !errors.As(err, &te) || te.From != model.StatusPending || te.To != model.StatusPaid {
		t.Errorf("expected TransitionError pending->paid, got %v", err)
	}
	if env.store.status(id) != string(model.StatusCancelled) {
		t.Errorf("the other writer's status must win, got %s", env.store.status(id))
	}
	if len(env.store.events) != 1 {
		t.Errorf("no event should be added, got %d", len(env.store.events))
	}
}

func TestTransitionStatus_ConcurrentWritersOneWins(t *testing.T) {
	env := newTestEnv()
	id := env.seedOrder(model.StatusPending)

	var barrier sync.WaitGroup
	barrier.Add(2)
	env.store.readBarrier = &barrier

	targets := []model.OrderStatus{model.StatusPaid, model.StatusCancelled}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target model.OrderStatus) {
			defer wg.Done()
			_, errs[i] = env.svc.TransitionStatus(context.Background(), TransitionRequest{
				BranchID: testBranch, OrderID: id, UserID: testUser, Status: target,
			})
		}(i, target)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrConflictingUpdate):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("expected one winner and one conflict, got %d ok / %d conflicts", ok, conflicts)
	}
	if env.store.updates != 1 {
		t.Errorf("updates applied: got %d, want 1", env.store.updates)
	}
	if len(env.store.events) != 2 {
		t.Errorf("stored events: got %d, want 2", len(env.store.events))
	}
	if len(env.pub.published()) != 1 {
		t.Errorf("published: got %d, want 1", len(env.pub.published()))
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv()
	id := env.seedOrder(model.StatusDispatched)

	order, err := env.svc.Cancel(context.Background(), testBranch, id, testUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != model.StatusCancelled {
		t.Errorf("status: got %s, want cancelled", order.Status)
	}
	if order.DeliveredAt != nil {
		t.Error("cancel must not stamp delivered_at")
	}
}

func TestGetOrder_UsesReader(t *testing.T) {
	env := newTestEnv()
	id := env.seedOrder(model.StatusReady)

	order, err := env.svc.GetOrder(context.Background(), testBranch, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != model.StatusReady || len(order.Events) != 1 {
		t.Errorf("order: %+v", order)
	}
	if !numericEquals(env.store.orders[id].TotalAmount, "40") || !order.TotalAmount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("total: got %s", order.TotalAmount)
	}

	if _, err := env.svc.GetOrder(context.Background(), uuid.New(), id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("other branch: expected ErrNotFound, got %v", err)
	}
}
