package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kiwari-pos/backoffice/internal/database"
	"github.com/kiwari-pos/backoffice/internal/events"
	"github.com/kiwari-pos/backoffice/internal/lifecycle"
	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/kiwari-pos/backoffice/internal/pricing"
	"github.com/kiwari-pos/backoffice/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	maxOrderNumberRetries = 3
	defaultStoreTimeout   = 5 * time.Second
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and transition orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	repository.MenuQuerier
	repository.OrderQuerier
	GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemAddon(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error)
	CreateOrderEvent(ctx context.Context, arg database.CreateOrderEventParams) (database.OrderEvent, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderReader serves order reads outside a transaction.
// Satisfied by *repository.OrderRepository.
type OrderReader interface {
	GetOrder(ctx context.Context, branchID, id uuid.UUID) (model.Order, error)
	ListOrders(ctx context.Context, f repository.ListFilter) ([]model.Order, error)
}

// CartItemRequest is one requested line: a menu item, an optional variant
// and the chosen add-ons by name.
type CartItemRequest struct {
	MenuItemID  uuid.UUID
	VariantName string
	Quantity    int
	Notes       string
	Addons      []AddonRequest
}

type AddonRequest struct {
	Name     string
	Quantity int
}

// QuoteRequest prices a cart without creating anything.
type QuoteRequest struct {
	BranchID     uuid.UUID
	DeliveryType model.DeliveryType
	DeliveryFee  decimal.Decimal
	Items        []CartItemRequest
}

// Quote is a priced cart.
type Quote struct {
	Items  []model.OrderItem
	Totals pricing.Totals
}

// CreateOrderRequest is the input for placing an order.
type CreateOrderRequest struct {
	BranchID        uuid.UUID
	CreatedBy       uuid.UUID
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	Channel         model.Channel
	DeliveryType    model.DeliveryType
	DeliveryAddress string
	DeliveryFee     decimal.Decimal
	Notes           string
	Items           []CartItemRequest
}

// TransitionRequest moves one order to Status. Payment details are only
// recorded when Status is paid.
type TransitionRequest struct {
	BranchID         uuid.UUID
	OrderID          uuid.UUID
	UserID           uuid.UUID
	Status           model.OrderStatus
	PaymentMethod    model.PaymentMethod
	PaymentReference string
}

// OrderService handles order business logic.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	reader    OrderReader
	publisher events.Publisher
	logger    zerolog.Logger
	timeout   time.Duration
	clock     func() time.Time
}

type Option func(*OrderService)

// WithPublisher sets where committed order changes are announced.
func WithPublisher(p events.Publisher) Option {
	return func(s *OrderService) { s.publisher = p }
}

// WithStoreTimeout bounds every transaction and read.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces time.Now as the source of order timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *OrderService) { s.clock = clock }
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, reader OrderReader, logger zerolog.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		pool:      pool,
		newStore:  newStore,
		reader:    reader,
		publisher: events.Noop{},
		logger:    logger.With().Str("component", "order_service").Logger(),
		timeout:   defaultStoreTimeout,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, model.ErrUpstreamUnavailable) || errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrUpstreamUnavailable, op, err)
}

// buildCart resolves every requested line against the menu and merges them
// through a pricing.Cart.
func buildCart(ctx context.Context, menu *repository.MenuCache, items []CartItemRequest) (*pricing.Cart, error) {
	if len(items) == 0 {
		return nil, model.ErrEmptyItems
	}
	cart := &pricing.Cart{}
	for i, req := range items {
		mi, err := menu.Get(ctx, req.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		addons := make([]model.CartAddon, 0, len(req.Addons))
		for _, a := range req.Addons {
			addon, err := pricing.FindAddon(mi, a.Name)
			if err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
			addons = append(addons, model.CartAddon{Name: addon.Name, Price: addon.Price, Quantity: a.Quantity})
		}
		if err := cart.Add(mi, req.VariantName, req.Quantity, addons, req.Notes); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	return cart, nil
}

// Quote prices a cart against the current menu.
func (s *OrderService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if !req.DeliveryType.Valid() {
		return nil, model.ErrInvalidDeliveryType
	}
	if len(req.Items) == 0 {
		return nil, model.ErrEmptyItems
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cart, err := buildCart(ctx, repository.NewMenuCache(s.newStore(tx), req.BranchID), req.Items)
	if err != nil {
		return nil, err
	}
	totals, err := cart.Totals(req.DeliveryType, req.DeliveryFee)
	if err != nil {
		return nil, err
	}

	q := &Quote{Totals: totals}
	for _, line := range cart.Lines() {
		item, err := pricing.Snapshot(line)
		if err != nil {
			return nil, err
		}
		q.Items = append(q.Items, item)
	}
	return q, nil
}

// CreateOrder validates, prices and stores an order with its first timeline
// event atomically.
// Retries up to maxOrderNumberRetries times on order_number unique constraint
// violations (concurrent transactions reading the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	if len(req.Items) == 0 {
		return model.Order{}, model.ErrEmptyItems
	}
	if !req.Channel.Valid() {
		return model.Order{}, fmt.Errorf("%w: %q", model.ErrInvalidChannel, req.Channel)
	}
	if !req.DeliveryType.Valid() {
		return model.Order{}, fmt.Errorf("%w: %q", model.ErrInvalidDeliveryType, req.DeliveryType)
	}
	req.DeliveryAddress = strings.TrimSpace(req.DeliveryAddress)
	if req.DeliveryType == model.DeliveryTypeDelivery && req.DeliveryAddress == "" {
		return model.Order{}, model.ErrDeliveryAddressRequired
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order, err := s.createOrderTx(ctx, req)
		if err == nil {
			s.publish(ctx, events.Created(order))
			return order, nil
		}
		if isOrderNumberConflict(err) {
			s.logger.Warn().Int("attempt", attempt+1).Str("branch_id", req.BranchID.String()).Msg("order number taken, retrying")
			lastErr = err
			continue
		}
		return model.Order{}, err
	}
	return model.Order{}, storeErr("create order", lastErr)
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_branch_id_order_number_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, storeErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	cart, err := buildCart(ctx, repository.NewMenuCache(store, req.BranchID), req.Items)
	if err != nil {
		return model.Order{}, err
	}
	totals, err := cart.Totals(req.DeliveryType, req.DeliveryFee)
	if err != nil {
		return model.Order{}, err
	}

	seq, err := store.GetNextOrderNumber(ctx, req.BranchID)
	if err != nil {
		return model.Order{}, storeErr("next order number", err)
	}

	now := s.clock()
	params := database.CreateOrderParams{
		BranchID:      req.BranchID,
		OrderNumber:   fmt.Sprintf("ORD-%04d", seq),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Channel:       string(req.Channel),
		DeliveryType:  string(req.DeliveryType),
		Subtotal:      database.DecimalToNumeric(totals.Subtotal),
		DeliveryFee:   database.DecimalToNumeric(totals.DeliveryFee),
		TotalAmount:   database.DecimalToNumeric(totals.Total),
		Notes:         database.Text(req.Notes),
		Status:        string(model.StatusPending),
		CreatedBy:     req.CreatedBy,
		CreatedAt:     database.Timestamptz(now),
	}
	if req.DeliveryType == model.DeliveryTypeDelivery {
		params.DeliveryAddress = database.Text(req.DeliveryAddress)
	}

	row, err := store.CreateOrder(ctx, params)
	if err != nil {
		// keep the pg error visible to isOrderNumberConflict
		if isOrderNumberConflict(err) {
			return model.Order{}, err
		}
		return model.Order{}, storeErr("insert order", err)
	}
	order := repository.OrderFromRow(row)

	for i, line := range cart.Lines() {
		item, err := pricing.Snapshot(line)
		if err != nil {
			return model.Order{}, fmt.Errorf("items[%d]: %w", i, err)
		}
		itemRow, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:     order.ID,
			MenuItemID:  item.MenuItemID,
			Name:        item.Name,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			UnitPrice:   database.DecimalToNumeric(item.UnitPrice),
			TotalPrice:  database.DecimalToNumeric(item.TotalPrice),
			Notes:       database.Text(item.Notes),
		})
		if err != nil {
			return model.Order{}, storeErr(fmt.Sprintf("insert item %d", i), err)
		}

		addonRows := make([]database.OrderItemAddon, 0, len(item.Addons))
		for _, a := range item.Addons {
			addonRow, err := store.CreateOrderItemAddon(ctx, database.CreateOrderItemAddonParams{
				OrderItemID: itemRow.ID,
				Name:        a.Name,
				Price:       database.DecimalToNumeric(a.Price),
				Quantity:    a.Quantity,
			})
			if err != nil {
				return model.Order{}, storeErr(fmt.Sprintf("insert addon for item %d", i), err)
			}
			addonRows = append(addonRows, addonRow)
		}
		order.Items = append(order.Items, repository.ItemFromRow(itemRow, addonRows))
	}

	placed := lifecycle.PlacedEvent(order.CreatedAt)
	if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
		OrderID:     order.ID,
		Status:      string(placed.Status),
		Description: placed.Description,
		OccurredAt:  database.Timestamptz(placed.OccurredAt),
		CreatedBy:   database.UUID(req.CreatedBy),
	}); err != nil {
		return model.Order{}, storeErr("insert placed event", err)
	}
	order.Events = []model.TimelineEvent{placed}

	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, storeErr("commit tx", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("order created")
	return order, nil
}

// TransitionStatus applies one lifecycle transition with a compare-and-set
// write. If another writer moved the order first, the result is a
// *model.TransitionError wrapping model.ErrConflictingUpdate and nothing is
// written.
func (s *OrderService) TransitionStatus(ctx context.Context, req TransitionRequest) (model.Order, error) {
	if !req.Status.Valid() {
		return model.Order{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, req.Status)
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return model.Order{}, fmt.Errorf("%w: %q", model.ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Order{}, storeErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	current, err := repository.NewOrderRepository(store, s.logger).GetOrder(ctx, req.BranchID, req.OrderID)
	if err != nil {
		return model.Order{}, err
	}

	var opts []lifecycle.Option
	if req.PaymentMethod != "" {
		opts = append(opts, lifecycle.WithPayment(req.PaymentMethod, strings.TrimSpace(req.PaymentReference)))
	}
	updated, ev, err := lifecycle.Transition(current, req.Status, s.clock(), opts...)
	if err != nil {
		return model.Order{}, err
	}

	params := database.UpdateOrderStatusParams{
		ID:             current.ID,
		BranchID:       current.BranchID,
		ExpectedStatus: string(current.Status),
		Status:         string(updated.Status),
		PaidAt:         database.TimestamptzPtr(updated.PaidAt),
		ReadyAt:        database.TimestamptzPtr(updated.ReadyAt),
		DispatchedAt:   database.TimestamptzPtr(updated.DispatchedAt),
		DeliveredAt:    database.TimestamptzPtr(updated.DeliveredAt),
		UpdatedAt:      database.Timestamptz(updated.UpdatedAt),
	}
	if updated.PaymentMethod != nil {
		params.PaymentMethod = database.Text(string(*updated.PaymentMethod))
	}
	params.PaymentReference = database.TextPtr(updated.PaymentReference)

	row, err := store.UpdateOrderStatus(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Info().
				Str("order_id", current.ID.String()).
				Str("from", string(current.Status)).
				Str("to", string(req.Status)).
				Msg("status changed concurrently")
			return model.Order{}, &model.TransitionError{
				OrderID: current.ID,
				From:    current.Status,
				To:      req.Status,
				Err:     model.ErrConflictingUpdate,
			}
		}
		return model.Order{}, storeErr("update order status", err)
	}

	if _, err := store.CreateOrderEvent(ctx, database.CreateOrderEventParams{
		OrderID:     current.ID,
		Status:      string(ev.Status),
		Description: ev.Description,
		OccurredAt:  database.Timestamptz(ev.OccurredAt),
		CreatedBy:   database.UUID(req.UserID),
	}); err != nil {
		return model.Order{}, storeErr("insert status event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, storeErr("commit tx", err)
	}

	result := repository.OrderFromRow(row)
	result.Items = current.Items
	result.Events = updated.Events

	s.logger.Info().
		Str("order_id", result.ID.String()).
		Str("from", string(current.Status)).
		Str("to", string(result.Status)).
		Msg("order status changed")
	s.publish(ctx, events.StatusChanged(result, current.Status, ev))
	return result, nil
}

// Cancel moves an order to cancelled from any non-terminal status.
func (s *OrderService) Cancel(ctx context.Context, branchID, orderID, userID uuid.UUID) (model.Order, error) {
	return s.TransitionStatus(ctx, TransitionRequest{
		BranchID: branchID,
		OrderID:  orderID,
		UserID:   userID,
		Status:   model.StatusCancelled,
	})
}

// GetOrder loads one order with items and events.
func (s *OrderService) GetOrder(ctx context.Context, branchID, id uuid.UUID) (model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.reader.GetOrder(ctx, branchID, id)
}

// ListOrders returns one page of a branch's orders.
func (s *OrderService) ListOrders(ctx context.Context, f repository.ListFilter) ([]model.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.reader.ListOrders(ctx, f)
}

// publish announces a committed change. Failures are logged only: the
// change is already durable.
func (s *OrderService) publish(ctx context.Context, ev events.OrderEvent) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn().Err(err).
			Str("type", ev.Type).
			Str("order_id", ev.OrderID.String()).
			Msg("failed to publish order event")
	}
}
