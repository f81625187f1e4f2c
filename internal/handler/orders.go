package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/backoffice/internal/lifecycle"
	"github.com/kiwari-pos/backoffice/internal/middleware"
	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/kiwari-pos/backoffice/internal/pricing"
	"github.com/kiwari-pos/backoffice/internal/report"
	"github.com/kiwari-pos/backoffice/internal/repository"
	"github.com/kiwari-pos/backoffice/internal/service"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	dateLayout       = "2006-01-02"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Quote(ctx context.Context, req service.QuoteRequest) (*service.Quote, error)
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (model.Order, error)
	TransitionStatus(ctx context.Context, req service.TransitionRequest) (model.Order, error)
	Cancel(ctx context.Context, branchID, orderID, userID uuid.UUID) (model.Order, error)
	GetOrder(ctx context.Context, branchID, id uuid.UUID) (model.Order, error)
	ListOrders(ctx context.Context, f repository.ListFilter) ([]model.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger zerolog.Logger
	loc    *time.Location
}

// NewOrderHandler creates a new OrderHandler. List date filters are read as
// calendar days in loc.
func NewOrderHandler(svc OrderServicer, loc *time.Location, logger zerolog.Logger) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandler{
		svc:    svc,
		logger: logger.With().Str("component", "order_handler").Logger(),
		loc:    loc,
	}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
}

// RegisterCartRoutes registers cart pricing endpoints.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/cart
func (h *OrderHandler) RegisterCartRoutes(r chi.Router) {
	r.Post("/quote", h.Quote)
}

// --- Request / Response types ---

type cartItemRequest struct {
	MenuItemID string         `json:"menu_item_id"`
	Variant    string         `json:"variant"`
	Quantity   int            `json:"quantity"`
	Notes      string         `json:"notes"`
	Addons     []addonRequest `json:"addons"`
}

type addonRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type quoteRequest struct {
	DeliveryType string            `json:"delivery_type"`
	DeliveryFee  string            `json:"delivery_fee"`
	Items        []cartItemRequest `json:"items"`
}

type createOrderRequest struct {
	CustomerName    string            `json:"customer_name"`
	CustomerPhone   string            `json:"customer_phone"`
	CustomerEmail   string            `json:"customer_email"`
	Channel         string            `json:"channel"`
	DeliveryType    string            `json:"delivery_type"`
	DeliveryAddress string            `json:"delivery_address"`
	DeliveryFee     string            `json:"delivery_fee"`
	Notes           string            `json:"notes"`
	Items           []cartItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status           string `json:"status"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	BranchID         uuid.UUID           `json:"branch_id"`
	OrderNumber      string              `json:"order_number"`
	CustomerName     string              `json:"customer_name"`
	CustomerPhone    string              `json:"customer_phone,omitempty"`
	CustomerEmail    string              `json:"customer_email,omitempty"`
	Channel          string              `json:"channel"`
	DeliveryType     string              `json:"delivery_type"`
	DeliveryAddress  *string             `json:"delivery_address"`
	Subtotal         string              `json:"subtotal"`
	DeliveryFee      string              `json:"delivery_fee"`
	TotalAmount      string              `json:"total_amount"`
	PaymentMethod    *string             `json:"payment_method"`
	PaymentReference *string             `json:"payment_reference"`
	Notes            string              `json:"notes,omitempty"`
	Status           string              `json:"status"`
	StatusLabel      string              `json:"status_label"`
	PaidAt           *time.Time          `json:"paid_at"`
	ReadyAt          *time.Time          `json:"ready_at"`
	DispatchedAt     *time.Time          `json:"dispatched_at"`
	DeliveredAt      *time.Time          `json:"delivered_at"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Items            []orderItemResponse `json:"items"`
	Timeline         []timelineResponse  `json:"timeline,omitempty"`
}

type orderItemResponse struct {
	ID          uuid.UUID                `json:"id"`
	MenuItemID  uuid.UUID                `json:"menu_item_id"`
	Name        string                   `json:"name"`
	VariantName string                   `json:"variant,omitempty"`
	Quantity    int32                    `json:"quantity"`
	UnitPrice   string                   `json:"unit_price"`
	TotalPrice  string                   `json:"total_price"`
	LineTotal   string                   `json:"line_total"`
	Notes       string                   `json:"notes,omitempty"`
	Addons      []orderItemAddonResponse `json:"addons"`
}

type orderItemAddonResponse struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int32  `json:"quantity"`
}

type timelineResponse struct {
	Status      string     `json:"status"`
	Description string     `json:"description"`
	OccurredAt  *time.Time `json:"occurred_at"`
	Completed   bool       `json:"completed"`
}

type quoteResponse struct {
	Items       []orderItemResponse `json:"items"`
	Subtotal    string              `json:"subtotal"`
	DeliveryFee string              `json:"delivery_fee"`
	Total       string              `json:"total"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Quote handles POST /branches/{bid}/cart/quote. Prices a cart without
// placing it.
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	fee, err := parseFee(req.DeliveryFee)
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid delivery_fee"})
		return
	}
	items, msg := parseItems(req.Items)
	if msg != "" {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	q, err := h.svc.Quote(r.Context(), service.QuoteRequest{
		BranchID:     branchID,
		DeliveryType: model.DeliveryType(req.DeliveryType),
		DeliveryFee:  fee,
		Items:        items,
	})
	if err != nil {
		writeError(w, h.logger, "quote", err)
		return
	}

	resp := quoteResponse{
		Items:       make([]orderItemResponse, len(q.Items)),
		Subtotal:    money(q.Totals.Subtotal),
		DeliveryFee: money(q.Totals.DeliveryFee),
		Total:       money(q.Totals.Total),
	}
	for i, it := range q.Items {
		resp.Items[i] = toOrderItemResponse(it)
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Create handles POST /branches/{bid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, h.logger, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.CustomerName == "" {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "customer_name is required"})
		return
	}
	fee, err := parseFee(req.DeliveryFee)
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid delivery_fee"})
		return
	}
	items, msg := parseItems(req.Items)
	if msg != "" {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		BranchID:        branchID,
		CreatedBy:       claims.UserID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		Channel:         model.Channel(req.Channel),
		DeliveryType:    model.DeliveryType(req.DeliveryType),
		DeliveryAddress: req.DeliveryAddress,
		DeliveryFee:     fee,
		Notes:           req.Notes,
		Items:           items,
	})
	if err != nil {
		writeError(w, h.logger, "create order", err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, toOrderResponse(order, true))
}

// List handles GET /branches/{bid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	q := r.URL.Query()
	f := repository.ListFilter{BranchID: branchID, Limit: defaultListLimit}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		f.Limit = int32(min(n, maxListLimit))
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		f.Offset = int32(n)
	}
	if v := q.Get("status"); v != "" {
		st, err := model.ParseOrderStatus(v)
		if err != nil {
			writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		f.Status = &st
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, h.loc)
		if err != nil {
			writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		f.From = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, h.loc)
		if err != nil {
			writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "end_date must be YYYY-MM-DD"})
			return
		}
		end := t.AddDate(0, 0, 1)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": report.ErrInvalidRange.Error() + ": start_date is after end_date"})
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, "list orders", err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Limit:  int(f.Limit),
		Offset: int(f.Offset),
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o, false)
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Get handles GET /branches/{bid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(r.Context(), branchID, orderID)
	if err != nil {
		writeError(w, h.logger, "get order", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toOrderResponse(order, true))
}

// UpdateStatus handles PATCH /branches/{bid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	branchID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, h.logger, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	order, err := h.svc.TransitionStatus(r.Context(), service.TransitionRequest{
		BranchID:         branchID,
		OrderID:          orderID,
		UserID:           claims.UserID,
		Status:           status,
		PaymentMethod:    model.PaymentMethod(req.PaymentMethod),
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		writeError(w, h.logger, "update status", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toOrderResponse(order, true))
}

// Cancel handles DELETE /branches/{bid}/orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	branchID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, h.logger, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	order, err := h.svc.Cancel(r.Context(), branchID, orderID, claims.UserID)
	if err != nil {
		writeError(w, h.logger, "cancel order", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, toOrderResponse(order, true))
}

// --- Helpers ---

func (h *OrderHandler) parseOrderPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return branchID, orderID, true
}

func parseFee(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseItems converts request lines. A non-empty message means the request
// is malformed; quantity and menu checks are left to the service.
func parseItems(in []cartItemRequest) ([]service.CartItemRequest, string) {
	if len(in) == 0 {
		return nil, model.ErrEmptyItems.Error()
	}
	out := make([]service.CartItemRequest, len(in))
	for i, it := range in {
		id, err := uuid.Parse(it.MenuItemID)
		if err != nil {
			return nil, formatItemError(i, "invalid menu_item_id")
		}
		if it.Quantity <= 0 || it.Quantity > pricing.MaxQuantity {
			return nil, formatItemError(i, model.ErrInvalidQuantity.Error())
		}
		item := service.CartItemRequest{
			MenuItemID:  id,
			VariantName: it.Variant,
			Quantity:    it.Quantity,
			Notes:       it.Notes,
		}
		for j, a := range it.Addons {
			if a.Name == "" {
				return nil, formatItemError(i, "addons["+strconv.Itoa(j)+"]: name is required")
			}
			qty := a.Quantity
			if qty == 0 {
				qty = 1
			}
			if qty < 0 || qty > pricing.MaxQuantity {
				return nil, formatItemError(i, "addons["+strconv.Itoa(j)+"]: "+model.ErrInvalidQuantity.Error())
			}
			item.Addons = append(item.Addons, service.AddonRequest{Name: a.Name, Quantity: qty})
		}
		out[i] = item
	}
	return out, ""
}

func toOrderResponse(o model.Order, withTimeline bool) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		BranchID:         o.BranchID,
		OrderNumber:      o.OrderNumber,
		CustomerName:     o.CustomerName,
		CustomerPhone:    o.CustomerPhone,
		CustomerEmail:    o.CustomerEmail,
		Channel:          string(o.Channel),
		DeliveryType:     string(o.DeliveryType),
		DeliveryAddress:  o.DeliveryAddress,
		Subtotal:         money(o.Subtotal),
		DeliveryFee:      money(o.DeliveryFee),
		TotalAmount:      money(o.TotalAmount),
		PaymentReference: o.PaymentReference,
		Notes:            o.Notes,
		Status:           string(o.Status),
		StatusLabel:      o.Status.Label(),
		PaidAt:           o.PaidAt,
		ReadyAt:          o.ReadyAt,
		DispatchedAt:     o.DispatchedAt,
		DeliveredAt:      o.DeliveredAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            make([]orderItemResponse, len(o.Items)),
	}
	if o.PaymentMethod != nil {
		pm := string(*o.PaymentMethod)
		resp.PaymentMethod = &pm
	}
	for i, it := range o.Items {
		resp.Items[i] = toOrderItemResponse(it)
	}
	if withTimeline {
		for _, ev := range lifecycle.Timeline(o) {
			tr := timelineResponse{
				Status:      string(ev.Status),
				Description: ev.Description,
				Completed:   ev.Completed,
			}
			if !ev.OccurredAt.IsZero() {
				at := ev.OccurredAt
				tr.OccurredAt = &at
			}
			resp.Timeline = append(resp.Timeline, tr)
		}
	}
	return resp
}

func toOrderItemResponse(it model.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:          it.ID,
		MenuItemID:  it.MenuItemID,
		Name:        it.Name,
		VariantName: it.VariantName,
		Quantity:    it.Quantity,
		UnitPrice:   money(it.UnitPrice),
		TotalPrice:  money(it.TotalPrice),
		LineTotal:   money(it.LineTotal()),
		Notes:       it.Notes,
		Addons:      make([]orderItemAddonResponse, len(it.Addons)),
	}
	for i, a := range it.Addons {
		resp.Addons[i] = orderItemAddonResponse{Name: a.Name, Price: money(a.Price), Quantity: a.Quantity}
	}
	return resp
}
