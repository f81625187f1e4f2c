package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/backoffice/internal/aggregate"
	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/kiwari-pos/backoffice/internal/report"
	"github.com/rs/zerolog"
)

// ReportServicer defines the report methods needed by report handlers.
// Satisfied by *report.Service.
type ReportServicer interface {
	Location() *time.Location
	TodaysSummary(ctx context.Context, branchID uuid.UUID, now time.Time) (report.TodaySummary, error)
	SalesReport(ctx context.Context, branchID uuid.UUID, w aggregate.Window, groupBy aggregate.Granularity) (report.SalesReport, error)
	CustomerSegments(ctx context.Context, branchID uuid.UUID, w aggregate.Window) (aggregate.Segments, error)
	FulfillmentFunnel(ctx context.Context, branchID uuid.UUID, w aggregate.Window) ([]aggregate.FunnelStage, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	svc    ReportServicer
	logger zerolog.Logger
	now    func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. now defaults to time.Now.
func NewReportsHandler(svc ReportServicer, logger zerolog.Logger, now func() time.Time) *ReportsHandler {
	if now == nil {
		now = time.Now
	}
	return &ReportsHandler{
		svc:    svc,
		logger: logger.With().Str("component", "reports_handler").Logger(),
		now:    now,
	}
}

// RegisterRoutes registers branch-scoped report endpoints.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/today", h.Today)
	r.Get("/sales", h.Sales)
	r.Get("/customers", h.Customers)
	r.Get("/funnel", h.Funnel)
}

// --- Response types ---

type breakdownResponse struct {
	Key        string `json:"key"`
	Amount     string `json:"amount"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

type itemStatResponse struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Revenue  string `json:"revenue"`
}

type bucketResponse struct {
	Start   time.Time `json:"start"`
	Revenue string    `json:"revenue"`
	Count   int       `json:"count"`
}

type metricsResponse struct {
	StartDate         string              `json:"start_date"`
	EndDate           string              `json:"end_date"`
	OrderCount        int                 `json:"order_count"`
	DeliveredCount    int                 `json:"delivered_count"`
	Revenue           string              `json:"revenue"`
	AverageOrderValue string              `json:"average_order_value"`
	StatusCounts      map[string]int      `json:"status_counts"`
	ByChannel         []breakdownResponse `json:"by_channel"`
	ByPaymentMethod   []breakdownResponse `json:"by_payment_method"`
	TopItems          []itemStatResponse  `json:"top_items"`
	Series            []bucketResponse    `json:"series"`
}

type todayResponse struct {
	Date                string          `json:"date"`
	ActiveOrders        int             `json:"active_orders"`
	YesterdayRevenue    string          `json:"yesterday_revenue"`
	YesterdayOrders     int             `json:"yesterday_orders"`
	RevenueChangePct    *string         `json:"revenue_change_pct"`
	OrderCountChangePct *string         `json:"order_count_change_pct"`
	Metrics             metricsResponse `json:"metrics"`
}

type salesResponse struct {
	GroupBy string          `json:"group_by"`
	Metrics metricsResponse `json:"metrics"`
}

type segmentResponse struct {
	Customers  int    `json:"customers"`
	Orders     int    `json:"orders"`
	Revenue    string `json:"revenue"`
	Percentage string `json:"percentage"`
}

type customerResponse struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	OrderCount int    `json:"order_count"`
	Spend      string `json:"spend"`
}

type customersResponse struct {
	TotalCustomers int                `json:"total_customers"`
	New            segmentResponse    `json:"new"`
	Returning      segmentResponse    `json:"returning"`
	TopCustomers   []customerResponse `json:"top_customers"`
}

type funnelStageResponse struct {
	Stage      string `json:"stage"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
	DropOff    int    `json:"drop_off"`
	DropOffPct string `json:"drop_off_pct"`
}

// --- Handlers ---

// Today handles GET /branches/{bid}/reports/today.
func (h *ReportsHandler) Today(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	sum, err := h.svc.TodaysSummary(r.Context(), branchID, h.now())
	if err != nil {
		writeError(w, h.logger, "today summary", err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, todayResponse{
		Date:                sum.Date,
		ActiveOrders:        sum.ActiveOrders,
		YesterdayRevenue:    money(sum.YesterdayRevenue),
		YesterdayOrders:     sum.YesterdayOrders,
		RevenueChangePct:    pct(sum.RevenueChangePct),
		OrderCountChangePct: pct(sum.OrderCountChangePct),
		Metrics:             toMetricsResponse(sum.Metrics),
	})
}

// Sales handles GET /branches/{bid}/reports/sales?start_date=&end_date=&group_by=.
func (h *ReportsHandler) Sales(w http.ResponseWriter, r *http.Request) {
	branchID, win, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	rep, err := h.svc.SalesReport(r.Context(), branchID, win, aggregate.Granularity(r.URL.Query().Get("group_by")))
	if err != nil {
		writeError(w, h.logger, "sales report", err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, salesResponse{
		GroupBy: string(rep.GroupBy),
		Metrics: toMetricsResponse(rep.Metrics),
	})
}

// Customers handles GET /branches/{bid}/reports/customers.
func (h *ReportsHandler) Customers(w http.ResponseWriter, r *http.Request) {
	branchID, win, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	seg, err := h.svc.CustomerSegments(r.Context(), branchID, win)
	if err != nil {
		writeError(w, h.logger, "customer segments", err)
		return
	}

	resp := customersResponse{
		TotalCustomers: seg.TotalCustomers,
		New:            toSegmentResponse(seg.New),
		Returning:      toSegmentResponse(seg.Returning),
		TopCustomers:   make([]customerResponse, len(seg.TopCustomers)),
	}
	for i, c := range seg.TopCustomers {
		resp.TopCustomers[i] = customerResponse{
			Name:       c.Name,
			Phone:      c.Phone,
			Email:      c.Email,
			OrderCount: c.OrderCount,
			Spend:      money(c.Spend),
		}
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// Funnel handles GET /branches/{bid}/reports/funnel.
func (h *ReportsHandler) Funnel(w http.ResponseWriter, r *http.Request) {
	branchID, win, ok := h.parseRange(w, r)
	if !ok {
		return
	}

	stages, err := h.svc.FulfillmentFunnel(r.Context(), branchID, win)
	if err != nil {
		writeError(w, h.logger, "fulfillment funnel", err)
		return
	}

	resp := make([]funnelStageResponse, len(stages))
	for i, s := range stages {
		resp[i] = funnelStageResponse{
			Stage:      s.Name,
			Count:      s.Count,
			Percentage: s.Percentage.StringFixed(1),
			DropOff:    s.DropOff,
			DropOffPct: s.DropOffPct.StringFixed(1),
		}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{"stages": resp})
}

// --- Helpers ---

func (h *ReportsHandler) parseRange(w http.ResponseWriter, r *http.Request) (uuid.UUID, aggregate.Window, bool) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return uuid.Nil, aggregate.Window{}, false
	}
	q := r.URL.Query()
	win, err := report.ParseRange(q.Get("start_date"), q.Get("end_date"), h.now(), h.svc.Location())
	if err != nil {
		writeError(w, h.logger, "parse range", err)
		return uuid.Nil, aggregate.Window{}, false
	}
	return branchID, win, true
}

func toMetricsResponse(m aggregate.Metrics) metricsResponse {
	resp := metricsResponse{
		OrderCount:        m.OrderCount,
		DeliveredCount:    m.DeliveredCount,
		Revenue:           money(m.Revenue),
		AverageOrderValue: money(m.AverageOrderValue),
		StatusCounts:      make(map[string]int, len(model.AllStatuses())),
		ByChannel:         toBreakdownResponse(m.ByChannel),
		ByPaymentMethod:   toBreakdownResponse(m.ByPaymentMethod),
		TopItems:          make([]itemStatResponse, len(m.TopItems)),
		Series:            make([]bucketResponse, len(m.Series)),
	}
	if !m.Window.From.IsZero() {
		resp.StartDate = m.Window.From.Format(dateLayout)
		// Window.To is exclusive; report the last day covered.
		resp.EndDate = m.Window.To.AddDate(0, 0, -1).Format(dateLayout)
	}
	for _, st := range model.AllStatuses() {
		resp.StatusCounts[string(st)] = m.StatusCounts[st]
	}
	for i, it := range m.TopItems {
		resp.TopItems[i] = itemStatResponse{Name: it.Name, Quantity: it.Quantity, Revenue: money(it.Revenue)}
	}
	for i, b := range m.Series {
		resp.Series[i] = bucketResponse{Start: b.Start, Revenue: money(b.Revenue), Count: b.Count}
	}
	return resp
}

func toBreakdownResponse(rows []aggregate.BreakdownRow) []breakdownResponse {
	out := make([]breakdownResponse, len(rows))
	for i, row := range rows {
		out[i] = breakdownResponse{
			Key:        row.Key,
			Amount:     money(row.Amount),
			Count:      row.Count,
			Percentage: row.Percentage.StringFixed(1),
		}
	}
	return out
}

func toSegmentResponse(s aggregate.Segment) segmentResponse {
	return segmentResponse{
		Customers:  s.Customers,
		Orders:     s.Orders,
		Revenue:    money(s.Revenue),
		Percentage: s.Percentage.StringFixed(1),
	}
}
