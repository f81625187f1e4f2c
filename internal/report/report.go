// Package report is the reporting facade. Each method picks the window and
// grouping a screen needs, fetches the branch's orders and hands them to
// the aggregate package.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/backoffice/internal/aggregate"
	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTopItems     = 5
	defaultTopCustomers = 10
)

// OrderReader loads every order of a branch created in [from, to), with
// items and add-ons. Satisfied by *repository.OrderRepository.
type OrderReader interface {
	ListOrdersInRange(ctx context.Context, branchID uuid.UUID, from, to time.Time) ([]model.Order, error)
}

// Service answers report queries.
type Service struct {
	reader  OrderReader
	loc     *time.Location
	timeout time.Duration
	logger  zerolog.Logger
}

// NewService creates a Service. Days are cut in loc; timeout bounds every
// store call (zero means no extra bound).
func NewService(reader OrderReader, loc *time.Location, timeout time.Duration, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		reader:  reader,
		loc:     loc,
		timeout: timeout,
		logger:  logger.With().Str("component", "report").Logger(),
	}
}

// Location is the timezone reports are cut in.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) fetch(ctx context.Context, branchID uuid.UUID, w aggregate.Window) ([]model.Order, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	orders, err := s.reader.ListOrdersInRange(ctx, branchID, w.From, w.To)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("branch_id", branchID.String()).
			Time("from", w.From).
			Time("to", w.To).
			Msg("order fetch failed")
		if errors.Is(err, model.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: list orders: %w", model.ErrUpstreamUnavailable, err)
	}
	return orders, nil
}

// --- Today ---

// TodaySummary is the dashboard header: today's figures plus a comparison
// against yesterday.
type TodaySummary struct {
	Date                string
	Metrics             aggregate.Metrics
	ActiveOrders        int
	YesterdayRevenue    decimal.Decimal
	YesterdayOrders     int
	RevenueChangePct    *decimal.Decimal
	OrderCountChangePct *decimal.Decimal
}

// TodaysSummary aggregates the calendar day containing now and the day
// before it. Both days are fetched concurrently.
func (s *Service) TodaysSummary(ctx context.Context, branchID uuid.UUID, now time.Time) (TodaySummary, error) {
	today := aggregate.DayOf(now, s.loc)
	yesterday := today.Previous()

	var todayOrders, yesterdayOrders []model.Order
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		todayOrders, err = s.fetch(gctx, branchID, today)
		return err
	})
	g.Go(func() error {
		var err error
		yesterdayOrders, err = s.fetch(gctx, branchID, yesterday)
		return err
	})
	if err := g.Wait(); err != nil {
		return TodaySummary{}, err
	}

	m := aggregate.Aggregate(todayOrders, today, aggregate.Options{
		TopN:        defaultTopItems,
		Granularity: aggregate.Hourly,
	})
	prev := aggregate.Aggregate(yesterdayOrders, yesterday, aggregate.Options{})

	active := 0
	for st, n := range m.StatusCounts {
		if !st.IsTerminal() {
			active += n
		}
	}

	countChange := aggregate.PercentChange(
		decimal.NewFromInt(int64(m.OrderCount)),
		decimal.NewFromInt(int64(prev.OrderCount)),
	)

	return TodaySummary{
		Date:                today.From.Format(dateLayout),
		Metrics:             m,
		ActiveOrders:        active,
		YesterdayRevenue:    prev.Revenue,
		YesterdayOrders:     prev.OrderCount,
		RevenueChangePct:    aggregate.PercentChange(m.Revenue, prev.Revenue),
		OrderCountChangePct: countChange,
	}, nil
}

// --- Sales ---

// SalesReport is a date-ranged roll-up with a time series.
type SalesReport struct {
	GroupBy aggregate.Granularity
	Metrics aggregate.Metrics
}

// SalesReport aggregates w with the series grouped by groupBy (daily when
// empty).
func (s *Service) SalesReport(ctx context.Context, branchID uuid.UUID, w aggregate.Window, groupBy aggregate.Granularity) (SalesReport, error) {
	if groupBy == "" {
		groupBy = aggregate.Daily
	}
	if !groupBy.Valid() {
		return SalesReport{}, fmt.Errorf("%w: group_by %q", ErrInvalidRange, groupBy)
	}
	w.Location = s.loc
	orders, err := s.fetch(ctx, branchID, w)
	if err != nil {
		return SalesReport{}, err
	}
	return SalesReport{
		GroupBy: groupBy,
		Metrics: aggregate.Aggregate(orders, w, aggregate.Options{
			TopN:        defaultTopItems,
			Granularity: groupBy,
		}),
	}, nil
}

// --- Customers ---

// CustomerSegments splits the window's delivered customers into new and
// returning.
func (s *Service) CustomerSegments(ctx context.Context, branchID uuid.UUID, w aggregate.Window) (aggregate.Segments, error) {
	w.Location = s.loc
	orders, err := s.fetch(ctx, branchID, w)
	if err != nil {
		return aggregate.Segments{}, err
	}
	return aggregate.CustomerSegments(aggregate.InWindow(orders, w), defaultTopCustomers), nil
}

// --- Funnel ---

// Funnel stage names, in order.
const (
	StagePlaced     = "placed"
	StagePaid       = "paid"
	StageDispatched = "dispatched"
	StageDelivered  = "delivered"
)

// FulfillmentFunnel counts how far the window's orders got. An order counts
// for a stage when it carries that stage's timestamp or has moved past it;
// cancelled orders count for the stages they reached before cancelling.
func (s *Service) FulfillmentFunnel(ctx context.Context, branchID uuid.UUID, w aggregate.Window) ([]aggregate.FunnelStage, error) {
	w.Location = s.loc
	orders, err := s.fetch(ctx, branchID, w)
	if err != nil {
		return nil, err
	}
	return aggregate.Funnel(FunnelCounts(aggregate.InWindow(orders, w))), nil
}

// FunnelCounts derives the stage counts for orders.
func FunnelCounts(orders []model.Order) []aggregate.StageCount {
	reached := func(o model.Order, st model.OrderStatus, stamped *time.Time) bool {
		return stamped != nil || o.Status.Rank() >= st.Rank()
	}
	var placed, paid, dispatched, delivered int
	for _, o := range orders {
		placed++
		if reached(o, model.StatusPaid, o.PaidAt) {
			paid++
		}
		if reached(o, model.StatusDispatched, o.DispatchedAt) {
			dispatched++
		}
		if o.Status == model.StatusDelivered {
			delivered++
		}
	}
	return []aggregate.StageCount{
		{Name: StagePlaced, Count: placed},
		{Name: StagePaid, Count: paid},
		{Name: StageDispatched, Count: dispatched},
		{Name: StageDelivered, Count: delivered},
	}
}
