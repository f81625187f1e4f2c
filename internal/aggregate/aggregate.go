// Package aggregate rolls order collections up into the figures shown on
// dashboards and reports. Everything here is a pure function of the orders
// and the window passed in; nothing reads the clock or the store.
//
// Recognised revenue only ever counts delivered orders. Malformed orders
// contribute zero instead of failing the whole computation.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/shopspring/decimal"
)

// Unspecified is the breakdown key for orders missing the grouped field.
const Unspecified = "unspecified"

var hundred = decimal.NewFromInt(100)

// Options selects the optional parts of Aggregate.
type Options struct {
	TopN        int         // number of top items; 0 skips them
	Granularity Granularity // series bucket width; empty skips the series
}

// Metrics is the full roll-up of one window.
type Metrics struct {
	Window            Window
	OrderCount        int
	DeliveredCount    int
	Revenue           decimal.Decimal
	AverageOrderValue decimal.Decimal
	StatusCounts      map[model.OrderStatus]int
	ByChannel         []BreakdownRow
	ByPaymentMethod   []BreakdownRow
	TopItems          []ItemStat
	Series            []Bucket
}

// BreakdownRow is one group of a dimension breakdown.
type BreakdownRow struct {
	Key        string
	Amount     decimal.Decimal
	Count      int
	Percentage decimal.Decimal // one decimal place
}

// ItemStat is a best-seller row.
type ItemStat struct {
	Name     string
	Quantity int64
	Revenue  decimal.Decimal
}

// Bucket is one point of a time series.
type Bucket struct {
	Start   time.Time
	Revenue decimal.Decimal
	Count   int
}

// Aggregate computes every metric for the orders created inside w.
func Aggregate(orders []model.Order, w Window, opts Options) Metrics {
	in := InWindow(orders, w)
	delivered := Delivered(in)

	m := Metrics{
		Window:            w,
		OrderCount:        len(in),
		DeliveredCount:    len(delivered),
		Revenue:           Revenue(delivered),
		AverageOrderValue: AverageOrderValue(delivered),
		StatusCounts:      StatusCounts(in),
		ByChannel:         Breakdown(delivered, ByChannel),
		ByPaymentMethod:   Breakdown(delivered, ByPaymentMethod),
	}
	if opts.TopN > 0 {
		m.TopItems = TopItems(delivered, opts.TopN)
	}
	if opts.Granularity.Valid() {
		m.Series = Series(delivered, w, opts.Granularity)
	}
	return m
}

// InWindow keeps the orders whose creation time falls inside w.
func InWindow(orders []model.Order, w Window) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if w.Contains(o.CreatedAt) {
			out = append(out, o)
		}
	}
	return out
}

// Delivered keeps the orders in the delivered status.
func Delivered(orders []model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == model.StatusDelivered {
			out = append(out, o)
		}
	}
	return out
}

// Revenue sums the totals of delivered orders; other statuses are ignored.
func Revenue(orders []model.Order) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range orders {
		if o.Status == model.StatusDelivered {
			sum = sum.Add(o.TotalAmount)
		}
	}
	return sum
}

// StatusCounts counts orders per status. Every status is present, zero if
// unused; orders with an unknown status are skipped.
func StatusCounts(orders []model.Order) map[model.OrderStatus]int {
	counts := make(map[model.OrderStatus]int, len(model.AllStatuses()))
	for _, s := range model.AllStatuses() {
		counts[s] = 0
	}
	for _, o := range orders {
		if o.Status.Valid() {
			counts[o.Status]++
		}
	}
	return counts
}

// AverageOrderValue is delivered revenue divided by the delivered count,
// rounded to two places. Zero when nothing was delivered.
func AverageOrderValue(orders []model.Order) decimal.Decimal {
	n := 0
	sum := decimal.Zero
	for _, o := range orders {
		if o.Status == model.StatusDelivered {
			n++
			sum = sum.Add(o.TotalAmount)
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(2)
}

// Dimension extracts a grouping key from an order.
type Dimension func(model.Order) string

// ByChannel groups by order channel.
func ByChannel(o model.Order) string {
	return string(o.Channel)
}

// ByPaymentMethod groups by payment method.
func ByPaymentMethod(o model.Order) string {
	if o.PaymentMethod == nil {
		return ""
	}
	return string(*o.PaymentMethod)
}

// Breakdown groups delivered orders by dim, sorted by amount descending.
// Empty keys are reported as Unspecified so the amounts always add up to
// Revenue.
func Breakdown(orders []model.Order, dim Dimension) []BreakdownRow {
	idx := map[string]int{}
	rows := []BreakdownRow{}
	total := decimal.Zero

	for _, o := range orders {
		if o.Status != model.StatusDelivered {
			continue
		}
		key := strings.TrimSpace(dim(o))
		if key == "" {
			key = Unspecified
		}
		i, ok := idx[key]
		if !ok {
			i = len(rows)
			idx[key] = i
			rows = append(rows, BreakdownRow{Key: key, Amount: decimal.Zero})
		}
		rows[i].Amount = rows[i].Amount.Add(o.TotalAmount)
		rows[i].Count++
		total = total.Add(o.TotalAmount)
	}

	for i := range rows {
		rows[i].Percentage = Percentage(rows[i].Amount, total)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Amount.Cmp(rows[j].Amount); c != 0 {
			return c > 0
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

// Percentage is part/whole*100 to one decimal place, or zero when whole is
// zero.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(1)
}

// PercentChange is the relative change from previous to current to one
// decimal place. Nil when previous is zero, since no ratio exists.
func PercentChange(current, previous decimal.Decimal) *decimal.Decimal {
	if previous.IsZero() {
		return nil
	}
	pct := current.Sub(previous).Div(previous).Mul(hundred).Round(1)
	return &pct
}

// TopItems ranks line items of delivered orders by quantity sold, grouped by
// item name. Ties go to higher revenue, then name.
func TopItems(orders []model.Order, n int) []ItemStat {
	idx := map[string]int{}
	stats := []ItemStat{}
	for _, o := range orders {
		if o.Status != model.StatusDelivered {
			continue
		}
		for _, it := range o.Items {
			if it.Name == "" || it.Quantity <= 0 {
				continue
			}
			i, ok := idx[it.Name]
			if !ok {
				i = len(stats)
				idx[it.Name] = i
				stats = append(stats, ItemStat{Name: it.Name, Revenue: decimal.Zero})
			}
			stats[i].Quantity += int64(it.Quantity)
			stats[i].Revenue = stats[i].Revenue.Add(it.LineTotal())
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Quantity != stats[j].Quantity {
			return stats[i].Quantity > stats[j].Quantity
		}
		if c := stats[i].Revenue.Cmp(stats[j].Revenue); c != 0 {
			return c > 0
		}
		return stats[i].Name < stats[j].Name
	})
	if n >= 0 && len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// Series buckets delivered orders by creation time. Every bucket between
// the window bounds is present, zero-filled when nothing happened in it.
func Series(orders []model.Order, w Window, g Granularity) []Bucket {
	if !g.Valid() {
		g = Daily
	}
	out := []Bucket{}
	if w.Empty() {
		return out
	}
	loc := w.loc()

	pos := map[int64]int{}
	for cur := bucketStart(w.From, g, loc); cur.Before(w.To); cur = bucketNext(cur, g) {
		pos[cur.Unix()] = len(out)
		out = append(out, Bucket{Start: cur, Revenue: decimal.Zero})
	}

	for _, o := range orders {
		if o.Status != model.StatusDelivered || !w.Contains(o.CreatedAt) {
			continue
		}
		i, ok := pos[bucketStart(o.CreatedAt, g, loc).Unix()]
		if !ok {
			continue
		}
		out[i].Revenue = out[i].Revenue.Add(o.TotalAmount)
		out[i].Count++
	}
	return out
}
