package aggregate

import (
	"sort"
	"strings"

	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/shopspring/decimal"
)

// CustomerStat is one customer's delivered activity in a window.
type CustomerStat struct {
	Key        string
	Name       string
	Phone      string
	Email      string
	OrderCount int
	Spend      decimal.Decimal
}

// Segment summarises a group of customers.
type Segment struct {
	Customers  int
	Orders     int
	Revenue    decimal.Decimal
	Percentage decimal.Decimal // share of customers
}

// Segments splits customers into first-time and repeat buyers.
type Segments struct {
	TotalCustomers int
	New            Segment // exactly one delivered order
	Returning      Segment // two or more
	TopCustomers   []CustomerStat
}

// CustomerKey identifies a customer by phone, then email, then name.
// Orders with none of them are anonymous and return "".
func CustomerKey(o model.Order) string {
	if p := strings.TrimSpace(o.CustomerPhone); p != "" {
		return "phone:" + p
	}
	if e := strings.ToLower(strings.TrimSpace(o.CustomerEmail)); e != "" {
		return "email:" + e
	}
	if n := strings.ToLower(strings.TrimSpace(o.CustomerName)); n != "" {
		return "name:" + n
	}
	return ""
}

// CustomerSegments groups delivered orders by customer. Anonymous orders
// are left out.
func CustomerSegments(orders []model.Order, topN int) Segments {
	idx := map[string]int{}
	stats := []CustomerStat{}
	for _, o := range orders {
		if o.Status != model.StatusDelivered {
			continue
		}
		key := CustomerKey(o)
		if key == "" {
			continue
		}
		i, ok := idx[key]
		if !ok {
			i = len(stats)
			idx[key] = i
			stats = append(stats, CustomerStat{
				Key:   key,
				Name:  o.CustomerName,
				Phone: o.CustomerPhone,
				Email: o.CustomerEmail,
				Spend: decimal.Zero,
			})
		}
		stats[i].OrderCount++
		stats[i].Spend = stats[i].Spend.Add(o.TotalAmount)
	}

	seg := Segments{
		TotalCustomers: len(stats),
		New:            Segment{Revenue: decimal.Zero},
		Returning:      Segment{Revenue: decimal.Zero},
	}
	for _, c := range stats {
		s := &seg.New
		if c.OrderCount >= 2 {
			s = &seg.Returning
		}
		s.Customers++
		s.Orders += c.OrderCount
		s.Revenue = s.Revenue.Add(c.Spend)
	}
	total := decimal.NewFromInt(int64(len(stats)))
	seg.New.Percentage = Percentage(decimal.NewFromInt(int64(seg.New.Customers)), total)
	seg.Returning.Percentage = Percentage(decimal.NewFromInt(int64(seg.Returning.Customers)), total)

	sort.SliceStable(stats, func(i, j int) bool {
		if c := stats[i].Spend.Cmp(stats[j].Spend); c != 0 {
			return c > 0
		}
		if stats[i].OrderCount != stats[j].OrderCount {
			return stats[i].OrderCount > stats[j].OrderCount
		}
		return stats[i].Key < stats[j].Key
	})
	if topN >= 0 && len(stats) > topN {
		stats = stats[:topN]
	}
	seg.TopCustomers = stats
	return seg
}
