package aggregate

import "github.com/shopspring/decimal"

// StageCount is a caller-supplied funnel stage.
type StageCount struct {
	Name  string
	Count int
}

// FunnelStage is a stage with its share of the first stage and the drop
// from the stage before it.
type FunnelStage struct {
	Name       string
	Count      int
	Percentage decimal.Decimal // of the first stage
	DropOff    int             // lost since the previous stage
	DropOffPct decimal.Decimal // of the previous stage
}

// Funnel turns stage counts into ratios. The meaning of each stage is the
// caller's business; only the arithmetic happens here.
func Funnel(stages []StageCount) []FunnelStage {
	out := make([]FunnelStage, len(stages))
	if len(stages) == 0 {
		return out
	}
	first := decimal.NewFromInt(int64(stages[0].Count))
	for i, s := range stages {
		fs := FunnelStage{
			Name:       s.Name,
			Count:      s.Count,
			Percentage: Percentage(decimal.NewFromInt(int64(s.Count)), first),
			DropOffPct: decimal.Zero,
		}
		if i > 0 {
			prev := stages[i-1].Count
			fs.DropOff = prev - s.Count
			fs.DropOffPct = Percentage(decimal.NewFromInt(int64(fs.DropOff)), decimal.NewFromInt(int64(prev)))
		}
		out[i] = fs
	}
	return out
}
