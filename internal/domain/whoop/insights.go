package whoop

import (
	"fmt"
	"math"
	"sort"
)

// StatCards are the three headline numbers on the dashboard. A nil field
// renders as "--".
type StatCards struct {
	Recovery         *float64 `json:"recovery"`
	Strain           *int     `json:"strain"`
	SleepPerformance *float64 `json:"sleep_performance"`
}

// TrendPoint is one recovery record plotted on the trend charts.
type TrendPoint struct {
	Date     string  `json:"date"`
	Recovery float64 `json:"recovery"`
	HRV      float64 `json:"hrv"`
	RHR      float64 `json:"rhr"`
}

type MonthSummary struct {
	Month       string  `json:"month"`
	Days        int     `json:"days"`
	AvgRecovery float64 `json:"avg_recovery"`
	AvgHRV      float64 `json:"avg_hrv"`
	AvgRHR      float64 `json:"avg_rhr"`
	AvgStrain   float64 `json:"avg_strain"`
}

type Percentile struct {
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	Percentile int     `json:"percentile"`
	Label      string  `json:"label"`
}

type Insights struct {
	Stats       StatCards      `json:"stats"`
	Trend       []TrendPoint   `json:"trend"`
	Months      []MonthSummary `json:"months"`
	Percentiles []Percentile   `json:"percentiles"`
	Meta        Meta           `json:"meta"`
}

// population describes an adult reference distribution for one metric.
type population struct {
	metric      string
	mean, sd    float64
	lowerBetter bool
}

var (
	popHRV      = population{metric: "hrv", mean: 65, sd: 20}
	popRHR      = population{metric: "rhr", mean: 60, sd: 8, lowerBetter: true}
	popRecovery = population{metric: "recovery", mean: 58, sd: 20}
	popSleep    = population{metric: "sleep_performance", mean: 78, sd: 12}
	popStrain   = population{metric: "strain", mean: 11, sd: 4}
)

// BuildInsights shapes fetched history for charts. Trend points run oldest
// first with M/D labels.
func BuildInsights(d *Data) *Insights {
	ins := &Insights{
		Stats:       statCards(d.Latest),
		Trend:       trend(d.History.Recovery),
		Months:      months(d.History),
		Percentiles: []Percentile{},
		Meta:        d.Meta,
	}

	if r := d.Latest.Recovery; r != nil && r.Score != nil {
		ins.Percentiles = append(ins.Percentiles,
			popHRV.rank(r.Score.HRVRmssdMilli),
			popRHR.rank(r.Score.RestingHeartRate),
			popRecovery.rank(r.Score.RecoveryScore),
		)
	}
	if s := d.Latest.Sleep; s != nil && s.Score != nil {
		ins.Percentiles = append(ins.Percentiles, popSleep.rank(s.Score.SleepPerformancePercentage))
	}
	if c := d.Latest.Cycle; c != nil && c.Score != nil {
		ins.Percentiles = append(ins.Percentiles, popStrain.rank(c.Score.Strain))
	}
	return ins
}

func statCards(l Latest) StatCards {
	var sc StatCards
	if l.Recovery != nil && l.Recovery.Score != nil {
		v := l.Recovery.Score.RecoveryScore
		sc.Recovery = &v
	}
	if l.Cycle != nil && l.Cycle.Score != nil && l.Cycle.Score.Strain != 0 {
		v := int(math.Round(l.Cycle.Score.Strain))
		sc.Strain = &v
	}
	if l.Sleep != nil && l.Sleep.Score != nil {
		v := l.Sleep.Score.SleepPerformancePercentage
		sc.SleepPerformance = &v
	}
	return sc
}

func trend(recs []Recovery) []TrendPoint {
	points := make([]TrendPoint, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		p := TrendPoint{Date: shortDate(r)}
		if r.Score != nil {
			p.Recovery = r.Score.RecoveryScore
			p.HRV = r.Score.HRVRmssdMilli
			p.RHR = r.Score.RestingHeartRate
		}
		points = append(points, p)
	}
	return points
}

func shortDate(r Recovery) string {
	if r.CreatedAt.IsZero() {
		return "--/--"
	}
	return fmt.Sprintf("%d/%d", int(r.CreatedAt.Month()), r.CreatedAt.Day())
}

type monthAcc struct {
	days               int
	recovery, hrv, rhr float64
	strainTotal        float64
	strainDays         int
}

func months(h History) []MonthSummary {
	acc := map[string]*monthAcc{}
	get := func(key string) *monthAcc {
		a, ok := acc[key]
		if !ok {
			a = &monthAcc{}
			acc[key] = a
		}
		return a
	}

	for _, r := range h.Recovery {
		if r.Score == nil || r.CreatedAt.IsZero() {
			continue
		}
		a := get(r.CreatedAt.Format("2006-01"))
		a.days++
		a.recovery += r.Score.RecoveryScore
		a.hrv += r.Score.HRVRmssdMilli
		a.rhr += r.Score.RestingHeartRate
	}
	for _, c := range h.Cycle {
		if c.Score == nil || c.Start.IsZero() {
			continue
		}
		a := get(c.Start.Format("2006-01"))
		a.strainTotal += c.Score.Strain
		a.strainDays++
	}

	keys := make([]string, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]MonthSummary, 0, len(keys))
	for _, k := range keys {
		a := acc[k]
		m := MonthSummary{Month: k, Days: a.days}
		if a.days > 0 {
			n := float64(a.days)
			m.AvgRecovery = round1(a.recovery / n)
			m.AvgHRV = round1(a.hrv / n)
			m.AvgRHR = round1(a.rhr / n)
		}
		if a.strainDays > 0 {
			m.AvgStrain = round1(a.strainTotal / float64(a.strainDays))
		}
		out = append(out, m)
	}
	return out
}

func (p population) rank(v float64) Percentile {
	cdf := 0.5 * (1 + math.Erf((v-p.mean)/(p.sd*math.Sqrt2)))
	if p.lowerBetter {
		cdf = 1 - cdf
	}
	pct := int(math.Round(cdf * 100))
	if pct < 1 {
		pct = 1
	}
	if pct > 99 {
		pct = 99
	}
	return Percentile{Metric: p.metric, Value: round1(v), Percentile: pct, Label: percentileLabel(pct)}
}

func percentileLabel(pct int) string {
	switch {
	case pct >= 75:
		return "Above average"
	case pct >= 25:
		return "Average"
	default:
		return "Below average"
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
