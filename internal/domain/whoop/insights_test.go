package whoop

import (
	"testing"
	"time"
)

func recoveryOn(day time.Time, score, hrv, rhr float64) Recovery {
	return Recovery{
		CreatedAt:  day,
		ScoreState: ScoreStateScored,
		Score:      &RecoveryScore{RecoveryScore: score, HRVRmssdMilli: hrv, RestingHeartRate: rhr},
	}
}

func TestBuildInsights_TrendOldestFirst(t *testing.T) {
	d := newData([]Recovery{
		recoveryOn(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC), 80, 90, 50),
		recoveryOn(time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC), 40, 50, 60),
		{CreatedAt: time.Date(2026, 2, 28, 7, 0, 0, 0, time.UTC), ScoreState: ScoreStatePending},
	}, nil, nil, 1, 100)

	ins := BuildInsights(d)
	if len(ins.Trend) != 3 {
		t.Fatalf("expected 3 trend points, got %d", len(ins.Trend))
	}
	wantDates := []string{"2/28", "3/1", "3/2"}
	for i, want := range wantDates {
		if ins.Trend[i].Date != want {
			t.Errorf("trend[%d].Date = %s, want %s", i, ins.Trend[i].Date, want)
		}
	}
	if ins.Trend[0].Recovery != 0 {
		t.Errorf("expected unscored record to plot as 0, got %v", ins.Trend[0].Recovery)
	}
	if ins.Trend[2].HRV != 90 {
		t.Errorf("expected newest HRV last, got %v", ins.Trend[2].HRV)
	}
}

func TestBuildInsights_StatCards(t *testing.T) {
	d := newData(
		[]Recovery{recoveryOn(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC), 67, 70, 55)},
		[]Sleep{{Score: &SleepScore{SleepPerformancePercentage: 93}}},
		[]Cycle{{Score: &CycleScore{Strain: 14.6}}},
		1, 100,
	)

	sc := BuildInsights(d).Stats
	if sc.Recovery == nil || *sc.Recovery != 67 {
		t.Errorf("unexpected recovery card %v", sc.Recovery)
	}
	if sc.Strain == nil || *sc.Strain != 15 {
		t.Errorf("expected strain rounded to 15, got %v", sc.Strain)
	}
	if sc.SleepPerformance == nil || *sc.SleepPerformance != 93 {
		t.Errorf("unexpected sleep card %v", sc.SleepPerformance)
	}
}

func TestBuildInsights_EmptyData(t *testing.T) {
	ins := BuildInsights(newData(nil, nil, nil, 0, 100))
	if ins.Stats.Recovery != nil || ins.Stats.Strain != nil || ins.Stats.SleepPerformance != nil {
		t.Error("expected empty stat cards")
	}
	if ins.Trend == nil || ins.Months == nil || ins.Percentiles == nil {
		t.Error("expected empty, non-nil slices for JSON arrays")
	}
}

func TestBuildInsights_Months(t *testing.T) {
	d := newData([]Recovery{
		recoveryOn(time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC), 90, 80, 50),
		recoveryOn(time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC), 70, 60, 54),
		recoveryOn(time.Date(2026, 3, 31, 7, 0, 0, 0, time.UTC), 33, 41, 61),
	}, nil, []Cycle{
		{Start: time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC), Score: &CycleScore{Strain: 10}},
		{Start: time.Date(2026, 4, 2, 6, 0, 0, 0, time.UTC), Score: &CycleScore{Strain: 15}},
	}, 1, 100)

	months := BuildInsights(d).Months
	if len(months) != 2 {
		t.Fatalf("expected 2 months, got %d", len(months))
	}
	if months[0].Month != "2026-03" || months[1].Month != "2026-04" {
		t.Errorf("expected ascending months, got %s, %s", months[0].Month, months[1].Month)
	}
	apr := months[1]
	if apr.Days != 2 || apr.AvgRecovery != 80 || apr.AvgHRV != 70 || apr.AvgRHR != 52 || apr.AvgStrain != 12.5 {
		t.Errorf("unexpected April summary %+v", apr)
	}
}

func TestPopulationRank(t *testing.T) {
	if p := popHRV.rank(popHRV.mean); p.Percentile != 50 || p.Label != "Average" {
		t.Errorf("expected mean HRV at 50th percentile, got %+v", p)
	}
	if p := popHRV.rank(popHRV.mean + 2*popHRV.sd); p.Percentile != 98 || p.Label != "Above average" {
		t.Errorf("expected +2sd HRV near 98th percentile, got %+v", p)
	}
	if p := popRHR.rank(popRHR.mean - 2*popRHR.sd); p.Percentile != 98 {
		t.Errorf("expected low RHR to rank high, got %+v", p)
	}
	if p := popRHR.rank(200); p.Percentile != 1 || p.Label != "Below average" {
		t.Errorf("expected percentile clamped to 1, got %+v", p)
	}
}
