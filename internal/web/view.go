package web

import (
	"math"
	"strconv"

	"github.com/luvo/luvo/internal/domain/whoop"
)

const missing = "--"

// LiveCards holds the display strings of the /test page cards.
type LiveCards struct {
	Recovery    string
	HRV         string
	RHR         string
	Sleep       string
	Efficiency  string
	Respiratory string
	Strain      string
	MaxHR       string
	Kilojoules  string
}

func liveCards(l whoop.Latest) LiveCards {
	c := LiveCards{
		Recovery: missing, HRV: "0", RHR: missing,
		Sleep: missing, Efficiency: "0", Respiratory: "0",
		Strain: "0", MaxHR: missing, Kilojoules: "0",
	}
	if r := l.Recovery; r != nil && r.Score != nil {
		c.Recovery = orMissing(r.Score.RecoveryScore)
		c.HRV = rounded(r.Score.HRVRmssdMilli)
		c.RHR = orMissing(r.Score.RestingHeartRate)
	}
	if s := l.Sleep; s != nil && s.Score != nil {
		c.Sleep = orMissing(s.Score.SleepPerformancePercentage)
		c.Efficiency = rounded(s.Score.SleepEfficiencyPercentage)
		c.Respiratory = rounded(s.Score.RespiratoryRate)
	}
	if cy := l.Cycle; cy != nil && cy.Score != nil {
		c.Strain = rounded(cy.Score.Strain)
		if cy.Score.MaxHeartRate > 0 {
			c.MaxHR = strconv.Itoa(cy.Score.MaxHeartRate)
		}
		c.Kilojoules = rounded(cy.Score.Kilojoule)
	}
	return c
}

// DashboardStats are the hero numbers of /dashboard.
type DashboardStats struct {
	Recovery string
	Strain   string
	Sleep    string
}

func dashboardStats(s whoop.StatCards) DashboardStats {
	out := DashboardStats{Recovery: missing, Strain: missing, Sleep: missing}
	if s.Recovery != nil {
		out.Recovery = number(*s.Recovery)
	}
	if s.Strain != nil && *s.Strain != 0 {
		out.Strain = strconv.Itoa(*s.Strain)
	}
	if s.SleepPerformance != nil {
		out.Sleep = number(*s.SleepPerformance)
	}
	return out
}

// orMissing treats zero as absent, as the vendor omits unscored values.
func orMissing(v float64) string {
	if v == 0 {
		return missing
	}
	return number(v)
}

func rounded(v float64) string {
	return strconv.Itoa(int(math.Round(v)))
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
