package whoop

import "time"

// ScoreState reports whether the vendor has finished scoring a record.
type ScoreState string

const (
	ScoreStateScored     ScoreState = "SCORED"
	ScoreStatePending    ScoreState = "PENDING_SCORE"
	ScoreStateUnscorable ScoreState = "UNSCORABLE"
)

type Cycle struct {
	ID             int64       `json:"id"`
	UserID         int64       `json:"user_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Start          time.Time   `json:"start"`
	End            *time.Time  `json:"end"`
	TimezoneOffset string      `json:"timezone_offset"`
	ScoreState     ScoreState  `json:"score_state"`
	Score          *CycleScore `json:"score"`
}

type CycleScore struct {
	Strain           float64 `json:"strain"`
	Kilojoule        float64 `json:"kilojoule"`
	AverageHeartRate int     `json:"average_heart_rate"`
	MaxHeartRate     int     `json:"max_heart_rate"`
}

type Recovery struct {
	CycleID    int64          `json:"cycle_id"`
	SleepID    string         `json:"sleep_id"`
	UserID     int64          `json:"user_id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ScoreState ScoreState     `json:"score_state"`
	Score      *RecoveryScore `json:"score"`
}

type RecoveryScore struct {
	UserCalibrating  bool    `json:"user_calibrating"`
	RecoveryScore    float64 `json:"recovery_score"`
	RestingHeartRate float64 `json:"resting_heart_rate"`
	HRVRmssdMilli    float64 `json:"hrv_rmssd_milli"`
	SpO2Percentage   float64 `json:"spo2_percentage,omitempty"`
	SkinTempCelsius  float64 `json:"skin_temp_celsius,omitempty"`
}

type Sleep struct {
	ID             string      `json:"id"`
	CycleID        int64       `json:"cycle_id"`
	UserID         int64       `json:"user_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	TimezoneOffset string      `json:"timezone_offset"`
	Nap            bool        `json:"nap"`
	ScoreState     ScoreState  `json:"score_state"`
	Score          *SleepScore `json:"score"`
}

type SleepScore struct {
	StageSummary               SleepStages `json:"stage_summary"`
	SleepNeeded                SleepNeeded `json:"sleep_needed"`
	RespiratoryRate            float64     `json:"respiratory_rate"`
	SleepPerformancePercentage float64     `json:"sleep_performance_percentage"`
	SleepConsistencyPercentage float64     `json:"sleep_consistency_percentage"`
	SleepEfficiencyPercentage  float64     `json:"sleep_efficiency_percentage"`
}

type SleepStages struct {
	TotalInBedTimeMilli         int `json:"total_in_bed_time_milli"`
	TotalAwakeTimeMilli         int `json:"total_awake_time_milli"`
	TotalNoDataTimeMilli        int `json:"total_no_data_time_milli"`
	TotalLightSleepTimeMilli    int `json:"total_light_sleep_time_milli"`
	TotalSlowWaveSleepTimeMilli int `json:"total_slow_wave_sleep_time_milli"`
	TotalREMSleepTimeMilli      int `json:"total_rem_sleep_time_milli"`
	SleepCycleCount             int `json:"sleep_cycle_count"`
	DisturbanceCount            int `json:"disturbance_count"`
}

type SleepNeeded struct {
	BaselineMilli             int `json:"baseline_milli"`
	NeedFromSleepDebtMilli    int `json:"need_from_sleep_debt_milli"`
	NeedFromRecentStrainMilli int `json:"need_from_recent_strain_milli"`
	NeedFromRecentNapMilli    int `json:"need_from_recent_nap_milli"`
}

// Latest holds the newest record of each collection, or nil when the
// collection came back empty.
type Latest struct {
	Recovery *Recovery `json:"recovery"`
	Sleep    *Sleep    `json:"sleep"`
	Cycle    *Cycle    `json:"cycle"`
}

// History holds every fetched record, newest first.
type History struct {
	Recovery []Recovery `json:"recovery"`
	Sleep    []Sleep    `json:"sleep"`
	Cycle    []Cycle    `json:"cycle"`
}

type Meta struct {
	Count        int `json:"count"`
	PagesFetched int `json:"pages_fetched"`
	Days         int `json:"days"`
}

// Data is the payload served by GET /api/whoop/data.
type Data struct {
	Latest  Latest  `json:"latest"`
	History History `json:"history"`
	Meta    Meta    `json:"meta"`
}

func newData(recovery []Recovery, sleep []Sleep, cycle []Cycle, pages, days int) *Data {
	if recovery == nil {
		recovery = []Recovery{}
	}
	if sleep == nil {
		sleep = []Sleep{}
	}
	if cycle == nil {
		cycle = []Cycle{}
	}

	d := &Data{
		History: History{Recovery: recovery, Sleep: sleep, Cycle: cycle},
		Meta:    Meta{Count: len(recovery), PagesFetched: pages, Days: days},
	}
	if len(recovery) > 0 {
		d.Latest.Recovery = &recovery[0]
	}
	if len(sleep) > 0 {
		d.Latest.Sleep = &sleep[0]
	}
	if len(cycle) > 0 {
		d.Latest.Cycle = &cycle[0]
	}
	return d
}
