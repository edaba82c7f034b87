package analytics

import "math"

// AnomalyType tells whether a period spent more or less than usual.
type AnomalyType string

const (
	AnomalyHighSpending AnomalyType = "high-spending"
	AnomalyLowSpending  AnomalyType = "low-spending"
)

// Severity grades an anomaly by z-score.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeverityExtreme  Severity = "extreme"
)

const (
	minAnomalyPoints = 3
	extremeZScore    = 3.0
)

// Anomaly is one flagged period.
type Anomaly struct {
	PeriodKey string      `json:"period"`
	Type      AnomalyType `json:"type"`
	Value     float64     `json:"value"`
	Expected  float64     `json:"expected"`
	Deviation float64     `json:"deviation"`
	ZScore    float64     `json:"zScore"`
	Severity  Severity    `json:"severity"`
}

// AnomalyResult carries the flagged periods. Sufficient is false when the
// series was too short to judge.
type AnomalyResult struct {
	Sufficient bool      `json:"sufficient"`
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"stdDev"`
	Anomalies  []Anomaly `json:"anomalies"`
}

// DetectAnomalies flags buckets whose value lies more than zThreshold
// population standard deviations from the mean. A flat series has no
// anomalies.
func DetectAnomalies(buckets []PeriodBucket, value func(PeriodBucket) float64, zThreshold float64) AnomalyResult {
	if len(buckets) < minAnomalyPoints {
		return AnomalyResult{Anomalies: []Anomaly{}}
	}

	series := SeriesOf(buckets, value)
	m := mean(series)
	stddev := populationStdDev(series)
	res := AnomalyResult{Sufficient: true, Mean: m, StdDev: stddev, Anomalies: []Anomaly{}}
	if stddev == 0 {
		return res
	}

	for i, v := range series {
		z := math.Abs(v-m) / stddev
		if z <= zThreshold {
			continue
		}
		a := Anomaly{
			PeriodKey: buckets[i].Key,
			Type:      AnomalyLowSpending,
			Value:     v,
			Expected:  m,
			Deviation: v - m,
			ZScore:    z,
			Severity:  SeverityModerate,
		}
		if v > m {
			a.Type = AnomalyHighSpending
		}
		if z > extremeZScore {
			a.Severity = SeverityExtreme
		}
		res.Anomalies = append(res.Anomalies, a)
	}
	return res
}
