package analytics

// TrendDirection classifies a regression slope.
type TrendDirection string

const (
	TrendIncreasing       TrendDirection = "increasing"
	TrendDecreasing       TrendDirection = "decreasing"
	TrendStable           TrendDirection = "stable"
	TrendInsufficientData TrendDirection = "insufficient-data"
)

// Trend is the result of an ordinary least squares fit against the index.
type Trend struct {
	Direction TrendDirection `json:"trend"`
	Slope     float64        `json:"slope"`
	RSquared  float64        `json:"rSquared"`
	Points    int            `json:"points"`
}

// EstimateTrend fits series against x = 0..n-1. Fewer than two points give
// TrendInsufficientData with a zero slope.
func EstimateTrend(series []float64, threshold float64) Trend {
	if len(series) < 2 {
		return Trend{Direction: TrendInsufficientData, Points: len(series)}
	}
	slope, r2 := linearRegression(series)
	t := Trend{Slope: slope, RSquared: r2, Points: len(series), Direction: TrendStable}
	switch {
	case slope > threshold:
		t.Direction = TrendIncreasing
	case slope < -threshold:
		t.Direction = TrendDecreasing
	}
	return t
}

// linearRegression computes slope and R-squared for y-values where x is the
// index.
func linearRegression(points []float64) (slope, rSquared float64) {
	n := float64(len(points))
	if n < 2 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range points {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, y := range points {
		predicted := slope*float64(i) + intercept
		ssRes += (y - predicted) * (y - predicted)
		ssTot += (y - meanY) * (y - meanY)
	}
	// A flat series is fit perfectly by a flat line.
	if ssTot == 0 {
		return slope, 1
	}
	return slope, 1 - ssRes/ssTot
}
