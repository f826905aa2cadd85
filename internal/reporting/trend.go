package reporting

import (
	"gonum.org/v1/gonum/stat"
)

// Point is one (x, y) observation of a scatter dataset.
type Point struct {
	Key string  `json:"key"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// Trend is a fitted line y = Intercept + Slope*x drawn between X0 and X1.
type Trend struct {
	Method    string  `json:"method"`
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
}

// TrendEstimator fits a trend line through scatter points. Fit returns nil
// when the points do not support a fit.
type TrendEstimator interface {
	Name() string
	Fit(points []Point) *Trend
}

// NoTrend never draws a line.
type NoTrend struct{}

func (NoTrend) Name() string { return "none" }

func (NoTrend) Fit([]Point) *Trend { return nil }

// LinearOLS regresses y on x by ordinary least squares.
type LinearOLS struct{}

func (LinearOLS) Name() string { return "ols" }

func (LinearOLS) Fit(points []Point) *Trend {
	if len(points) < 2 {
		return nil
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	minX, maxX := points[0].X, points[0].X
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
	}
	if minX == maxX {
		return nil
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	return &Trend{
		Method:    "ols",
		Intercept: alpha,
		Slope:     beta,
		X0:        minX,
		Y0:        alpha + beta*minX,
		X1:        maxX,
		Y1:        alpha + beta*maxX,
	}
}

// TrendByName resolves a configured estimator name. Unknown names fall back
// to LinearOLS.
func TrendByName(name string) TrendEstimator {
	switch name {
	case "none", "off":
		return NoTrend{}
	default:
		return LinearOLS{}
	}
}
