// Package forecast fits an additive trend + seasonality + holiday model to a
// daily demand series and projects it forward.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const day = 24 * time.Hour

// ErrTooFewObservations is returned when the history cannot support a fit.
var ErrTooFewObservations = errors.New("at least 2 observations are required")

// Observation is one daily demand value.
type Observation struct {
	DS time.Time `json:"ds"`
	Y  float64   `json:"y"`
}

// Point is one predicted day with its component breakdown.
type Point struct {
	DS        time.Time `json:"ds"`
	YHat      float64   `json:"yhat"`
	YHatLower float64   `json:"yhat_lower"`
	YHatUpper float64   `json:"yhat_upper"`
	Trend     float64   `json:"trend"`
	Weekly    float64   `json:"weekly"`
	Yearly    float64   `json:"yearly"`
	Holiday   float64   `json:"holiday"`
	IsFuture  bool      `json:"is_future"`
}

// Options configure the model.
type Options struct {
	WeeklyOrder   int       // Fourier order of the weekly term (default 3)
	YearlyOrder   int       // Fourier order of the yearly term (default 10)
	IntervalWidth float64   // central prediction interval (default 0.8)
	Ridge         float64   // L2 penalty on non-intercept coefficients (default 1e-6)
	Holidays      *Calendar // nil disables the holiday regressor
}

// DefaultOptions mirrors the usual daily-demand setup with India holidays.
func DefaultOptions() Options {
	return Options{
		WeeklyOrder:   3,
		YearlyOrder:   10,
		IntervalWidth: 0.8,
		Ridge:         1e-6,
		Holidays:      IndiaCalendar(),
	}
}

// Model is a fitted forecaster.
type Model struct {
	opts    Options
	start   time.Time
	last    time.Time
	span    float64 // history length in days, used to scale the trend
	weekly  bool
	yearly  bool
	holiday bool
	coef    []float64
	sigma   float64
	history []Observation
}

// Fit estimates the model by penalised least squares.
// Weekly seasonality is enabled when the history spans at least two weeks,
// yearly seasonality when it spans at least two years, and the holiday
// regressor when at least one historical day is a holiday.
func Fit(obs []Observation, opts Options) (*Model, error) {
	if len(obs) < 2 {
		return nil, ErrTooFewObservations
	}
	if opts.IntervalWidth <= 0 || opts.IntervalWidth >= 1 {
		return nil, fmt.Errorf("interval width must be in (0, 1), got %f", opts.IntervalWidth)
	}
	history := append([]Observation(nil), obs...)
	sort.Slice(history, func(i, j int) bool { return history[i].DS.Before(history[j].DS) })

	m := &Model{
		opts:    opts,
		start:   history[0].DS,
		last:    history[len(history)-1].DS,
		history: history,
	}
	m.span = math.Max(1, m.last.Sub(m.start).Hours()/24)
	m.weekly = opts.WeeklyOrder > 0 && m.span >= 14
	m.yearly = opts.YearlyOrder > 0 && m.span >= 730
	for _, o := range history {
		if opts.Holidays.IsHoliday(o.DS) {
			m.holiday = true
			break
		}
	}

	n := len(history)
	p := m.numFeatures()
	x := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, o := range history {
		x.SetRow(i, m.features(o.DS))
		y.SetVec(i, o.Y)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 1; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+opts.Ridge)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)
	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return nil, fmt.Errorf("solving normal equations: %w", err)
	}
	m.coef = make([]float64, p)
	for j := range m.coef {
		m.coef[j] = beta.AtVec(j)
	}

	ssr := 0.0
	for i, o := range history {
		r := o.Y - dot(m.coef, x.RawRowView(i))
		ssr += r * r
	}
	dof := n - p
	if dof <= 0 {
		dof = n
	}
	m.sigma = math.Sqrt(ssr / float64(dof))
	logrus.Debugf("forecast: fitted %d features on %d days (weekly=%v yearly=%v holiday=%v sigma=%.3f)",
		p, n, m.weekly, m.yearly, m.holiday, m.sigma)
	return m, nil
}

func (m *Model) numFeatures() int {
	p := 2
	if m.weekly {
		p += 2 * m.opts.WeeklyOrder
	}
	if m.yearly {
		p += 2 * m.opts.YearlyOrder
	}
	if m.holiday {
		p++
	}
	return p
}

// features builds the design row for ds:
// [1, t, weekly sin/cos..., yearly sin/cos..., holiday].
func (m *Model) features(ds time.Time) []float64 {
	row := make([]float64, 0, m.numFeatures())
	days := ds.Sub(m.start).Hours() / 24
	row = append(row, 1, days/m.span)
	abs := float64(ds.Unix()) / 86400
	if m.weekly {
		row = appendFourier(row, abs, 7, m.opts.WeeklyOrder)
	}
	if m.yearly {
		row = appendFourier(row, abs, 365.25, m.opts.YearlyOrder)
	}
	if m.holiday {
		h := 0.0
		if m.opts.Holidays.IsHoliday(ds) {
			h = 1
		}
		row = append(row, h)
	}
	return row
}

func appendFourier(row []float64, t, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		arg := 2 * math.Pi * float64(k) * t / period
		row = append(row, math.Sin(arg), math.Cos(arg))
	}
	return row
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// MakeFuture returns every history date followed by periods consecutive
// days after the last observation.
func (m *Model) MakeFuture(periods int) []time.Time {
	dates := make([]time.Time, 0, len(m.history)+periods)
	for _, o := range m.history {
		dates = append(dates, o.DS)
	}
	for i := 1; i <= periods; i++ {
		dates = append(dates, m.last.Add(time.Duration(i)*day))
	}
	return dates
}

// Predict evaluates the model on dates.
func (m *Model) Predict(dates []time.Time) []Point {
	z := distuv.UnitNormal.Quantile(0.5 + m.opts.IntervalWidth/2)
	out := make([]Point, len(dates))
	for i, ds := range dates {
		f := m.features(ds)
		pt := Point{DS: ds, IsFuture: ds.After(m.last)}
		pt.Trend = m.coef[0] + m.coef[1]*f[1]
		j := 2
		if m.weekly {
			end := j + 2*m.opts.WeeklyOrder
			pt.Weekly = dot(m.coef[j:end], f[j:end])
			j = end
		}
		if m.yearly {
			end := j + 2*m.opts.YearlyOrder
			pt.Yearly = dot(m.coef[j:end], f[j:end])
			j = end
		}
		if m.holiday {
			pt.Holiday = m.coef[j] * f[j]
		}
		pt.YHat = pt.Trend + pt.Weekly + pt.Yearly + pt.Holiday
		pt.YHatLower = pt.YHat - z*m.sigma
		pt.YHatUpper = pt.YHat + z*m.sigma
		out[i] = pt
	}
	return out
}

// Sigma returns the residual standard deviation of the fit.
func (m *Model) Sigma() float64 {
	return m.sigma
}

// Forecast fits obs and predicts history plus periods future days.
func Forecast(obs []Observation, periods int, opts Options) ([]Point, error) {
	if periods < 0 {
		return nil, fmt.Errorf("periods must be non-negative, got %d", periods)
	}
	m, err := Fit(obs, opts)
	if err != nil {
		return nil, err
	}
	return m.Predict(m.MakeFuture(periods)), nil
}
