package forecast

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const numFeatures = 3 // year, month, day

// Sample is one labeled observation of an entity's price history.
type Sample struct {
	Year  int
	Month int
	Day   int
	Price float64
}

// Point is one forecast value on the synthetic future calendar.
type Point struct {
	Date  time.Time
	Value float64
}

// Trainer is the opaque capability the prediction pipeline depends on:
// fit a model on one entity's history and forecast the configured horizon.
type Trainer interface {
	TrainAndPredict(history []Sample) ([]Point, error)
}

// Options tune the boosted regression model.
type Options struct {
	HorizonDays  int
	Rounds       int
	LearningRate float64
	TrainSize    float64
	Seed         int64
}

// Model is a gradient-boosted ensemble of regression stumps over
// (year, month, day) features with a squared-error objective.
type Model struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Model.
func New(opts Options, logger zerolog.Logger) *Model {
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 14
	}
	if opts.Rounds <= 0 {
		opts.Rounds = 1000
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.1
	}
	if opts.TrainSize <= 0 {
		opts.TrainSize = 0.8
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	return &Model{opts: opts, logger: logger.With().Str("component", "forecaster").Logger()}
}

type stump struct {
	feature   int
	threshold float64
	left      float64
	right     float64
}

func (s stump) predict(x [numFeatures]float64) float64 {
	if x[s.feature] <= s.threshold {
		return s.left
	}
	return s.right
}

// TrainAndPredict fits the ensemble on history and returns one forecast per
// day of the horizon, starting the day after the newest observation.
// Hour and minute could be added as features later.
func (m *Model) TrainAndPredict(history []Sample) ([]Point, error) {
	if len(history) < 2 {
		return nil, errors.New("not enough history to train")
	}

	features := make([][numFeatures]float64, len(history))
	targets := make([]float64, len(history))
	for i, sample := range history {
		features[i] = [numFeatures]float64{float64(sample.Year), float64(sample.Month), float64(sample.Day)}
		targets[i] = sample.Price
	}

	rng := rand.New(rand.NewSource(m.opts.Seed))
	perm := rng.Perm(len(history))

	// TODO: TrainSize is applied as the held-out fraction, so 0.8 trains on
	// the smaller 20% partition; confirm the intended ratio before changing.
	heldOut := int(math.Round(float64(len(history)) * m.opts.TrainSize))
	if heldOut >= len(history) {
		heldOut = len(history) - 1
	}
	valIdx := perm[:heldOut]
	trainIdx := perm[heldOut:]

	trainX := make([][numFeatures]float64, len(trainIdx))
	trainY := make([]float64, len(trainIdx))
	for i, idx := range trainIdx {
		trainX[i] = features[idx]
		trainY[i] = targets[idx]
	}

	base := stat.Mean(trainY, nil)
	ensemble := make([]stump, 0, m.opts.Rounds)

	residuals := make([]float64, len(trainY))
	current := make([]float64, len(trainY))
	for i := range current {
		current[i] = base
	}

	for round := 0; round < m.opts.Rounds; round++ {
		for i := range residuals {
			residuals[i] = trainY[i] - current[i]
		}
		best, ok := fitStump(trainX, residuals)
		if !ok {
			break
		}
		ensemble = append(ensemble, best)
		for i := range current {
			current[i] += m.opts.LearningRate * best.predict(trainX[i])
		}
	}

	predict := func(x [numFeatures]float64) float64 {
		value := base
		for _, s := range ensemble {
			value += m.opts.LearningRate * s.predict(x)
		}
		return value
	}

	if len(valIdx) > 0 {
		sq := make([]float64, len(valIdx))
		for i, idx := range valIdx {
			diff := predict(features[idx]) - targets[idx]
			sq[i] = diff * diff
		}
		rmse := math.Sqrt(floats.Sum(sq) / float64(len(sq)))
		m.logger.Debug().
			Str("objective", "regression").
			Str("metric", "rmse").
			Float64("validation_rmse", rmse).
			Int("rounds", len(ensemble)).
			Msg("model trained")
	}

	points := make([]Point, 0, m.opts.HorizonDays)
	for _, date := range m.futureDates(history) {
		x := [numFeatures]float64{float64(date.Year()), float64(date.Month()), float64(date.Day())}
		points = append(points, Point{Date: date, Value: predict(x)})
	}
	return points, nil
}

// futureDates builds the synthetic calendar index: HorizonDays consecutive
// days following the newest observed date.
func (m *Model) futureDates(history []Sample) []time.Time {
	var newest time.Time
	for _, sample := range history {
		date := time.Date(sample.Year, time.Month(sample.Month), sample.Day, 0, 0, 0, 0, time.UTC)
		if date.After(newest) {
			newest = date
		}
	}

	dates := make([]time.Time, m.opts.HorizonDays)
	for i := range dates {
		dates[i] = newest.AddDate(0, 0, i+1)
	}
	return dates
}

// fitStump finds the single split minimizing squared error on residuals.
func fitStump(xs [][numFeatures]float64, residuals []float64) (stump, bool) {
	n := len(xs)
	if n == 0 {
		return stump{}, false
	}

	type pair struct {
		value    float64
		residual float64
	}

	bestSSE := math.Inf(1)
	var best stump
	found := false

	for feature := 0; feature < numFeatures; feature++ {
		pairs := make([]pair, n)
		for i := range xs {
			pairs[i] = pair{value: xs[i][feature], residual: residuals[i]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].value < pairs[j].value })

		prefixSum := make([]float64, n+1)
		prefixSq := make([]float64, n+1)
		for i, p := range pairs {
			prefixSum[i+1] = prefixSum[i] + p.residual
			prefixSq[i+1] = prefixSq[i] + p.residual*p.residual
		}

		total := prefixSum[n]
		totalSq := prefixSq[n]

		for i := 1; i < n; i++ {
			if pairs[i].value == pairs[i-1].value {
				continue
			}
			leftN := float64(i)
			rightN := float64(n - i)
			leftMean := prefixSum[i] / leftN
			rightMean := (total - prefixSum[i]) / rightN
			sse := prefixSq[i] - leftN*leftMean*leftMean +
				(totalSq - prefixSq[i]) - rightN*rightMean*rightMean
			if sse < bestSSE {
				bestSSE = sse
				best = stump{
					feature:   feature,
					threshold: (pairs[i-1].value + pairs[i].value) / 2,
					left:      leftMean,
					right:     rightMean,
				}
				found = true
			}
		}
	}

	return best, found
}

var _ Trainer = (*Model)(nil)
