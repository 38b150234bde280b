package transform

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"marketdw/internal/forecast"
	"marketdw/internal/model"
)

// Predictions trains one forecaster per entity in the combined training
// frame and concatenates the per-entity forecasts.
type Predictions struct {
	training *TrainingSet
	trainer  forecast.Trainer
	logger   zerolog.Logger
}

// NewPredictions constructs the forecast transformer.
func NewPredictions(training *TrainingSet, trainer forecast.Trainer, logger zerolog.Logger) *Predictions {
	return &Predictions{
		training: training,
		trainer:  trainer,
		logger:   logger.With().Str("component", "predictions").Logger(),
	}
}

// Transform produces one forecast row per (entity, future day).
func (t *Predictions) Transform(ctx context.Context) ([]model.Prediction, error) {
	points, err := t.training.Transform(ctx)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		t.logger.Warn().Msg("empty training set, nothing to predict")
		return nil, nil
	}

	var entities []string
	grouped := make(map[string][]forecast.Sample)
	for _, point := range points {
		if _, seen := grouped[point.Entity]; !seen {
			entities = append(entities, point.Entity)
		}
		grouped[point.Entity] = append(grouped[point.Entity], forecast.Sample{
			Year:  point.Year,
			Month: point.Month,
			Day:   point.Day,
			Price: point.Price,
		})
	}

	var rows []model.Prediction
	for _, entity := range entities {
		forecasts, err := t.trainer.TrainAndPredict(grouped[entity])
		if err != nil {
			return nil, fmt.Errorf("train %s: %w", entity, err)
		}
		for _, point := range forecasts {
			rows = append(rows, model.Prediction{
				Entity:   entity,
				Datetime: point.Date,
				Value:    point.Value,
			})
		}
		t.logger.Debug().Str("entity", entity).Int("forecasts", len(forecasts)).Msg("entity forecast complete")
	}

	t.logger.Info().Int("rows", len(rows)).Int("entities", len(entities)).Msg("predictions transformed")
	return rows, nil
}
