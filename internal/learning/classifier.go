package learning

import (
	"fmt"
	"math"

	"github.com/atlas-desktop/papertrade/pkg/types"
)

// varianceFloor keeps degenerate features from collapsing the Gaussian
// density.
const varianceFloor = 1e-6

// Classifier is a Gaussian naive Bayes model over trade feature
// vectors, predicting the outcome class of a prospective trade.
type Classifier struct {
	params Params
}

// ClassParams holds the fitted statistics for one outcome class.
type ClassParams struct {
	Prior     float64   `json:"prior"`
	Means     []float64 `json:"means"`
	Variances []float64 `json:"variances"`
}

// Params is the serializable fitted state of the classifier.
type Params struct {
	Classes     map[types.Outcome]ClassParams `json:"classes"`
	FeatureDim  int                           `json:"featureDim"`
	SampleCount int                           `json:"sampleCount"`
	Trained     bool                          `json:"trained"`
}

// NewClassifier creates an untrained classifier.
func NewClassifier() *Classifier {
	return &Classifier{params: Params{Classes: make(map[types.Outcome]ClassParams)}}
}

// NewClassifierFromParams restores a fitted classifier from saved
// parameters.
func NewClassifierFromParams(params Params) (*Classifier, error) {
	if params.Trained {
		if params.FeatureDim <= 0 || len(params.Classes) == 0 {
			return nil, fmt.Errorf("inconsistent classifier params")
		}
		for outcome, class := range params.Classes {
			if len(class.Means) != params.FeatureDim || len(class.Variances) != params.FeatureDim {
				return nil, fmt.Errorf("class %s has wrong feature dimension", outcome)
			}
		}
	}
	if params.Classes == nil {
		params.Classes = make(map[types.Outcome]ClassParams)
	}
	return &Classifier{params: params}, nil
}

// Trained reports whether Fit has produced a usable model.
func (c *Classifier) Trained() bool { return c.params.Trained }

// Params returns the fitted state for persistence.
func (c *Classifier) Params() Params { return c.params }

// Fit estimates per-class priors, feature means and variances from the
// labeled samples.
func (c *Classifier) Fit(samples []types.LearningSample) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to fit")
	}

	dim := len(samples[0].Features.Vector())
	byClass := make(map[types.Outcome][][]float64)
	for _, sample := range samples {
		byClass[sample.Outcome] = append(byClass[sample.Outcome], sample.Features.Vector())
	}
	if len(byClass) < 2 {
		return fmt.Errorf("need at least 2 outcome classes, have %d", len(byClass))
	}

	classes := make(map[types.Outcome]ClassParams, len(byClass))
	for outcome, vectors := range byClass {
		means := make([]float64, dim)
		for _, vec := range vectors {
			for i, v := range vec {
				means[i] += v
			}
		}
		for i := range means {
			means[i] /= float64(len(vectors))
		}

		variances := make([]float64, dim)
		for _, vec := range vectors {
			for i, v := range vec {
				diff := v - means[i]
				variances[i] += diff * diff
			}
		}
		for i := range variances {
			variances[i] /= float64(len(vectors))
			if variances[i] < varianceFloor {
				variances[i] = varianceFloor
			}
		}

		classes[outcome] = ClassParams{
			Prior:     float64(len(vectors)) / float64(len(samples)),
			Means:     means,
			Variances: variances,
		}
	}

	c.params = Params{
		Classes:     classes,
		FeatureDim:  dim,
		SampleCount: len(samples),
		Trained:     true,
	}
	return nil
}

// Predict returns the most probable outcome class with its normalized
// posterior probability as confidence. Returns nil when untrained.
func (c *Classifier) Predict(features types.Features) *types.Prediction {
	if !c.params.Trained {
		return nil
	}

	vec := features.Vector()
	logPosteriors := make(map[types.Outcome]float64, len(c.params.Classes))
	for outcome, class := range c.params.Classes {
		lp := math.Log(class.Prior)
		for i, v := range vec {
			lp += gaussianLogDensity(v, class.Means[i], class.Variances[i])
		}
		logPosteriors[outcome] = lp
	}

	// Normalize in log space for a stable softmax.
	var best types.Outcome
	maxLP := math.Inf(-1)
	for outcome, lp := range logPosteriors {
		if lp > maxLP {
			maxLP = lp
			best = outcome
		}
	}
	var total float64
	for _, lp := range logPosteriors {
		total += math.Exp(lp - maxLP)
	}

	return &types.Prediction{
		Direction:  directionFor(best),
		Outcome:    best,
		Confidence: 1 / total,
	}
}

func gaussianLogDensity(x, mean, variance float64) float64 {
	diff := x - mean
	return -0.5*math.Log(2*math.Pi*variance) - diff*diff/(2*variance)
}

func directionFor(outcome types.Outcome) types.Direction {
	switch outcome {
	case types.OutcomeProfitable:
		return types.DirectionBuy
	case types.OutcomeLoss:
		return types.DirectionSell
	default:
		return types.DirectionHold
	}
}
