package safety

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/upstream"
)

// PredictorSource labels the model endpoint in failures and metrics.
const PredictorSource = "predictor"

// Features is the vector handed to the base score model.
type Features struct {
	LocationRisk         int     `json:"location_risk"`
	GroupSize            int     `json:"group_size"`
	ExperienceLevel      string  `json:"experience_level"`
	HasItinerary         bool    `json:"has_itinerary"`
	Age                  int     `json:"age"`
	HealthScore          int     `json:"health_score"`
	NCRBRiskScore        float64 `json:"ncrb_risk_score"`
	WeatherRiskScore     float64 `json:"weather_risk_score"`
	EnhancedLocationRisk float64 `json:"enhanced_location_risk"`
}

func newFeatures(tc locitypes.TouristContext, ncrb, weatherRisk, enhanced float64) Features {
	return Features{
		LocationRisk:         tc.LocationRisk,
		GroupSize:            tc.GroupSize,
		ExperienceLevel:      string(tc.ExperienceLevel),
		HasItinerary:         tc.HasItinerary,
		Age:                  tc.Age,
		HealthScore:          tc.HealthScore,
		NCRBRiskScore:        ncrb,
		WeatherRiskScore:     weatherRisk,
		EnhancedLocationRisk: enhanced,
	}
}

// Predictor turns a feature vector into a base safety score before traveller adjustments.
type Predictor interface {
	BaseScore(ctx context.Context, f Features) (float64, error)
}

// HeuristicPredictor inverts the enhanced location risk.
type HeuristicPredictor struct{}

func (HeuristicPredictor) BaseScore(_ context.Context, f Features) (float64, error) {
	return risk.BaseScore(f.EnhancedLocationRisk), nil
}

type predictionPayload struct {
	BaseScore *float64 `json:"base_score"`
}

// HTTPPredictor asks a remote model for the base score and answers with the fallback
// whenever the model fails or returns something outside [1, 10].
type HTTPPredictor struct {
	endpoint string
	client   *upstream.Client
	fallback Predictor
	logger   *slog.Logger
}

func NewHTTPPredictor(baseURL string, client *upstream.Client, fallback Predictor, logger *slog.Logger) *HTTPPredictor {
	if fallback == nil {
		fallback = HeuristicPredictor{}
	}
	return &HTTPPredictor{
		endpoint: strings.TrimRight(baseURL, "/") + "/predict",
		client:   client,
		fallback: fallback,
		logger:   logger,
	}
}

func (p *HTTPPredictor) BaseScore(ctx context.Context, f Features) (float64, error) {
	l := p.logger.With(slog.String("method", "BaseScore"))

	score, err := p.predict(ctx, f)
	if err != nil {
		l.WarnContext(ctx, "Predictor failed, using heuristic base score", slog.Any("error", err))
		return p.fallback.BaseScore(ctx, f)
	}
	return score, nil
}

func (p *HTTPPredictor) predict(ctx context.Context, f Features) (float64, error) {
	var out predictionPayload
	if err := p.client.PostJSON(ctx, p.endpoint, nil, f, &out); err != nil {
		return 0, err
	}
	if out.BaseScore == nil {
		return 0, locitypes.NewFailure(PredictorSource, locitypes.FailureMalformed, "response has no base_score", nil)
	}
	if s := *out.BaseScore; s < 1 || s > 10 {
		return 0, locitypes.NewFailure(PredictorSource, locitypes.FailureMalformed,
			fmt.Sprintf("base_score %.2f outside [1, 10]", s), nil)
	}
	return *out.BaseScore, nil
}
