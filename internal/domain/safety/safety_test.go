package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-safety-api/internal/cache"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/city"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/crime"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/weather"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/upstream"
)

const uvModerateAdvice = "Moderate UV index. Apply sunscreen and wear protective clothing."

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func clearWeather() locitypes.WeatherRecord {
	return locitypes.WeatherRecord{
		Location:    "Delhi,India",
		Temperature: 31.3,
		Humidity:    50,
		WindSpeed:   10,
		Visibility:  12,
		Conditions:  "Clear",
		UVIndex:     6,
		Alerts:      []locitypes.WeatherAlert{},
	}
}

func delhiCrime() locitypes.CrimeRecord {
	return locitypes.CrimeRecord{
		State:            "Delhi",
		Year:             2025,
		TotalCrimes:      1000,
		ViolentCrimes:    200,
		PropertyCrimes:   400,
		Population:       333333,
		CrimeRatePer100k: 300,
		TrendDirection:   locitypes.TrendStable,
	}
}

func scenarioContext() locitypes.TouristContext {
	return locitypes.TouristContext{
		LocationRisk:    6,
		GroupSize:       2,
		ExperienceLevel: locitypes.ExperienceIntermediate,
		HasItinerary:    true,
		Age:             28,
		HealthScore:     7,
	}
}

func delhi() locitypes.LocationKey {
	return locitypes.LocationKey{State: "Delhi"}
}

type stubCrime struct {
	mu     sync.Mutex
	rec    locitypes.CrimeRecord
	status locitypes.SourceStatus
	err    error
	calls  int
}

func (s *stubCrime) Record(_ context.Context, _ locitypes.LocationKey) (locitypes.CrimeRecord, locitypes.SourceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.rec, s.status, s.err
}

type stubWeather struct {
	mu     sync.Mutex
	rec    locitypes.WeatherRecord
	status locitypes.SourceStatus
	calls  int
}

func (s *stubWeather) Record(_ context.Context, _ locitypes.LocationKey) (locitypes.WeatherRecord, locitypes.SourceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.rec, s.status, nil
}

type fixedPredictor struct {
	score float64
	err   error
	last  Features
}

func (p *fixedPredictor) BaseScore(_ context.Context, f Features) (float64, error) {
	p.last = f
	return p.score, p.err
}

func newScenarioService(w locitypes.WeatherRecord) (*ServiceImpl, *stubCrime, *stubWeather) {
	c := &stubCrime{rec: delhiCrime(), status: locitypes.SourceLive}
	wx := &stubWeather{rec: w, status: locitypes.SourceLive}
	return NewSafetyService(c, wx, nil, newTestLogger()), c, wx
}

func TestAssess_ClearScenario(t *testing.T) {
	svc, c, wx := newScenarioService(clearWeather())

	a, err := svc.Assess(context.Background(), scenarioContext(), delhi())
	require.NoError(t, err)

	assert.Equal(t, 6, a.SafetyScore)
	assert.InDelta(t, 7.5, a.NCRBRiskScore, 0.001)
	assert.InDelta(t, 7.2, a.WeatherSafetyScore, 0.001)
	assert.InDelta(t, 2.8, a.WeatherRiskScore, 0.001)
	assert.InDelta(t, 6.03, a.EnhancedLocationRisk, 0.001)
	assert.InDelta(t, 1.0, a.Confidence, 0.001)
	assert.Empty(t, a.Alerts)
	assert.Equal(t, locitypes.FactorUV, a.RiskBreakdown.WorstFactor)
	assert.Equal(t, locitypes.DataSources{Crime: locitypes.SourceLive, Weather: locitypes.SourceLive}, a.DataSources)

	want := append(slices.Clone(moderateRiskAdvice), uvModerateAdvice)
	assert.Equal(t, want, a.Recommendations)
	for _, r := range a.Recommendations {
		assert.NotContains(t, strings.ToLower(r), "storm")
		assert.NotContains(t, strings.ToLower(r), "rain")
	}

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, 1, wx.calls)
}

func TestAssess_ThunderstormScenario(t *testing.T) {
	storm := clearWeather()
	storm.Conditions = "Thunderstorm"
	svc, _, _ := newScenarioService(storm)
	clearSvc, _, _ := newScenarioService(clearWeather())

	a, err := svc.Assess(context.Background(), scenarioContext(), delhi())
	require.NoError(t, err)
	clear, err := clearSvc.Assess(context.Background(), scenarioContext(), delhi())
	require.NoError(t, err)

	assert.Greater(t, a.WeatherRiskScore, clear.WeatherRiskScore)
	assert.InDelta(t, 5.05, a.WeatherRiskScore, 0.001)
	require.Len(t, a.Alerts, 1)
	assert.Equal(t, "Thunderstorm", a.Alerts[0].Event)
	assert.True(t, a.Alerts[0].Derived)

	shelter := slices.Index(a.Recommendations, risk.Advisory(a.Alerts[0]))
	uv := slices.Index(a.Recommendations, uvModerateAdvice)
	require.GreaterOrEqual(t, shelter, 0)
	require.GreaterOrEqual(t, uv, 0)
	assert.Less(t, shelter, uv)
}

func TestAssess_ScoreBoundedAndMonotonic(t *testing.T) {
	svc, _, _ := newScenarioService(clearWeather())
	ctx := context.Background()

	score := func(tc locitypes.TouristContext) int {
		a, err := svc.Assess(ctx, tc, delhi())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.SafetyScore, 1)
		assert.LessOrEqual(t, a.SafetyScore, 10)
		return a.SafetyScore
	}

	prev := 0
	for h := 1; h <= 10; h++ {
		tc := scenarioContext()
		tc.HealthScore = h
		s := score(tc)
		assert.GreaterOrEqual(t, s, prev, "health %d", h)
		prev = s
	}

	prev = 0
	for g := 1; g <= 6; g++ {
		tc := scenarioContext()
		tc.GroupSize = g
		s := score(tc)
		assert.GreaterOrEqual(t, s, prev, "group %d", g)
		prev = s
	}

	prev = 0
	for _, lvl := range []locitypes.ExperienceLevel{locitypes.ExperienceBeginner, locitypes.ExperienceIntermediate, locitypes.ExperienceExpert} {
		tc := scenarioContext()
		tc.ExperienceLevel = lvl
		s := score(tc)
		assert.GreaterOrEqual(t, s, prev, "experience %s", lvl)
		prev = s
	}

	prev = 11
	for lr := 1; lr <= 10; lr++ {
		tc := scenarioContext()
		tc.LocationRisk = lr
		s := score(tc)
		assert.LessOrEqual(t, s, prev, "location risk %d", lr)
		prev = s
	}
}

func TestAssess_ConfidenceTracksSources(t *testing.T) {
	tests := []struct {
		name    string
		crime   locitypes.SourceStatus
		weather locitypes.SourceStatus
		want    float64
	}{
		{"all live", locitypes.SourceLive, locitypes.SourceLive, 1.0},
		{"stale crime", locitypes.SourceStale, locitypes.SourceLive, 0.95},
		{"synthesized weather", locitypes.SourceLive, locitypes.SourceSynthesized, 0.85},
		{"all synthesized", locitypes.SourceSynthesized, locitypes.SourceSynthesized, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &stubCrime{rec: delhiCrime(), status: tt.crime}
			wx := &stubWeather{rec: clearWeather(), status: tt.weather}
			svc := NewSafetyService(c, wx, nil, newTestLogger())

			a, err := svc.Assess(context.Background(), scenarioContext(), delhi())
			require.NoError(t, err)
			assert.InDelta(t, tt.want, a.Confidence, 0.001)
			assert.GreaterOrEqual(t, a.Confidence, 0.3)
			assert.LessOrEqual(t, a.Confidence, 1.0)
			assert.Equal(t, tt.crime, a.DataSources.Crime)
			assert.Equal(t, tt.weather, a.DataSources.Weather)
		})
	}
}

func TestAssess_InvalidInputReportsEveryField(t *testing.T) {
	svc, c, wx := newScenarioService(clearWeather())

	tc := scenarioContext()
	tc.LocationRisk = 11
	tc.HealthScore = 0
	tc.ExperienceLevel = "novice"

	_, err := svc.Assess(context.Background(), tc, locitypes.LocationKey{})
	require.Error(t, err)
	assert.ErrorIs(t, err, locitypes.ErrInvalidInput)

	var verrs locitypes.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"location_risk", "health_score", "experience_level", "location"}, fields)
	assert.Zero(t, c.calls)
	assert.Zero(t, wx.calls)
}

func TestAssess_SourceErrorIsInternal(t *testing.T) {
	c := &stubCrime{err: context.DeadlineExceeded}
	wx := &stubWeather{rec: clearWeather(), status: locitypes.SourceLive}
	svc := NewSafetyService(c, wx, nil, newTestLogger())

	_, err := svc.Assess(context.Background(), scenarioContext(), delhi())
	require.Error(t, err)
	assert.NotErrorIs(t, err, locitypes.ErrInvalidInput)
	assert.Equal(t, http.StatusInternalServerError, lib.StatusFor(err))
}

func TestAssess_UsesPredictor(t *testing.T) {
	c := &stubCrime{rec: delhiCrime(), status: locitypes.SourceLive}
	wx := &stubWeather{rec: clearWeather(), status: locitypes.SourceLive}
	p := &fixedPredictor{score: 9.5}
	svc := NewSafetyService(c, wx, p, newTestLogger())

	a, err := svc.Assess(context.Background(), scenarioContext(), delhi())
	require.NoError(t, err)
	assert.Equal(t, 10, a.SafetyScore)
	assert.InDelta(t, 6.03, p.last.EnhancedLocationRisk, 0.001)
	assert.Equal(t, "intermediate", p.last.ExperienceLevel)
}

func TestAssess_PredictorErrorFallsBackToHeuristic(t *testing.T) {
	c := &stubCrime{rec: delhiCrime(), status: locitypes.SourceLive}
	wx := &stubWeather{rec: clearWeather(), status: locitypes.SourceLive}
	svc := NewSafetyService(c, wx, &fixedPredictor{err: errors.New("model offline")}, newTestLogger())

	a, err := svc.Assess(context.Background(), scenarioContext(), delhi())
	require.NoError(t, err)
	assert.Equal(t, 6, a.SafetyScore)
}

// Both adapters have no client, so every fetch fails and the engine runs on synthesized data.
func TestAssess_DegradedUpstreamsStillScore(t *testing.T) {
	logger := newTestLogger()
	profiles, err := city.BuiltinProfiles()
	require.NoError(t, err)
	registry, err := city.NewRegistry(profiles)
	require.NoError(t, err)

	clock := lib.NewManualClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	seeder := lib.NewSeeder(7)
	store := cache.New(cache.Config{StaleRetention: time.Hour}, clock, logger)

	crimeSvc := crime.NewCrimeService(crime.NewAdapter(nil, registry, seeder, clock, logger), store, clock,
		crime.Options{TTL: time.Hour}, logger)
	weatherSvc := weather.NewWeatherService(weather.NewAdapter(nil, registry, seeder, clock, logger), store,
		weather.Options{TTL: 30 * time.Minute}, logger)
	svc := NewSafetyService(crimeSvc, weatherSvc, nil, logger)

	loc := locitypes.LocationKey{State: "Delhi", City: "Delhi"}
	a, err := svc.Assess(context.Background(), scenarioContext(), loc)
	require.NoError(t, err)
	assert.Equal(t, locitypes.SourceSynthesized, a.DataSources.Crime)
	assert.Equal(t, locitypes.SourceSynthesized, a.DataSources.Weather)
	assert.InDelta(t, 0.7, a.Confidence, 0.001)
	assert.GreaterOrEqual(t, a.SafetyScore, 1)
	assert.LessOrEqual(t, a.SafetyScore, 10)
	assert.NotNil(t, a.Recommendations)

	again, err := svc.Assess(context.Background(), scenarioContext(), loc)
	require.NoError(t, err)
	assert.Equal(t, a.CrimeStatistics, again.CrimeStatistics)
	assert.Equal(t, a.WeatherConditions, again.WeatherConditions)
	assert.Equal(t, a.SafetyScore, again.SafetyScore)
}

func TestRecommendations_Order(t *testing.T) {
	crimeRec := locitypes.CrimeRecord{
		TotalCrimes:    100,
		ViolentCrimes:  40,
		PropertyCrimes: 55,
		TrendDirection: locitypes.TrendIncreasing,
	}
	heat := risk.NewUpstreamAlert("Heat Advisory", "", "", "moderate")
	storm := risk.NewUpstreamAlert("Thunderstorm Warning", "", "", "severe")

	got := Recommendations(RecommendationInput{
		Score:   2,
		Crime:   crimeRec,
		Alerts:  []locitypes.WeatherAlert{heat, storm},
		Context: locitypes.TouristContext{GroupSize: 1, ExperienceLevel: locitypes.ExperienceBeginner},
	})

	want := append(slices.Clone(highRiskAdvice),
		adviceCrimeIncreasing,
		adviceViolentCrime,
		advicePropertyCrime,
		risk.Advisory(storm),
		risk.Advisory(heat),
		adviceBeginner,
		adviceSolo,
	)
	assert.Equal(t, want, got)
}

func TestRecommendations_SafeAreaMayBeEmpty(t *testing.T) {
	got := Recommendations(RecommendationInput{
		Score:   9,
		Crime:   locitypes.CrimeRecord{TotalCrimes: 100, ViolentCrimes: 10, PropertyCrimes: 20},
		Context: locitypes.TouristContext{GroupSize: 3, ExperienceLevel: locitypes.ExperienceExpert},
	})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecommendations_NoDuplicates(t *testing.T) {
	a := risk.NewUpstreamAlert("Thunderstorm", "", "", "severe")
	b := risk.NewUpstreamAlert("Thunderstorm", "second bulletin", "", "extreme")

	got := Recommendations(RecommendationInput{
		Score:  5,
		Alerts: []locitypes.WeatherAlert{a, b},
		Crime:  locitypes.CrimeRecord{TrendDirection: locitypes.TrendDecreasing},
	})

	seen := make(map[string]bool)
	for _, r := range got {
		assert.False(t, seen[r], "duplicate %q", r)
		seen[r] = true
	}
	assert.Contains(t, got, adviceCrimeDecreasing)
	assert.Contains(t, got, risk.Advisory(a))
}

func newPredictorClient(srv *httptest.Server) *upstream.Client {
	return upstream.New(upstream.Config{
		Source:     PredictorSource,
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
	}, srv.Client(), newTestLogger())
}

func TestHTTPPredictor(t *testing.T) {
	features := Features{LocationRisk: 6, EnhancedLocationRisk: 6.03}

	tests := []struct {
		name   string
		status int
		body   string
		want   float64
	}{
		{"model answer", http.StatusOK, `{"base_score": 8.25}`, 8.25},
		{"server error", http.StatusInternalServerError, `{}`, 4.97},
		{"out of range", http.StatusOK, `{"base_score": 42}`, 4.97},
		{"missing score", http.StatusOK, `{"score": 7}`, 4.97},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/predict", r.URL.Path)
				var in Features
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
				assert.Equal(t, features, in)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewHTTPPredictor(srv.URL+"/", newPredictorClient(srv), nil, newTestLogger())
			got, err := p.BaseScore(context.Background(), features)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

type stubService struct {
	assessment *locitypes.SafetyAssessment
	err        error
	lastCalls  []locitypes.TouristContext
	lastLoc    locitypes.LocationKey
}

func (s *stubService) Assess(_ context.Context, tc locitypes.TouristContext, loc locitypes.LocationKey) (*locitypes.SafetyAssessment, error) {
	s.lastCalls = append(s.lastCalls, tc)
	s.lastLoc = loc
	return s.assessment, s.err
}

func postScore(h *Handler, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /safety-score", h.SafetyScore)
	req := httptest.NewRequest(http.MethodPost, "/safety-score", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SafetyScoreAppliesDefaults(t *testing.T) {
	stub := &stubService{assessment: &locitypes.SafetyAssessment{SafetyScore: 7, Recommendations: []string{}}}
	h := NewHandler(stub, newTestLogger())

	rec := postScore(h, `{"state": " Delhi ", "latitude": 28.61, "longitude": 77.21}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got locitypes.SafetyAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 7, got.SafetyScore)

	require.Len(t, stub.lastCalls, 1)
	assert.Equal(t, locitypes.TouristContext{
		LocationRisk:    5,
		GroupSize:       1,
		ExperienceLevel: locitypes.ExperienceBeginner,
		Age:             30,
		HealthScore:     8,
	}, stub.lastCalls[0])
	assert.Equal(t, "Delhi", stub.lastLoc.State)
	require.True(t, stub.lastLoc.HasCoordinates())
	assert.InDelta(t, 28.61, *stub.lastLoc.Latitude, 1e-9)
}

func TestHandler_SafetyScoreMalformedJSON(t *testing.T) {
	stub := &stubService{}
	h := NewHandler(stub, newTestLogger())

	rec := postScore(h, `{"state": "Delhi",`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.lastCalls)
}

func TestHandler_SafetyScoreInvalidInput(t *testing.T) {
	svc, _, _ := newScenarioService(clearWeather())
	h := NewHandler(svc, newTestLogger())

	rec := postScore(h, `{"state": "Delhi", "location_risk": 0, "age": 200}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid input", body.Error)
	assert.Len(t, body.Details, 2)
}

func TestHandler_SafetyScoreEndToEnd(t *testing.T) {
	svc, _, _ := newScenarioService(clearWeather())
	h := NewHandler(svc, newTestLogger())

	rec := postScore(h, `{"state": "Delhi", "location_risk": 6, "group_size": 2, "experience_level": "Intermediate",
		"has_itinerary": true, "age": 28, "health_score": 7}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 6, got["safety_score"])
	assert.Contains(t, got, "risk_breakdown")
	assert.Contains(t, got, "data_sources")
}
