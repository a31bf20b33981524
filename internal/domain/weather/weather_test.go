package weather

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-safety-api/internal/cache"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/upstream"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type stubRegions map[string]locitypes.CityProfile

func (s stubRegions) Resolve(loc locitypes.LocationKey) (locitypes.CityProfile, bool) {
	for _, name := range []string{loc.City, loc.District, loc.State} {
		if p, ok := s[strings.ToLower(name)]; ok {
			return p, true
		}
	}
	return locitypes.CityProfile{}, false
}

var testRegions = stubRegions{
	"delhi":   {Name: "Delhi", State: "Delhi", BaseTemperature: 30},
	"kolkata": {Name: "Kolkata", State: "West Bengal", BaseTemperature: 32},
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

// fakeTimeline serves a thunderstorm over Delhi with one significant and one minor alert.
type fakeTimeline struct {
	calls     atomic.Int32
	fail      atomic.Bool
	noCurrent atomic.Bool
	lastQuery atomic.Value
	lastPath  atomic.Value
}

func (f *fakeTimeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	f.lastQuery.Store(r.URL.Query())
	f.lastPath.Store(r.URL.Path)
	if f.fail.Load() {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		return
	}
	body := map[string]any{
		"address": "Delhi,India",
		"days": []map[string]any{
			{"datetime": "2025-06-15", "tempmax": 35.0, "tempmin": 27.0, "conditions": "Rain", "precipprob": 60.0, "windspeed": 18.0, "humidity": 70.0},
			{"datetime": "2025-06-16", "tempmax": 34.0, "tempmin": 26.5, "conditions": "Clear", "precipprob": 5.0, "windspeed": 9.0, "humidity": 55.0},
		},
		"alerts": []map[string]any{
			{"event": "Dust Advisory", "headline": "Dust", "severity": "minor"},
			{"event": "Heat Advisory", "headline": "Heat through Friday", "severity": "moderate"},
		},
	}
	if !f.noCurrent.Load() {
		body["currentConditions"] = map[string]any{
			"temp":          31.3,
			"humidity":      50.0,
			"windspeed":     10.0,
			"visibility":    12.0,
			"conditions":    "Thunderstorm, Rain",
			"uvindex":       6.0,
			"datetimeEpoch": testNow.Unix(),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := upstream.New(upstream.Config{Source: SourceName, Timeout: time.Second, RetryDelay: time.Millisecond}, srv.Client(), newTestLogger())
	return NewClient(srv.URL+"/timeline/", "test-key", hc)
}

func newTestAdapter(client *Client) *Adapter {
	return NewAdapter(client, testRegions, lib.NewSeeder(7), lib.NewManualClock(testNow), newTestLogger())
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "28.6139,77.2090", LocationString(locitypes.LocationKey{Latitude: ptr(28.6139), Longitude: ptr(77.209), City: "Delhi"}))
	assert.Equal(t, "Delhi,India", LocationString(locitypes.LocationKey{City: "Delhi", State: "delhi"}))
	assert.Equal(t, "Agra,Uttar Pradesh,India", LocationString(locitypes.LocationKey{City: "Agra", State: "Uttar Pradesh"}))
}

func TestParseLocation(t *testing.T) {
	loc := ParseLocation("28.6139, 77.2090")
	require.True(t, loc.HasCoordinates())
	assert.InDelta(t, 28.6139, *loc.Latitude, 1e-9)

	assert.Equal(t, locitypes.LocationKey{City: "Delhi"}, ParseLocation("Delhi,India"))
	assert.Equal(t, locitypes.LocationKey{City: "Agra", State: "Uttar Pradesh"}, ParseLocation("Agra,Uttar Pradesh,India"))
	assert.Equal(t, locitypes.LocationKey{City: "Jaipur"}, ParseLocation("Jaipur"))
}

func TestAdapter_FetchMapsCurrentConditionsAndAlerts(t *testing.T) {
	up := &fakeTimeline{}
	rec, err := newTestAdapter(newTestClient(t, up)).Fetch(context.Background(), locitypes.LocationKey{City: "Delhi"})
	require.NoError(t, err)

	q := up.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"metric"}, q["unitGroup"])
	assert.Equal(t, []string{"json"}, q["contentType"])
	assert.Equal(t, []string{"test-key"}, q["key"])
	assert.Equal(t, []string{"1"}, q["days"])
	assert.Equal(t, "/timeline/Delhi,India", up.lastPath.Load())

	assert.Equal(t, "Delhi,India", rec.Location)
	assert.InDelta(t, 31.3, rec.Temperature, 1e-9)
	assert.InDelta(t, 1013.0, rec.Pressure, 1e-9, "absent fields take neutral values")
	assert.Equal(t, testNow, rec.ObservedAt)

	require.Len(t, rec.Alerts, 2, "minor alerts are dropped")
	assert.Equal(t, "Thunderstorm", rec.Alerts[0].Event)
	assert.True(t, rec.Alerts[0].Derived)
	assert.Equal(t, 9, rec.Alerts[0].SafetyLevel)
	assert.Equal(t, "Heat Advisory", rec.Alerts[1].Event)
	assert.Equal(t, 7, rec.Alerts[1].SafetyLevel)
	assert.NotEmpty(t, rec.Alerts[1].Recommendations)
}

func TestAdapter_FetchWithoutCurrentConditionsIsMalformed(t *testing.T) {
	up := &fakeTimeline{}
	up.noCurrent.Store(true)

	_, err := newTestAdapter(newTestClient(t, up)).Fetch(context.Background(), locitypes.LocationKey{City: "Delhi"})
	var f *locitypes.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, locitypes.FailureMalformed, f.Kind)
}

func TestAdapter_FetchForecastCapsDays(t *testing.T) {
	up := &fakeTimeline{}
	f, err := newTestAdapter(newTestClient(t, up)).FetchForecast(context.Background(), locitypes.LocationKey{City: "Delhi"}, 30)
	require.NoError(t, err)

	q := up.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"15"}, q["days"])
	require.Len(t, f.Days, 2)
	assert.Equal(t, "2025-06-15", f.Days[0].Date)
	assert.InDelta(t, 60.0, f.Days[0].PrecipProb, 1e-9)
	assert.Len(t, f.Alerts, 2)
}

func TestAdapter_SynthesizeStaysInRange(t *testing.T) {
	a := newTestAdapter(nil)

	for _, tc := range []struct {
		loc  locitypes.LocationKey
		base float64
	}{
		{locitypes.LocationKey{City: "Delhi"}, 30},
		{locitypes.LocationKey{City: "Kolkata"}, 32},
		{locitypes.LocationKey{City: "Shimla"}, DefaultBaseTemperature},
	} {
		rec := a.Synthesize(tc.loc)
		assert.InDelta(t, tc.base, rec.Temperature, 5, tc.loc.City)
		assert.GreaterOrEqual(t, rec.Humidity, 40.0)
		assert.LessOrEqual(t, rec.Humidity, 80.0)
		assert.GreaterOrEqual(t, rec.WindSpeed, 5.0)
		assert.LessOrEqual(t, rec.WindSpeed, 25.0)
		assert.GreaterOrEqual(t, rec.Visibility, 8.0)
		assert.LessOrEqual(t, rec.Visibility, 15.0)
		assert.GreaterOrEqual(t, rec.UVIndex, 3.0)
		assert.LessOrEqual(t, rec.UVIndex, 8.0)
		assert.Contains(t, synthesizedConditions, rec.Conditions)
		assert.Empty(t, rec.Alerts)
	}

	assert.Equal(t, a.Synthesize(locitypes.LocationKey{City: "Delhi"}), newTestAdapter(nil).Synthesize(locitypes.LocationKey{City: "Delhi"}))
}

func TestAdapter_SynthesizeForecast(t *testing.T) {
	f := newTestAdapter(nil).SynthesizeForecast(locitypes.LocationKey{City: "Delhi"}, 3)
	require.Len(t, f.Days, 3)
	assert.Equal(t, "2025-06-15", f.Days[0].Date)
	assert.Equal(t, "2025-06-17", f.Days[2].Date)
	assert.Equal(t, "Delhi,India", f.Location)
}

func newTestService(client *Client, mock bool) *ServiceImpl {
	logger := newTestLogger()
	clock := lib.NewManualClock(testNow)
	store := cache.New(cache.Config{StaleRetention: time.Hour}, clock, logger)
	adapter := NewAdapter(client, testRegions, lib.NewSeeder(7), clock, logger)
	return NewWeatherService(adapter, store, Options{TTL: 30 * time.Minute, MockMode: mock}, logger)
}

func TestService_RecordIsCachedWithinTTL(t *testing.T) {
	up := &fakeTimeline{}
	svc := newTestService(newTestClient(t, up), false)
	loc := locitypes.LocationKey{City: "Delhi"}

	first, status, err := svc.Record(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, locitypes.SourceLive, status)

	second, _, err := svc.Record(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), up.calls.Load())
}

func TestService_RateLimitedUpstreamSynthesizes(t *testing.T) {
	up := &fakeTimeline{}
	up.fail.Store(true)
	svc := newTestService(newTestClient(t, up), false)

	rec, status, err := svc.Record(context.Background(), locitypes.LocationKey{City: "Delhi"})
	require.NoError(t, err)
	assert.Equal(t, locitypes.SourceSynthesized, status)
	assert.Contains(t, synthesizedConditions, rec.Conditions)
}

func TestService_MockModeSkipsUpstream(t *testing.T) {
	up := &fakeTimeline{}
	svc := newTestService(newTestClient(t, up), true)

	_, status, err := svc.Forecast(context.Background(), locitypes.LocationKey{City: "Delhi"}, 5)
	require.NoError(t, err)
	assert.Equal(t, locitypes.SourceSynthesized, status)
	assert.Zero(t, up.calls.Load())
}

func TestService_SafetyAnalysisThunderstorm(t *testing.T) {
	svc := newTestService(newTestClient(t, &fakeTimeline{}), false)

	a, err := svc.SafetyAnalysis(context.Background(), locitypes.LocationKey{City: "Delhi"})
	require.NoError(t, err)
	assert.Equal(t, locitypes.SourceLive, a.Source)
	assert.Equal(t, "thunderstorm", a.Breakdown.ConditionCategory)
	assert.InDelta(t, 10-a.WeatherRiskScore, a.WeatherSafetyScore, 1e-9)

	require.GreaterOrEqual(t, len(a.Recommendations), 2)
	assert.Contains(t, a.Recommendations[0], "seek shelter")
	assert.Equal(t, "Moderate UV index. Apply sunscreen and wear protective clothing.", a.Recommendations[len(a.Recommendations)-1])
}

type stubService struct {
	forecast  locitypes.WeatherForecast
	alerts    []locitypes.WeatherAlert
	analysis  locitypes.WeatherSafetyAnalysis
	err       error
	lastCalls []string
	lastDays  int
	lastLoc   locitypes.LocationKey
}

func (s *stubService) Record(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherRecord, locitypes.SourceStatus, error) {
	s.lastCalls = append(s.lastCalls, "Record")
	return locitypes.WeatherRecord{}, locitypes.SourceLive, s.err
}

func (s *stubService) Forecast(ctx context.Context, loc locitypes.LocationKey, days int) (locitypes.WeatherForecast, locitypes.SourceStatus, error) {
	s.lastCalls = append(s.lastCalls, "Forecast")
	s.lastDays, s.lastLoc = days, loc
	return s.forecast, locitypes.SourceLive, s.err
}

func (s *stubService) Alerts(ctx context.Context, loc locitypes.LocationKey) ([]locitypes.WeatherAlert, locitypes.SourceStatus, error) {
	s.lastCalls = append(s.lastCalls, "Alerts")
	s.lastLoc = loc
	return s.alerts, locitypes.SourceStale, s.err
}

func (s *stubService) SafetyAnalysis(ctx context.Context, loc locitypes.LocationKey) (locitypes.WeatherSafetyAnalysis, error) {
	s.lastCalls = append(s.lastCalls, "SafetyAnalysis")
	s.lastLoc = loc
	return s.analysis, s.err
}

func newTestMux(svc Service) *http.ServeMux {
	h := NewHandler(svc, newTestLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /weather/forecast/{location}", h.Forecast)
	mux.HandleFunc("GET /weather/alerts/{location}", h.Alerts)
	mux.HandleFunc("GET /weather/safety-analysis/{location}", h.SafetyAnalysis)
	mux.HandleFunc("POST /weather/current", h.Current)
	return mux
}

func serve(mux http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandler_Forecast(t *testing.T) {
	svc := &stubService{forecast: locitypes.WeatherForecast{Location: "Delhi,India", Days: []locitypes.ForecastDay{{Date: "2025-06-15"}}}}
	mux := newTestMux(svc)

	rec := serve(mux, "/weather/forecast/Delhi,India")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultForecastDays, svc.lastDays)
	assert.Equal(t, locitypes.LocationKey{City: "Delhi"}, svc.lastLoc)

	var body forecastResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Delhi,India", body.Location)
	assert.Equal(t, 7, body.ForecastDays)
	assert.Len(t, body.Forecast.Days, 1)

	rec = serve(mux, "/weather/forecast/Delhi?days=20")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandler_AlertsCountsHighPriority(t *testing.T) {
	svc := &stubService{alerts: []locitypes.WeatherAlert{
		risk.NewUpstreamAlert("Thunderstorm Warning", "", "", "severe"),
		risk.NewUpstreamAlert("Heat Advisory", "", "", "moderate"),
	}}
	rec := serve(newTestMux(svc), "/weather/alerts/28.61,77.21")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.lastLoc.HasCoordinates())

	var body alertsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.AlertCount)
	assert.Equal(t, 1, body.HighPriorityAlerts)
	assert.Equal(t, locitypes.SourceStale, body.Source)
}

func TestHandler_AlertsEmptyListIsArray(t *testing.T) {
	rec := serve(newTestMux(&stubService{}), "/weather/alerts/Jaipur")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alerts":[]`)
}

func TestHandler_RejectsOutOfRangeCoordinates(t *testing.T) {
	svc := &stubService{}
	rec := serve(newTestMux(svc), "/weather/safety-analysis/95.0,77.2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, svc.lastCalls)
}

func TestHandler_SafetyAnalysis(t *testing.T) {
	svc := &stubService{analysis: locitypes.WeatherSafetyAnalysis{WeatherSafetyScore: 7.2}}
	rec := serve(newTestMux(svc), "/weather/safety-analysis/Delhi")
	require.Equal(t, http.StatusOK, rec.Code)

	var body analysisResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Delhi", body.Location)
	assert.InDelta(t, 7.2, body.Analysis.WeatherSafetyScore, 1e-9)
}

func postCurrent(mux http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/weather/current", strings.NewReader(body)))
	return rec
}

func TestHandler_CurrentWithoutForecast(t *testing.T) {
	svc := &stubService{analysis: locitypes.WeatherSafetyAnalysis{
		Conditions:         locitypes.WeatherRecord{Location: "Delhi,India", Temperature: 31},
		WeatherSafetyScore: 7.2,
		Source:             locitypes.SourceSynthesized,
	}}
	rec := postCurrent(newTestMux(svc), `{"location": "Delhi,India"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"SafetyAnalysis"}, svc.lastCalls)
	assert.Equal(t, locitypes.LocationKey{City: "Delhi"}, svc.lastLoc)

	var body currentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Delhi,India", body.Location)
	assert.InDelta(t, 31, body.CurrentWeather.Temperature, 1e-9)
	assert.InDelta(t, 7.2, body.SafetyAnalysis.WeatherSafetyScore, 1e-9)
	assert.Equal(t, locitypes.SourceSynthesized, body.Source)
	assert.Nil(t, body.Forecast)
	assert.NotContains(t, rec.Body.String(), `"forecast"`)
}

func TestHandler_CurrentWithForecast(t *testing.T) {
	svc := &stubService{forecast: locitypes.WeatherForecast{Days: []locitypes.ForecastDay{{Date: "2025-06-15"}, {Date: "2025-06-16"}}}}
	rec := postCurrent(newTestMux(svc), `{"location": "Jaipur", "days": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"SafetyAnalysis", "Forecast"}, svc.lastCalls)
	assert.Equal(t, 2, svc.lastDays)

	var body currentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Forecast)
	assert.Len(t, body.Forecast.Days, 2)
}

func TestHandler_CurrentRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed json", body: `{"location":`, status: http.StatusBadRequest},
		{name: "missing location", body: `{"days": 1}`, status: http.StatusUnprocessableEntity},
		{name: "too many days", body: `{"location": "Delhi", "days": 16}`, status: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			rec := postCurrent(newTestMux(svc), tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, svc.lastCalls)
		})
	}
}
