package heatmap

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-safety-api/internal/cache"
	"github.com/FACorreiaa/loci-safety-api/internal/domain/city"
	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestSynthesizer(t *testing.T, clock lib.Clock) *Synthesizer {
	t.Helper()
	reg, err := city.LoadRegistry(context.Background(), nil, newTestLogger())
	require.NoError(t, err)
	return NewSynthesizer(reg, lib.NewSeeder(42), clock, 0)
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func TestSynthesize_OneLocationPerAnchor(t *testing.T) {
	s := newTestSynthesizer(t, lib.NewManualClock(testNow))

	for name, anchors := range map[string]int{"Delhi": 7, "Agra": 4, "Jaipur": 5} {
		data := s.Synthesize(name, 0)
		assert.Len(t, data.TouristLocations, anchors, name)
		assert.Equal(t, name, data.ResolvedCity)
		assert.NotEmpty(t, data.SafetyZones, name)
	}
}

func TestSynthesize_StatisticsSumExactly(t *testing.T) {
	s := newTestSynthesizer(t, lib.NewManualClock(testNow))

	for _, tc := range []struct {
		city  string
		count int
	}{{"Delhi", 0}, {"Agra", 25}, {"Jaipur", 3}, {"Nowhere", 60}} {
		data := s.Synthesize(tc.city, tc.count)
		st := data.Statistics

		total := 0
		for _, l := range data.TouristLocations {
			total += l.Count
		}
		assert.Equal(t, total, data.TotalTourists, tc.city)
		assert.Equal(t, data.TotalTourists, sum(st.NationalityDistribution), tc.city)
		assert.Equal(t, data.TotalTourists, sum(st.AgeGroupDistribution), tc.city)
		assert.Equal(t, data.TotalTourists, sum(st.ExperienceDistribution), tc.city)

		d := st.SafetyScoreDistribution
		assert.Equal(t, len(data.TouristLocations), d.Safe+d.Moderate+d.Caution+d.HighRisk, tc.city)
		assert.Equal(t, len(data.TouristLocations), st.TotalLocations)
		assert.Equal(t, len(data.SafetyZones), st.TotalZones)
	}
}

func TestSynthesize_LocationsWithinBounds(t *testing.T) {
	s := newTestSynthesizer(t, lib.NewManualClock(testNow))
	data := s.Synthesize("Agra", 40)

	require.Len(t, data.TouristLocations, 40)
	reg, err := city.LoadRegistry(context.Background(), nil, newTestLogger())
	require.NoError(t, err)
	agra, _ := reg.Lookup("Agra")

	for i, l := range data.TouristLocations {
		anchor := agra.Anchors[i%len(agra.Anchors)]
		assert.Equal(t, anchor.Name, l.Name)
		assert.InDelta(t, anchor.Position.Lat, l.Position.Lat, jitterDegrees+1e-9)
		assert.InDelta(t, anchor.Position.Lng, l.Position.Lng, jitterDegrees+1e-9)
		assert.GreaterOrEqual(t, l.SafetyScore, 1.0)
		assert.LessOrEqual(t, l.SafetyScore, 10.0)
		assert.Contains(t, nationalities, l.Nationality)
		if anchor.Name == "Taj Mahal" {
			assert.GreaterOrEqual(t, l.Count, 50)
			assert.LessOrEqual(t, l.Count, 120)
		} else {
			assert.GreaterOrEqual(t, l.Count, 15)
			assert.LessOrEqual(t, l.Count, 80)
		}
		assert.Equal(t, testNow, l.LastUpdate)
	}
}

func TestSynthesize_UnknownCityFallsBackToDefault(t *testing.T) {
	s := newTestSynthesizer(t, lib.NewManualClock(testNow))

	data := s.Synthesize("Atlantis", 0)
	assert.Equal(t, "Atlantis", data.City)
	assert.Equal(t, "Delhi", data.ResolvedCity)
	assert.Len(t, data.TouristLocations, 7)
}

func TestSynthesize_ZoneTouristCountsCoverEveryLocation(t *testing.T) {
	s := newTestSynthesizer(t, lib.NewManualClock(testNow))
	data := s.Synthesize("Delhi", 0)

	zoned := 0
	for _, z := range data.SafetyZones {
		zoned += z.TouristCount
		assert.NotEmpty(t, z.RiskFactors)
		assert.Equal(t, zoneColors[z.SafetyLevel], z.Color)
	}
	assert.Equal(t, data.TotalTourists, zoned)
}

func TestSynthesize_DeterministicWithinWindow(t *testing.T) {
	clock := lib.NewManualClock(testNow)
	reg, err := city.LoadRegistry(context.Background(), nil, newTestLogger())
	require.NoError(t, err)
	s := NewSynthesizer(reg, lib.NewSeeder(42), clock, 30*time.Second)

	a := s.Synthesize("Jaipur", 0)
	b := s.Synthesize("Jaipur", 0)
	assert.Equal(t, a, b)

	clock.Advance(time.Hour)
	c := s.Synthesize("Jaipur", 0)
	assert.NotEqual(t, a.TouristLocations, c.TouristLocations)
}

func TestSafetyLevelFor(t *testing.T) {
	assert.Equal(t, locitypes.SafetyLevelLow, SafetyLevelFor(8))
	assert.Equal(t, locitypes.SafetyLevelMedium, SafetyLevelFor(7.99))
	assert.Equal(t, locitypes.SafetyLevelMedium, SafetyLevelFor(6))
	assert.Equal(t, locitypes.SafetyLevelHigh, SafetyLevelFor(4))
	assert.Equal(t, locitypes.SafetyLevelCritical, SafetyLevelFor(3.99))
}

func TestBuildZones_EmptyZoneKeepsTemplateLevel(t *testing.T) {
	p := locitypes.CityProfile{
		Name: "Test",
		Zones: []locitypes.ZoneTemplate{
			{Name: "North", Position: locitypes.Position{Lat: 10, Lng: 10}, SafetyLevel: locitypes.SafetyLevelLow},
			{Name: "South", Position: locitypes.Position{Lat: -10, Lng: 10}, SafetyLevel: locitypes.SafetyLevelHigh},
		},
	}
	locs := []locitypes.TouristLocation{
		{Position: locitypes.Position{Lat: 9.9, Lng: 10}, Count: 10, SafetyScore: 3},
		{Position: locitypes.Position{Lat: 10.1, Lng: 10}, Count: 5, SafetyScore: 4},
	}

	zones := buildZones(p, locs)
	require.Len(t, zones, 2)
	assert.Equal(t, locitypes.SafetyLevelCritical, zones[0].SafetyLevel)
	assert.Equal(t, 15, zones[0].TouristCount)
	assert.Equal(t, locitypes.SafetyLevelHigh, zones[1].SafetyLevel)
	assert.Zero(t, zones[1].TouristCount)
	assert.Equal(t, "zone-test-1", zones[1].ID)
}

func newTestService(t *testing.T, clock *lib.ManualClock) *ServiceImpl {
	logger := newTestLogger()
	store := cache.New(cache.Config{}, clock, logger)
	return NewHeatmapService(newTestSynthesizer(t, clock), store, 30*time.Second, logger)
}

func TestService_CachesComposition(t *testing.T) {
	clock := lib.NewManualClock(testNow)
	svc := newTestService(t, clock)
	ctx := context.Background()

	first, err := svc.SynthesizeCity(ctx, "Delhi", 0)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	second, err := svc.SynthesizeCity(ctx, " delhi ", 0)
	require.NoError(t, err)
	assert.Equal(t, first.LastUpdated, second.LastUpdated)

	clock.Advance(30 * time.Second)
	third, err := svc.SynthesizeCity(ctx, "Delhi", 0)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(40*time.Second), third.LastUpdated)
}

func TestService_CountHintIsPartOfKey(t *testing.T) {
	svc := newTestService(t, lib.NewManualClock(testNow))

	a, err := svc.SynthesizeCity(context.Background(), "Agra", 0)
	require.NoError(t, err)
	b, err := svc.SynthesizeCity(context.Background(), "Agra", 12)
	require.NoError(t, err)
	assert.Len(t, a.TouristLocations, 4)
	assert.Len(t, b.TouristLocations, 12)
}

func TestService_CallersCannotMutateCachedComposition(t *testing.T) {
	svc := newTestService(t, lib.NewManualClock(testNow))
	ctx := context.Background()

	first, err := svc.SynthesizeCity(ctx, "Delhi", 0)
	require.NoError(t, err)
	require.NotEmpty(t, first.TouristLocations)
	require.NotEmpty(t, first.SafetyZones)
	want := first.Clone()

	first.TouristLocations[0].Name = "tampered"
	first.TouristLocations = first.TouristLocations[:0]
	first.SafetyZones[0].SafetyLevel = locitypes.SafetyLevelCritical
	first.SafetyZones[0].RiskFactors = append(first.SafetyZones[0].RiskFactors[:0], "tampered")
	first.Statistics.NationalityDistribution["tampered"] = 99
	first.Statistics.AgeGroupDistribution = nil

	second, err := svc.SynthesizeCity(ctx, "Delhi", 0)
	require.NoError(t, err)
	assert.Equal(t, want, *second)
}

type stubService struct {
	data      *locitypes.HeatmapData
	err       error
	lastCalls []string
	lastCount int
}

func (s *stubService) SynthesizeCity(_ context.Context, city string, countHint int) (*locitypes.HeatmapData, error) {
	s.lastCalls = append(s.lastCalls, city)
	s.lastCount = countHint
	return s.data, s.err
}

func newTestMux(svc Service) *http.ServeMux {
	h := NewHandler(svc, newTestLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /heatmap/{city}", h.Heatmap)
	mux.HandleFunc("GET /heatmap/{city}/locations", h.Locations)
	mux.HandleFunc("GET /heatmap/{city}/zones", h.Zones)
	mux.HandleFunc("GET /heatmap/{city}/statistics", h.Statistics)
	return mux
}

func serve(mux http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func sampleData() *locitypes.HeatmapData {
	return &locitypes.HeatmapData{
		City:         "Gotham",
		ResolvedCity: "Delhi",
		TouristLocations: []locitypes.TouristLocation{
			{ID: "tourist-delhi-0", Count: 20, SafetyScore: 7},
		},
		SafetyZones:        []locitypes.SafetyZone{{ID: "zone-delhi-0", Name: "Central Delhi"}},
		TotalTourists:      20,
		AverageSafetyScore: 7,
		LastUpdated:        testNow,
	}
}

func TestHandler_Views(t *testing.T) {
	stub := &stubService{data: sampleData()}
	mux := newTestMux(stub)

	rec := serve(mux, "/heatmap/Gotham?count=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var full locitypes.HeatmapData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	assert.Equal(t, "Delhi", full.ResolvedCity)
	assert.Equal(t, 5, stub.lastCount)

	rec = serve(mux, "/heatmap/Gotham/locations")
	require.Equal(t, http.StatusOK, rec.Code)
	var locs locationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locs))
	assert.Len(t, locs.Locations, 1)

	rec = serve(mux, "/heatmap/Gotham/zones")
	require.Equal(t, http.StatusOK, rec.Code)
	var zones zonesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &zones))
	assert.Equal(t, "Central Delhi", zones.Zones[0].Name)

	rec = serve(mux, "/heatmap/Gotham/statistics")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary locitypes.HeatmapSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalLocations)
	assert.Equal(t, 1, summary.TotalZones)
	assert.Equal(t, 20, summary.TotalTourists)

	assert.Equal(t, []string{"Gotham", "Gotham", "Gotham", "Gotham"}, stub.lastCalls)
}

func TestHandler_RejectsBadCount(t *testing.T) {
	stub := &stubService{data: sampleData()}
	mux := newTestMux(stub)

	assert.Equal(t, http.StatusUnprocessableEntity, serve(mux, "/heatmap/Delhi?count=abc").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, serve(mux, "/heatmap/Delhi?count=100000").Code)
	assert.Empty(t, stub.lastCalls)
}

func TestHandler_ServiceErrorIsInternal(t *testing.T) {
	mux := newTestMux(&stubService{err: errors.New("boom")})

	rec := serve(mux, "/heatmap/Delhi")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}
