package crime

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/upstream"
)

// SourceName labels crime data in failures, metrics and cache keys.
const SourceName = "ncrb"

// StatisticsQuery selects one crime-statistics record. Coordinates are only sent when no
// state could be resolved.
type StatisticsQuery struct {
	State     string
	District  string
	CrimeType string
	Year      int
	Latitude  *float64
	Longitude *float64
}

type TrendsQuery struct {
	State    string
	District string
	Months   int
}

// Client talks to the NCRB style crime statistics API.
type Client struct {
	baseURL string
	apiKey  string
	http    *upstream.Client
}

func NewClient(baseURL, apiKey string, hc *upstream.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
	}
}

func (c *Client) header() http.Header {
	return http.Header{"Authorization": {"Bearer " + c.apiKey}}
}

func (c *Client) endpoint(path string, q url.Values) string {
	return c.baseURL + "/" + path + "?" + q.Encode()
}

type statisticsPayload struct {
	State            string  `json:"state"`
	District         string  `json:"district"`
	Year             float64 `json:"year"`
	TotalCrimes      float64 `json:"total_crimes"`
	ViolentCrimes    float64 `json:"violent_crimes"`
	PropertyCrimes   float64 `json:"property_crimes"`
	CyberCrimes      float64 `json:"cyber_crimes"`
	DrugRelated      float64 `json:"drug_related"`
	Theft            float64 `json:"theft"`
	Assault          float64 `json:"assault"`
	Robbery          float64 `json:"robbery"`
	Population       float64 `json:"population"`
	CrimeRatePer100k float64 `json:"crime_rate_per_100k"`
	TrendDirection   string  `json:"trend_direction"`
	Period           string  `json:"period"`
	LastUpdated      string  `json:"last_updated"`
}

type trendPointPayload struct {
	Month          string  `json:"month"`
	TotalCrimes    float64 `json:"total_crimes"`
	ViolentCrimes  float64 `json:"violent_crimes"`
	PropertyCrimes float64 `json:"property_crimes"`
	CyberCrimes    float64 `json:"cyber_crimes"`
}

type trendsPayload struct {
	State          string              `json:"state"`
	District       string              `json:"district"`
	Months         float64             `json:"trend_period_months"`
	Trends         []trendPointPayload `json:"trends"`
	TrendDirection string              `json:"trend_direction"`
	LastUpdated    string              `json:"last_updated"`
}

type indicatorsPayload struct {
	SafetyScore                  float64 `json:"safety_score"`
	CrimeDensity                 string  `json:"crime_density"`
	PoliceStationsNearby         float64 `json:"police_stations_nearby"`
	EmergencyResponseTimeMinutes float64 `json:"emergency_response_time_minutes"`
	StreetLightingScore          float64 `json:"street_lighting_score"`
	CrowdDensityScore            float64 `json:"crowd_density_score"`
	TransportSafetyScore         float64 `json:"transport_safety_score"`
	LastUpdated                  string  `json:"last_updated"`
}

// Statistics fetches one crime-statistics record.
func (c *Client) Statistics(ctx context.Context, q StatisticsQuery) (locitypes.CrimeRecord, error) {
	params := url.Values{}
	params.Set("year", strconv.Itoa(q.Year))
	if q.State != "" {
		params.Set("state", q.State)
	} else if q.Latitude != nil && q.Longitude != nil {
		params.Set("lat", strconv.FormatFloat(*q.Latitude, 'f', 6, 64))
		params.Set("lng", strconv.FormatFloat(*q.Longitude, 'f', 6, 64))
	}
	if q.District != "" {
		params.Set("district", q.District)
	}
	if q.CrimeType != "" {
		params.Set("crime_type", q.CrimeType)
	}

	var p statisticsPayload
	if err := c.http.GetJSON(ctx, c.endpoint("crime-statistics", params), c.header(), &p); err != nil {
		return locitypes.CrimeRecord{}, err
	}
	if p.TotalCrimes < 0 || p.Population < 0 {
		return locitypes.CrimeRecord{}, locitypes.NewFailure(SourceName, locitypes.FailureMalformed, "negative crime counts", nil)
	}

	rec := locitypes.CrimeRecord{
		State:            firstNonEmpty(p.State, q.State),
		District:         firstNonEmpty(p.District, q.District),
		Year:             int(p.Year),
		TotalCrimes:      int(p.TotalCrimes),
		ViolentCrimes:    int(p.ViolentCrimes),
		PropertyCrimes:   int(p.PropertyCrimes),
		CyberCrimes:      int(p.CyberCrimes),
		DrugRelated:      int(p.DrugRelated),
		Theft:            int(p.Theft),
		Assault:          int(p.Assault),
		Robbery:          int(p.Robbery),
		Population:       int(p.Population),
		CrimeRatePer100k: p.CrimeRatePer100k,
		TrendDirection:   parseTrend(p.TrendDirection),
		Period:           p.Period,
		LastUpdated:      parseTimestamp(p.LastUpdated),
	}
	if rec.Year == 0 {
		rec.Year = q.Year
	}
	if rec.Period == "" {
		rec.Period = strconv.Itoa(rec.Year)
	}
	return rec, nil
}

// Trends fetches the monthly crime series, oldest month first.
func (c *Client) Trends(ctx context.Context, q TrendsQuery) (locitypes.CrimeTrends, error) {
	params := url.Values{}
	params.Set("state", q.State)
	params.Set("months", strconv.Itoa(q.Months))
	if q.District != "" {
		params.Set("district", q.District)
	}

	var p trendsPayload
	if err := c.http.GetJSON(ctx, c.endpoint("crime-trends", params), c.header(), &p); err != nil {
		return locitypes.CrimeTrends{}, err
	}

	points := make([]locitypes.CrimeTrendPoint, 0, len(p.Trends))
	for _, t := range p.Trends {
		points = append(points, locitypes.CrimeTrendPoint{
			Month:          t.Month,
			TotalCrimes:    int(t.TotalCrimes),
			ViolentCrimes:  int(t.ViolentCrimes),
			PropertyCrimes: int(t.PropertyCrimes),
			CyberCrimes:    int(t.CyberCrimes),
		})
	}
	months := int(p.Months)
	if months == 0 {
		months = q.Months
	}
	return locitypes.CrimeTrends{
		State:          firstNonEmpty(p.State, q.State),
		District:       firstNonEmpty(p.District, q.District),
		Months:         months,
		Trends:         points,
		TrendDirection: parseTrend(p.TrendDirection),
		LastUpdated:    parseTimestamp(p.LastUpdated),
	}, nil
}

// SafetyIndicators fetches neighbourhood safety indicators around a point.
func (c *Client) SafetyIndicators(ctx context.Context, lat, lng, radiusKm float64) (locitypes.SafetyIndicators, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lng", strconv.FormatFloat(lng, 'f', 6, 64))
	params.Set("radius", strconv.FormatFloat(radiusKm, 'f', -1, 64))

	var p indicatorsPayload
	if err := c.http.GetJSON(ctx, c.endpoint("safety-indicators", params), c.header(), &p); err != nil {
		return locitypes.SafetyIndicators{}, err
	}
	return locitypes.SafetyIndicators{
		Latitude:                     lat,
		Longitude:                    lng,
		RadiusKm:                     radiusKm,
		SafetyScore:                  p.SafetyScore,
		CrimeDensity:                 p.CrimeDensity,
		PoliceStationsNearby:         int(p.PoliceStationsNearby),
		EmergencyResponseTimeMinutes: int(p.EmergencyResponseTimeMinutes),
		StreetLightingScore:          int(p.StreetLightingScore),
		CrowdDensityScore:            int(p.CrowdDensityScore),
		TransportSafetyScore:         int(p.TransportSafetyScore),
		LastUpdated:                  parseTimestamp(p.LastUpdated),
	}, nil
}

// parseTrend returns "" when the upstream did not state a direction.
func parseTrend(s string) locitypes.TrendDirection {
	switch d := locitypes.TrendDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case locitypes.TrendIncreasing, locitypes.TrendDecreasing, locitypes.TrendStable:
		return d
	default:
		return ""
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
