package weather

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/loci-safety-api/internal/domain/risk"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
	"github.com/FACorreiaa/loci-safety-api/pkg/upstream"
)

// SourceName labels weather data in failures, metrics and cache keys.
const SourceName = "visualcrossing"

// MaxForecastDays is the longest forecast the timeline API serves.
const MaxForecastDays = 15

// Client talks to the Visual Crossing timeline API.
type Client struct {
	baseURL string
	apiKey  string
	http    *upstream.Client
}

func NewClient(baseURL, apiKey string, hc *upstream.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		apiKey:  apiKey,
		http:    hc,
	}
}

// Timeline is the decoded part of one timeline response.
type Timeline struct {
	Address string
	// Current is nil when the response carried no currentConditions block.
	Current *locitypes.WeatherRecord
	Days    []locitypes.ForecastDay
	// Alerts holds every upstream alert, significant or not.
	Alerts []locitypes.WeatherAlert
}

type conditionsPayload struct {
	DatetimeEpoch int64    `json:"datetimeEpoch"`
	Temp          *float64 `json:"temp"`
	FeelsLike     *float64 `json:"feelslike"`
	Humidity      *float64 `json:"humidity"`
	WindSpeed     *float64 `json:"windspeed"`
	Visibility    *float64 `json:"visibility"`
	Pressure      *float64 `json:"pressure"`
	CloudCover    *float64 `json:"cloudcover"`
	Conditions    string   `json:"conditions"`
	UVIndex       *float64 `json:"uvindex"`
}

type dayPayload struct {
	Datetime   string  `json:"datetime"`
	TempMax    float64 `json:"tempmax"`
	TempMin    float64 `json:"tempmin"`
	Conditions string  `json:"conditions"`
	PrecipProb float64 `json:"precipprob"`
	WindSpeed  float64 `json:"windspeed"`
	Humidity   float64 `json:"humidity"`
}

type alertPayload struct {
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type timelinePayload struct {
	Address           string             `json:"address"`
	ResolvedAddress   string             `json:"resolvedAddress"`
	CurrentConditions *conditionsPayload `json:"currentConditions"`
	Days              []dayPayload       `json:"days"`
	Alerts            []alertPayload     `json:"alerts"`
}

// Timeline fetches current conditions, days of forecast (capped at MaxForecastDays) and alerts.
func (c *Client) Timeline(ctx context.Context, location string, days int) (Timeline, error) {
	days = min(max(days, 1), MaxForecastDays)

	params := url.Values{}
	params.Set("unitGroup", "metric")
	params.Set("contentType", "json")
	params.Set("key", c.apiKey)
	params.Set("days", strconv.Itoa(days))
	endpoint := c.baseURL + url.PathEscape(location) + "?" + params.Encode()

	var p timelinePayload
	if err := c.http.GetJSON(ctx, endpoint, nil, &p); err != nil {
		return Timeline{}, err
	}

	t := Timeline{
		Address: p.Address,
		Days:    make([]locitypes.ForecastDay, 0, len(p.Days)),
		Alerts:  make([]locitypes.WeatherAlert, 0, len(p.Alerts)),
	}
	if t.Address == "" {
		t.Address = location
	}
	if p.CurrentConditions != nil {
		rec := p.CurrentConditions.record(location)
		t.Current = &rec
	}
	for _, d := range p.Days {
		t.Days = append(t.Days, locitypes.ForecastDay{
			Date:       d.Datetime,
			TempMax:    d.TempMax,
			TempMin:    d.TempMin,
			Conditions: d.Conditions,
			PrecipProb: d.PrecipProb,
			WindSpeed:  d.WindSpeed,
			Humidity:   d.Humidity,
		})
	}
	for _, a := range p.Alerts {
		severity := a.Severity
		if severity == "" {
			severity = "minor"
		}
		t.Alerts = append(t.Alerts, risk.NewUpstreamAlert(a.Event, a.Headline, a.Description, severity))
	}
	return t, nil
}

// record fills absent measurements with neutral values.
func (c conditionsPayload) record(location string) locitypes.WeatherRecord {
	rec := locitypes.WeatherRecord{
		Location:    location,
		Temperature: valueOr(c.Temp, 20),
		FeelsLike:   valueOr(c.FeelsLike, 20),
		Humidity:    valueOr(c.Humidity, 50),
		WindSpeed:   valueOr(c.WindSpeed, 10),
		Visibility:  valueOr(c.Visibility, 10),
		Pressure:    valueOr(c.Pressure, 1013),
		CloudCover:  valueOr(c.CloudCover, 0),
		Conditions:  c.Conditions,
		UVIndex:     valueOr(c.UVIndex, 5),
		Alerts:      []locitypes.WeatherAlert{},
	}
	if rec.Conditions == "" {
		rec.Conditions = "Clear"
	}
	if c.DatetimeEpoch > 0 {
		rec.ObservedAt = time.Unix(c.DatetimeEpoch, 0).UTC()
	}
	return rec
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
