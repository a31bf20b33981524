package city

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/loci-safety-api/internal/lib"
	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// ResolveRadiusKm bounds how far a coordinate may be from a city centre and still resolve to it.
const ResolveRadiusKm = 100.0

const (
	defaultCrimeMultiplier = 1.0
	defaultBaseTemperature = 25.0
)

//go:embed anchors.yaml
var builtinTable []byte

type table struct {
	Cities []locitypes.CityProfile `yaml:"cities"`
}

// Registry is the read-only region table. It is built once at start-up and shared.
type Registry struct {
	profiles []locitypes.CityProfile
	byName   map[string]int
}

// BuiltinProfiles parses the embedded region table.
func BuiltinProfiles() ([]locitypes.CityProfile, error) {
	var t table
	if err := yaml.Unmarshal(builtinTable, &t); err != nil {
		return nil, fmt.Errorf("failed to parse builtin city table: %w", err)
	}
	return t.Cities, nil
}

// NewRegistry indexes profiles by city and state name. The first profile is the default.
func NewRegistry(profiles []locitypes.CityProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: city table is empty", locitypes.ErrConfiguration)
	}
	r := &Registry{
		profiles: make([]locitypes.CityProfile, len(profiles)),
		byName:   make(map[string]int, len(profiles)*2),
	}
	for i, p := range profiles {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("%w: city at index %d has no name", locitypes.ErrConfiguration, i)
		}
		if p.CrimeMultiplier <= 0 {
			p.CrimeMultiplier = defaultCrimeMultiplier
		}
		if p.BaseTemperature == 0 {
			p.BaseTemperature = defaultBaseTemperature
		}
		r.profiles[i] = p
		r.byName[normalize(p.Name)] = i
		if s := normalize(p.State); s != "" {
			if _, taken := r.byName[s]; !taken {
				r.byName[s] = i
			}
		}
	}
	return r, nil
}

// LoadRegistry builds the registry from the embedded table, applying overrides from repo when
// one is configured. A failing repository is logged and the embedded table is used as is.
func LoadRegistry(ctx context.Context, repo Repository, logger *slog.Logger) (*Registry, error) {
	l := logger.With(slog.String("method", "LoadRegistry"))

	profiles, err := BuiltinProfiles()
	if err != nil {
		return nil, err
	}
	if repo != nil {
		overrides, err := repo.ListProfiles(ctx)
		switch {
		case err != nil:
			l.WarnContext(ctx, "City table overrides unavailable, using builtin table", slog.Any("error", err))
		case len(overrides) > 0:
			profiles = Merge(profiles, overrides)
			l.InfoContext(ctx, "Applied city table overrides", slog.Int("overrides", len(overrides)))
		}
	}

	reg, err := NewRegistry(profiles)
	if err != nil {
		return nil, err
	}
	l.InfoContext(ctx, "City registry loaded", slog.Int("cities", len(reg.profiles)))
	return reg, nil
}

// Merge overlays overrides onto base by city name. Zero fields keep the base value and
// unknown cities are appended.
func Merge(base, overrides []locitypes.CityProfile) []locitypes.CityProfile {
	out := append([]locitypes.CityProfile(nil), base...)
	idx := make(map[string]int, len(out))
	for i, p := range out {
		idx[normalize(p.Name)] = i
	}
	for _, o := range overrides {
		i, ok := idx[normalize(o.Name)]
		if !ok {
			idx[normalize(o.Name)] = len(out)
			out = append(out, o)
			continue
		}
		p := out[i]
		if o.State != "" {
			p.State = o.State
		}
		if o.Center != (locitypes.Position{}) {
			p.Center = o.Center
		}
		if o.CrimeMultiplier > 0 {
			p.CrimeMultiplier = o.CrimeMultiplier
		}
		if o.BaseTemperature != 0 {
			p.BaseTemperature = o.BaseTemperature
		}
		if len(o.Anchors) > 0 {
			p.Anchors = o.Anchors
		}
		if len(o.Zones) > 0 {
			p.Zones = o.Zones
		}
		out[i] = p
	}
	return out
}

func (r *Registry) Default() locitypes.CityProfile {
	return r.profiles[0]
}

func (r *Registry) Cities() []locitypes.CityProfile {
	return append([]locitypes.CityProfile(nil), r.profiles...)
}

// Lookup finds a profile by city or state name, case-insensitively.
func (r *Registry) Lookup(name string) (locitypes.CityProfile, bool) {
	i, ok := r.byName[normalize(name)]
	if !ok {
		return locitypes.CityProfile{}, false
	}
	return r.profiles[i], true
}

// Nearest returns the profile whose centre is closest to the point, if within maxKm.
func (r *Registry) Nearest(lat, lng, maxKm float64) (locitypes.CityProfile, bool) {
	best, bestDist := -1, maxKm
	for i, p := range r.profiles {
		if p.Center == (locitypes.Position{}) {
			continue
		}
		if d := lib.HaversineKm(lat, lng, p.Center.Lat, p.Center.Lng); d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return locitypes.CityProfile{}, false
	}
	return r.profiles[best], true
}

// Resolve maps a location key onto a region: city, district and state names first, then
// the nearest centre within ResolveRadiusKm.
func (r *Registry) Resolve(loc locitypes.LocationKey) (locitypes.CityProfile, bool) {
	for _, name := range []string{loc.City, loc.District, loc.State} {
		if p, ok := r.Lookup(name); ok {
			return p, true
		}
	}
	if loc.HasCoordinates() {
		return r.Nearest(*loc.Latitude, *loc.Longitude, ResolveRadiusKm)
	}
	return locitypes.CityProfile{}, false
}

// HeatmapProfile returns the profile to synthesize a heatmap for. Unknown cities and cities
// without anchors resolve to the default city; fellBack reports that.
func (r *Registry) HeatmapProfile(name string) (p locitypes.CityProfile, fellBack bool) {
	if p, ok := r.Lookup(name); ok && len(p.Anchors) > 0 {
		return p, false
	}
	return r.Default(), true
}

var errUnknownCity = errors.New("unknown city")

// Find is Lookup returning ErrNotFound for unknown names.
func (r *Registry) Find(name string) (locitypes.CityProfile, error) {
	p, ok := r.Lookup(name)
	if !ok {
		return locitypes.CityProfile{}, fmt.Errorf("%w: %w %q", locitypes.ErrNotFound, errUnknownCity, name)
	}
	return p, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
