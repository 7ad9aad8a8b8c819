package locations

import (
	"context"
	"humanfinder/models"
	"log/slog"

	"github.com/zsefvlol/timezonemapper"
)

// Enrich fills the time zone of a GPS tagged report and, when the reporter
// left it empty, the last seen location. Lookup failures are only logged.
func (g *Geocoder) Enrich(ctx context.Context, p *models.Person) {
	if p.GpsLat == nil || p.GpsLong == nil {
		return
	}
	if p.TimeZone == "" {
		p.TimeZone = timezonemapper.LatLngToTimezoneString(*p.GpsLat, *p.GpsLong)
	}
	if p.LastSeenLocation != "" || g == nil || g.BaseURL == "" {
		return
	}
	location, err := g.Reverse(ctx, *p.GpsLat, *p.GpsLong)
	if err != nil {
		slog.Warn("reverse geocoding", "lat", *p.GpsLat, "long", *p.GpsLong, "error", err)
		return
	}
	p.LastSeenLocation = location.Label()
}
