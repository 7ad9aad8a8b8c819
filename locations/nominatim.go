package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"humanfinder/config"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	throttling = 3 * time.Second
	// Shorter first parts of a display name are joined with the next one
	minLocationDisplaySize = 5
)

type NominatimAddress struct {
	Aeroway       string `json:"aeroway"`
	Railway       string `json:"railway"`
	Place         string `json:"place"`
	Neighbourhood string `json:"neighbourhood"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Municipality  string `json:"municipality"`
	Province      string `json:"province"`
	State         string `json:"state"`
	Country       string `json:"country"`
	CountryCode   string `json:"country_code"`
}

type NominatimLocation struct {
	DisplayName string           `json:"display_name"`
	Address     NominatimAddress `json:"address"`
}

func (n *NominatimLocation) GetCity() string {
	if n.Address.City != "" {
		return n.Address.City
	}
	if n.Address.Town != "" {
		return n.Address.Town
	}
	if n.Address.Municipality != "" {
		return n.Address.Municipality
	}
	return n.Address.Province
}

func (n *NominatimLocation) GetArea() string {
	if n.Address.Aeroway != "" && len(n.Address.Aeroway) > 4 {
		if n.Address.Neighbourhood != "" {
			return n.Address.Aeroway + ", " + n.Address.Neighbourhood
		}
		return n.Address.Aeroway
	}
	if n.Address.Railway != "" {
		return n.Address.Railway
	}
	if n.Address.Place != "" {
		return n.Address.Place
	}
	if n.Address.Neighbourhood != "" {
		return n.Address.Neighbourhood
	}
	a := strings.Split(n.DisplayName, ",")
	city := n.GetCity()
	for i := len(a) - 1; i > 0; i-- {
		if strings.TrimLeft(a[i], " ") == city {
			return strings.TrimLeft(a[i-1], " ")
		}
	}
	if len(a) == 1 || len(a[0]) >= minLocationDisplaySize {
		return a[0]
	}
	return a[0] + "," + a[1]
}

// Label is the human readable "last seen" location, e.g. "Union Station, Chicago, United States"
func (n *NominatimLocation) Label() string {
	parts := []string{}
	for _, part := range []string{n.GetArea(), n.GetCity(), n.Address.Country} {
		part = strings.TrimSpace(part)
		if part == "" || (len(parts) > 0 && parts[len(parts)-1] == part) {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return n.DisplayName
	}
	return strings.Join(parts, ", ")
}

// Geocoder does reverse lookups against a Nominatim server, at most one request per Throttling interval
type Geocoder struct {
	BaseURL    string
	Client     *http.Client
	Throttling time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

func NewGeocoder() *Geocoder {
	return &Geocoder{
		BaseURL:    config.NOMINATIM_URL,
		Client:     &http.Client{Timeout: 15 * time.Second},
		Throttling: throttling,
	}
}

func (g *Geocoder) wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if delay := g.Throttling - time.Since(g.lastRequest); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	g.lastRequest = time.Now()
	return nil
}

func (g *Geocoder) Reverse(ctx context.Context, lat, long float64) (*NominatimLocation, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/reverse?format=json&lat=%f&lon=%f", strings.TrimSuffix(g.BaseURL, "/"), lat, long)
	slog.Debug("nominatim request", "url", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept-language", "en")
	req.Header.Set("user-agent", "humanfinder")
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim: HTTP %d", resp.StatusCode)
	}
	result := &NominatimLocation{}
	if err = json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, err
	}
	return result, nil
}
