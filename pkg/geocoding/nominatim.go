package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lintang/saferoute/pkg/datastructure"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
)

var (
	ErrUnknownLocation     = errors.New("unknown location")
	ErrOutOfServiceArea    = errors.New("location outside service area")
	ErrGeocoderUnavailable = errors.New("geocoder unavailable")
)

type Config struct {
	BaseURL     string
	ServiceArea string // substring every accepted display_name must contain, empty accepts all
	Timeout     time.Duration
	Retries     int
	UserAgent   string
}

// NominatimClient resolves free text addresses with a nominatim compatible search api.
type NominatimClient struct {
	cfg    Config
	client *httpclient.Client
}

func NewNominatimClient(cfg Config) *NominatimClient {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "saferoute"
	}
	backoff := heimdall.NewExponentialBackoff(100*time.Millisecond, 2*time.Second, 2.0, 50*time.Millisecond)
	client := httpclient.NewClient(
		httpclient.WithHTTPTimeout(cfg.Timeout),
		httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
		httpclient.WithRetryCount(cfg.Retries),
	)
	return &NominatimClient{cfg: cfg, client: client}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// ResolveAddress returns the coordinate of the best match for address. Transport failures and
// 5xx answers are retried by the http client; once retries are exhausted ErrGeocoderUnavailable
// is returned.
func (c *NominatimClient) ResolveAddress(ctx context.Context, address string) (datastructure.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return datastructure.Coordinate{}, fmt.Errorf("%w: empty address", ErrUnknownLocation)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", address)
	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return datastructure.Coordinate{}, fmt.Errorf("%w: %v", ErrGeocoderUnavailable, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		if res != nil {
			res.Body.Close()
		}
		return datastructure.Coordinate{}, fmt.Errorf("%w: %v", ErrGeocoderUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return datastructure.Coordinate{}, fmt.Errorf("%w: status %d", ErrGeocoderUnavailable, res.StatusCode)
	}

	var places []place
	if err := json.NewDecoder(res.Body).Decode(&places); err != nil {
		return datastructure.Coordinate{}, fmt.Errorf("%w: decode response: %v", ErrGeocoderUnavailable, err)
	}
	if len(places) == 0 {
		return datastructure.Coordinate{}, fmt.Errorf("%w: %q", ErrUnknownLocation, address)
	}

	best := places[0]
	if c.cfg.ServiceArea != "" && !strings.Contains(best.DisplayName, c.cfg.ServiceArea) {
		return datastructure.Coordinate{}, fmt.Errorf("%w: %q resolved to %q", ErrOutOfServiceArea, address, best.DisplayName)
	}

	lat, errLat := strconv.ParseFloat(best.Lat, 64)
	lon, errLon := strconv.ParseFloat(best.Lon, 64)
	coord := datastructure.NewCoordinate(lat, lon)
	if errLat != nil || errLon != nil || !coord.Valid() {
		return datastructure.Coordinate{}, fmt.Errorf("%w: invalid coordinate for %q", ErrUnknownLocation, address)
	}
	return coord, nil
}
