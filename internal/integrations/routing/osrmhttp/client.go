package osrmhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/DeliveryTrack/internal/geo"
	"github.com/BearBump/DeliveryTrack/internal/integrations/routing"
)

// Client ходит в OSRM (/route/v1/{profile}), геометрия маршрута — encoded polyline (1e5).
type Client struct {
	baseURL string
	profile string
	httpc   *http.Client
}

func New(baseURL, profile string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	if profile == "" {
		profile = "driving"
	}
	return &Client{
		baseURL: baseURL,
		profile: profile,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type osrmResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (c *Client) Route(ctx context.Context, origin, destination geo.Point) (routing.Result, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return routing.Result{}, errors.Wrap(err, "parse base url")
	}
	// OSRM принимает координаты в порядке lng,lat
	u.Path = fmt.Sprintf("/route/v1/%s/%s;%s", url.PathEscape(c.profile), coord(origin), coord(destination))
	q := u.Query()
	q.Set("overview", "full")
	q.Set("geometries", "polyline")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return routing.Result{}, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return routing.Result{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return routing.Result{}, routing.ErrRateLimited
	}

	var r osrmResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		if resp.StatusCode/100 != 2 {
			return routing.Result{}, fmt.Errorf("osrm http %d", resp.StatusCode)
		}
		return routing.Result{}, errors.Wrap(err, "decode")
	}
	if r.Code == "NoRoute" || (r.Code == "Ok" && len(r.Routes) == 0) {
		return routing.Result{}, routing.ErrNoRoute
	}
	if r.Code != "Ok" {
		return routing.Result{}, fmt.Errorf("osrm code=%s: %s", r.Code, r.Message)
	}

	best := r.Routes[0]
	return routing.Result{
		Points:   geo.DecodePolyline(best.Geometry),
		Polyline: best.Geometry,
		Distance: best.Distance,
		Duration: best.Duration,
	}, nil
}

func coord(p geo.Point) string {
	return strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}
