/*
Copyright © 2024 the ForestFireDatasetGenerator authors.
This file is part of ForestFireDatasetGenerator.

ForestFireDatasetGenerator is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ForestFireDatasetGenerator is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ForestFireDatasetGenerator.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package elevation queries a remote point elevation service that follows
// the Google Maps Elevation API request and response format.
package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ctessum/geom"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// DefaultURL is the Google Maps Elevation API endpoint.
const DefaultURL = "https://maps.googleapis.com/maps/api/elevation/json"

// DefaultBatchSize is the largest number of locations the Google
// Elevation API accepts in one request.
const DefaultBatchSize = 512

// DefaultDelay is the pause between consecutive batch requests.
const DefaultDelay = time.Second

// Client requests elevations in batches. Requests are sequential.
type Client struct {
	// URL is the service endpoint.
	URL string

	// Key is the API key sent with each request.
	Key string

	// BatchSize is the maximum number of locations per request.
	BatchSize int

	// Delay is the pause between batch requests.
	Delay time.Duration

	// MaxRetries is the number of times a request that fails in
	// transport is retried before its batch is considered failed.
	MaxRetries uint64

	// RetryInterval is the initial wait before a retry. If zero, the
	// backoff package default is used.
	RetryInterval time.Duration

	HTTPClient *http.Client
	Clock      clockwork.Clock
	Metrics    *Metrics
	Log        logrus.FieldLogger
}

// NewClient returns a client for the service at baseURL with the default
// batch size and delay.
func NewClient(baseURL, key string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		URL:        baseURL,
		Key:        key,
		BatchSize:  DefaultBatchSize,
		Delay:      DefaultDelay,
		MaxRetries: 3,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Clock:      clockwork.NewRealClock(),
	}
}

func (c *Client) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

func (c *Client) clock() clockwork.Clock {
	if c.Clock == nil {
		return clockwork.NewRealClock()
	}
	return c.Clock
}

// Elevations returns the elevation [m] at each point, where X is longitude
// and Y is latitude. Points in a batch that the service does not answer
// successfully are NaN; such failures are not returned as errors. An error
// is returned only if ctx is cancelled.
func (c *Client) Elevations(ctx context.Context, pts []geom.Point) ([]float64, error) {
	out := make([]float64, len(pts))
	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(pts); start += size {
		if start > 0 && c.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.clock().After(c.Delay):
			}
		}
		end := start + size
		if end > len(pts) {
			end = len(pts)
		}
		batch := pts[start:end]
		c.Metrics.observePoints(len(batch))
		vals, err := c.batch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.Metrics.observeBatch("error")
			c.log().WithFields(logrus.Fields{
				"first":  start,
				"points": len(batch),
			}).Warnf("elevation: batch failed; its points will be missing: %v", err)
			for i := start; i < end; i++ {
				out[i] = math.NaN()
			}
			continue
		}
		c.Metrics.observeBatch("success")
		copy(out[start:end], vals)
	}
	return out, nil
}

// response is the elevation service response body.
type response struct {
	Results []result `json:"results"`
	Status  string   `json:"status"`
	Error   string   `json:"error_message,omitempty"`
}

type result struct {
	Elevation float64 `json:"elevation"`
	Location  struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	Resolution float64 `json:"resolution"`
}

// errPermanent marks a batch failure that retrying will not fix.
type errPermanent struct{ error }

// batch requests the elevations for one batch of points. Any failure
// fails the whole batch.
func (c *Client) batch(ctx context.Context, pts []geom.Point) ([]float64, error) {
	locs := make([]string, len(pts))
	for i, p := range pts {
		locs[i] = fmt.Sprintf("%.6f,%.6f", p.Y, p.X)
	}
	params := url.Values{"locations": {strings.Join(locs, "|")}}
	if c.Key != "" {
		params.Set("key", c.Key)
	}
	fullURL := c.URL + "?" + params.Encode()

	var r response
	var permanent error
	b := backoff.NewExponentialBackOff()
	if c.RetryInterval > 0 {
		b.InitialInterval = c.RetryInterval
	}
	err := backoff.RetryNotify(
		func() error {
			var err error
			r, err = c.doRequest(ctx, fullURL)
			if pe, ok := err.(errPermanent); ok {
				// Stop retrying; the service answered.
				permanent = pe.error
				return nil
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx),
		func(err error, d time.Duration) {
			c.log().WithFields(logrus.Fields{"wait": d}).Infof("elevation: %v: retrying", err)
		},
	)
	if err != nil {
		return nil, err
	}
	if permanent != nil {
		return nil, permanent
	}
	if r.Status != "OK" {
		return nil, fmt.Errorf("service status %s: %s", r.Status, r.Error)
	}
	if len(r.Results) == 0 {
		return nil, fmt.Errorf("service returned no results")
	}
	if len(r.Results) != len(pts) {
		return nil, fmt.Errorf("service returned %d results for %d locations", len(r.Results), len(pts))
	}
	out := make([]float64, len(pts))
	for i, res := range r.Results {
		out[i] = res.Elevation
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequest(http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, errPermanent{fmt.Errorf("create request: %v", err)}
	}
	req = req.WithContext(ctx)
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	start := time.Now()
	resp, err := hc.Do(req)
	c.Metrics.observeDuration(time.Since(start))
	if err != nil {
		return response{}, fmt.Errorf("elevation request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1024))
		return response{}, errPermanent{fmt.Errorf("elevation API error: status %d: %s", resp.StatusCode, body)}
	}
	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return response{}, errPermanent{fmt.Errorf("decode response: %v", err)}
	}
	return r, nil
}
