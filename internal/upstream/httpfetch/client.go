// Package httpfetch implements the upstream Fetcher over a JSON history
// endpoint: GET {base}/history?symbol=&dataset=&start=&end= returning an
// array of {date, fields} rows.
package httpfetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/finscope/histcache/internal/series"
	"github.com/finscope/histcache/internal/upstream"
)

const maxErrorBody = 512

type Client struct {
	base *url.URL
	http *http.Client
}

// New builds a client for the provider at baseURL. timeout bounds each
// whole fetch; <= 0 leaves only context deadlines in charge.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("upstream base url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	return &Client{base: u, http: newOutbound(timeout)}, nil
}

// newOutbound tunes the transport for many small keep-alive requests to
// one provider host.
func newOutbound(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) Fetch(ctx context.Context, key series.Key, start, end series.Date) ([]upstream.Row, error) {
	u := *c.base
	u.Path, _ = url.JoinPath(u.Path, "history")
	q := u.Query()
	q.Set("symbol", key.Symbol)
	q.Set("dataset", key.Dataset)
	q.Set("start", start.String())
	q.Set("end", end.String())
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s [%s..%s]: %w", key, start, end, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("fetch %s [%s..%s]: upstream status %d: %s",
			key, start, end, resp.StatusCode, string(snippet))
	}

	var rows []upstream.Row
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("fetch %s [%s..%s]: decode body: %w", key, start, end, err)
	}
	return rows, nil
}
