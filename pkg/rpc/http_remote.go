package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rangedb/pkg/dberrors"
	"rangedb/pkg/types"
)

// HTTPRemote talks to one partition node over its HTTP API. A 421 answer means
// the node no longer owns the addressed range and is translated to
// ErrStaleRoutingMap so the router can rebuild its map and retry.
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRemote(baseURL string, timeout time.Duration) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type getResp struct {
	Value string `json:"value"`
}

func checkStatus(op string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusMisdirectedRequest:
		return fmt.Errorf("%s: %w", op, dberrors.ErrStaleRoutingMap)
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed: %d: %s", op, resp.StatusCode, string(b))
	}
}

func (s *HTTPRemote) Put(ctx context.Context, key, value types.Value) error {
	form := url.Values{}
	form.Set("key", key)
	form.Set("value", value)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/put", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create PUT request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("PUT do: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus("PUT", resp)
}

func (s *HTTPRemote) Get(ctx context.Context, key string) (types.Value, bool, error) {
	u := fmt.Sprintf("%s/api/get?key=%s", s.baseURL, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false, fmt.Errorf("create GET request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("GET do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if err := checkStatus("GET", resp); err != nil {
		return "", false, err
	}

	var gr getResp
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", false, fmt.Errorf("decode GET body: %w", err)
	}
	return gr.Value, true, nil
}

func (s *HTTPRemote) Delete(ctx context.Context, key string) error {
	u := fmt.Sprintf("%s/api/delete?key=%s", s.baseURL, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create DELETE request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("DELETE do: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus("DELETE", resp)
}

// Scan returns all entries whose effective key falls in [min, max).
func (s *HTTPRemote) Scan(ctx context.Context, min, max types.Key) (map[string]types.Value, error) {
	u := fmt.Sprintf("%s/api/scan?min=%s&max=%s", s.baseURL, url.QueryEscape(min), url.QueryEscape(max))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create SCAN request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SCAN do: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("SCAN", resp); err != nil {
		return nil, err
	}

	var entries map[string]types.Value
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode SCAN body: %w", err)
	}
	return entries, nil
}

func (s *HTTPRemote) Close() error { return nil }
