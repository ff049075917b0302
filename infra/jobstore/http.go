// Package jobstore adapts remote job stores to the jobs.Registry interface.
package jobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilianp07/fieldboard/auth"
	"github.com/kilianp07/fieldboard/core/jobs"
	"github.com/kilianp07/fieldboard/core/model"
)

// Config configures the HTTP job store client.
type Config struct {
	BaseURL        string    `json:"base_url"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Auth           auth.Conf `json:"auth"`
}

// HTTPRegistry reads jobs from a REST job store:
//
//	GET   {base}/jobs?date=YYYY-MM-DD   -> {"jobs": [Record...]}
//	PATCH {base}/jobs/{id}              <- {"status": "..."}
type HTTPRegistry struct {
	base   string
	client *http.Client
	creds  *auth.ClientCred
}

var _ jobs.Registry = (*HTTPRegistry)(nil)

// NewHTTPRegistry validates cfg. Requests carry a client-credentials token
// when cfg.Auth is set.
func NewHTTPRegistry(cfg Config) (*HTTPRegistry, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("job store base_url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("job store base_url: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &HTTPRegistry{
		base:   strings.TrimSuffix(cfg.BaseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
	if cfg.Auth.Enabled() {
		r.creds = auth.NewClientCred(cfg.Auth)
	}
	return r, nil
}

// JobsForDay fetches the raw records of day and translates them.
func (h *HTTPRegistry) JobsForDay(ctx context.Context, day time.Time) ([]model.Job, error) {
	u := fmt.Sprintf("%s/jobs?date=%s", h.base, url.QueryEscape(model.DayKey(day)))
	body, err := h.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Jobs []jobs.Record `json:"jobs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return jobs.ForDay(payload.Jobs, day)
}

// UpdateStatus writes a job's lifecycle status back to the store.
func (h *HTTPRegistry) UpdateStatus(ctx context.Context, jobID string, status model.Status) error {
	b, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/jobs/%s", h.base, url.PathEscape(jobID))
	_, err = h.do(ctx, http.MethodPatch, u, b)
	return err
}

// do sends the request, retrying once with a fresh token on 401.
func (h *HTTPRegistry) do(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if h.creds != nil {
			if err := h.creds.SetAuthHeader(req); err != nil {
				return nil, fmt.Errorf("failed to set auth header: %w", err)
			}
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		data, rerr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized && h.creds != nil && attempt == 0 {
			if _, err := h.creds.ForceRefresh(ctx); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, data)
		}
		if rerr != nil {
			return nil, fmt.Errorf("failed to read response: %w", rerr)
		}
		return data, nil
	}
}
