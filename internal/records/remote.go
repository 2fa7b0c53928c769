package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/estate-search/internal/core/model"
	obs "github.com/mohammed-shakir/estate-search/internal/core/observability"
)

const maxResponseBytes = 32 << 20

// Remote talks to the property API. Every response is an envelope
// {ok, data, error}.
type Remote struct {
	base   *url.URL
	token  string
	hc     *http.Client
	logger *slog.Logger
}

var _ RecordStore = (*Remote)(nil)

func NewRemote(baseURL, token string, hc *http.Client, logger *slog.Logger) (*Remote, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid property api url %q", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{base: u, token: token, hc: hc, logger: logger}, nil
}

func (r *Remote) Name() string { return "remote" }

type envelope struct {
	OK    *bool           `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (r *Remote) do(ctx context.Context, method string, id int64, body []byte, out any) error {
	u := *r.base
	if id != 0 {
		q := u.Query()
		q.Set("id", strconv.FormatInt(id, 10))
		u.RawQuery = q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := r.hc.Do(req)
	obs.ObserveUpstreamLatency("property_api", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("property api %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read property api response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("property api %s: %w", method, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &APIError{Status: resp.StatusCode, Message: "invalid response"}
	}
	if env.OK != nil && !*env.OK {
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode property api data: %w", err)
	}
	return nil
}

func (r *Remote) List(ctx context.Context) (Listing, error) {
	var w listingWire
	if err := r.do(ctx, http.MethodGet, 0, nil, &w); err != nil {
		return Listing{}, err
	}
	return NewListing(decodeRecords(ctx, w.Properties, r.logger)), nil
}

// Get accepts either a single record or a listing in data; older API
// versions ignore the id parameter and answer with the full list.
func (r *Remote) Get(ctx context.Context, id int64) (model.Record, error) {
	var data json.RawMessage
	if err := r.do(ctx, http.MethodGet, id, nil, &data); err != nil {
		return model.Record{}, err
	}
	var shape struct {
		Properties []json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &shape); err == nil && shape.Properties != nil {
		for _, rec := range decodeRecords(ctx, shape.Properties, r.logger) {
			if rec.ID == id {
				return rec, nil
			}
		}
		return model.Record{}, fmt.Errorf("property %d: %w", id, ErrNotFound)
	}
	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Record{}, err
	}
	if rec.ID == 0 {
		return model.Record{}, fmt.Errorf("property %d: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (r *Remote) Create(ctx context.Context, rec model.Record) (int64, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}
	var out struct {
		PropertyID int64 `json:"property_id"`
	}
	if err := r.do(ctx, http.MethodPost, 0, body, &out); err != nil {
		return 0, err
	}
	if out.PropertyID == 0 {
		return 0, errors.New("property api: create returned no property_id")
	}
	return out.PropertyID, nil
}

func (r *Remote) Update(ctx context.Context, id int64, patch json.RawMessage) error {
	return r.do(ctx, http.MethodPut, id, patch, nil)
}

func (r *Remote) Remove(ctx context.Context, id int64) error {
	return r.do(ctx, http.MethodDelete, id, nil, nil)
}
