// Package router maps the HTTP API onto filter state, record stores and the
// evaluator.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/estate-search/internal/cache/keys"
	"github.com/mohammed-shakir/estate-search/internal/core/model"
	obs "github.com/mohammed-shakir/estate-search/internal/core/observability"
	"github.com/mohammed-shakir/estate-search/internal/filter"
	"github.com/mohammed-shakir/estate-search/internal/filterstate"
	"github.com/mohammed-shakir/estate-search/internal/kv"
	mylog "github.com/mohammed-shakir/estate-search/internal/logger"
	"github.com/mohammed-shakir/estate-search/internal/mapper"
	h3mapper "github.com/mohammed-shakir/estate-search/internal/mapper/h3"
	"github.com/mohammed-shakir/estate-search/internal/records"
)

const maxBodyBytes = 1 << 20

type Deps struct {
	Logger      *slog.Logger
	KV          kv.KV
	Records     records.RecordStore
	Validator   *records.Validator
	Memo        *filter.Memo
	Mapper      mapper.Interface
	H3Res       int
	KVOpTimeout time.Duration
}

type api struct {
	Deps
}

// New mounts the /api routes.
func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Mapper == nil {
		d.Mapper = h3mapper.New()
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/filters/{scope}", func(r chi.Router) {
			r.Get("/", a.getFilters)
			r.Put("/", a.putFilters)
			r.Patch("/", a.patchFilters)
			r.Delete("/", a.resetFilters)
		})
		r.Get("/properties", a.listProperties)
		r.Get("/properties/{id}", a.getProperty)
		r.Get("/map/clusters", a.mapClusters)

		r.Route("/admin/properties", func(r chi.Router) {
			r.Get("/", a.adminList)
			r.Post("/", a.adminCreate)
			r.Put("/{id}", a.adminUpdate)
			r.Delete("/{id}", a.adminDelete)
		})
	})
	return r
}

type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{OK: true, Data: data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{OK: false, Error: msg})
}

// filterStore resolves the state of one view for the caller's session.
func (a *api) filterStore(r *http.Request, scope string) *filterstate.Store {
	key := keys.FilterKey(scope, mylog.SessionFrom(r.Context()))
	var opts []filterstate.Option
	if a.KVOpTimeout > 0 {
		opts = append(opts, filterstate.WithOpTimeout(a.KVOpTimeout))
	}
	return filterstate.New(a.KV, key, a.Logger, opts...)
}

func (a *api) scope(w http.ResponseWriter, r *http.Request, raw string, def string) (string, context.Context, bool) {
	scope := strings.ToLower(strings.TrimSpace(raw))
	if scope == "" {
		scope = def
	}
	if !keys.ValidScope(scope) {
		fail(w, http.StatusBadRequest, fmt.Sprintf("unknown scope %q (want %s or %s)", raw, keys.ScopeMap, keys.ScopeProperty))
		return "", nil, false
	}
	return scope, mylog.WithScope(r.Context(), scope), true
}

func (a *api) getFilters(w http.ResponseWriter, r *http.Request) {
	scope, ctx, valid := a.scope(w, r, chi.URLParam(r, "scope"), "")
	if !valid {
		return
	}
	ok(w, http.StatusOK, a.filterStore(r, scope).Load(ctx))
}

func (a *api) putFilters(w http.ResponseWriter, r *http.Request) {
	scope, ctx, valid := a.scope(w, r, chi.URLParam(r, "scope"), "")
	if !valid {
		return
	}
	body, err := readBody(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	var st model.FilterState
	if err := json.Unmarshal(body, &st); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	fs := a.filterStore(r, scope)
	fs.Save(ctx, st)
	ok(w, http.StatusOK, fs.Current())
}

func (a *api) patchFilters(w http.ResponseWriter, r *http.Request) {
	scope, ctx, valid := a.scope(w, r, chi.URLParam(r, "scope"), "")
	if !valid {
		return
	}
	body, err := readBody(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	fs := a.filterStore(r, scope)
	cur := fs.Load(ctx)
	if err := cur.Merge(body); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	fs.Save(ctx, cur)
	ok(w, http.StatusOK, fs.Current())
}

func (a *api) resetFilters(w http.ResponseWriter, r *http.Request) {
	scope, ctx, valid := a.scope(w, r, chi.URLParam(r, "scope"), "")
	if !valid {
		return
	}
	ok(w, http.StatusOK, a.filterStore(r, scope).Reset(ctx))
}

type listingOut struct {
	Properties []model.Record    `json:"properties"`
	Count      int               `json:"count"`
	Total      int               `json:"total"`
	Filters    model.FilterState `json:"filters"`
	Sort       filter.Order      `json:"sort"`
}

// evaluated fetches the listing, keeps active records and applies the
// stored filters of scope.
func (a *api) evaluated(ctx context.Context, r *http.Request, scope string, order filter.Order) (listingOut, error) {
	l, err := a.Records.List(ctx)
	if err != nil {
		return listingOut{}, err
	}
	active := records.Active(l.Properties)
	st := a.filterStore(r, scope).Load(ctx)

	var out []model.Record
	if a.Memo != nil {
		out = a.Memo.Evaluate(l.Fingerprint, active, st, order)
	} else {
		out = filter.Evaluate(active, st, order)
	}
	obs.ObserveEvaluation(scope, len(out))
	return listingOut{Properties: out, Count: len(out), Total: len(active), Filters: st, Sort: order}, nil
}

func (a *api) listingFailed(ctx context.Context, w http.ResponseWriter, err error) {
	a.Logger.ErrorContext(ctx, "listing fetch failed", "store", a.Records.Name(), "err", err)
	writeJSON(w, http.StatusBadGateway, envelope{
		OK:    false,
		Error: err.Error(),
		Data:  listingOut{Properties: []model.Record{}, Filters: model.DefaultFilterState(), Sort: filter.Newest},
	})
}

func (a *api) listProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, ctx, valid := a.scope(w, r, q.Get("scope"), keys.ScopeProperty)
	if !valid {
		return
	}
	out, err := a.evaluated(ctx, r, scope, filter.ParseOrder(q.Get("sort")))
	if err != nil {
		a.listingFailed(ctx, w, err)
		return
	}
	ok(w, http.StatusOK, out)
}

func (a *api) getProperty(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.Records.Get(r.Context(), id)
	if err != nil {
		a.storeError(r.Context(), w, "get", err)
		return
	}
	ok(w, http.StatusOK, rec)
}

type clustersOut struct {
	Clusters []h3mapper.Cluster `json:"clusters"`
	Count    int                `json:"count"`
	Res      int                `json:"res"`
	BBox     string             `json:"bbox,omitempty"`
}

func (a *api) mapClusters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, ctx, valid := a.scope(w, r, q.Get("scope"), keys.ScopeMap)
	if !valid {
		return
	}
	res := a.H3Res
	if raw := strings.TrimSpace(q.Get("res")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(w, http.StatusBadRequest, fmt.Sprintf("invalid res %q", raw))
			return
		}
		res = n
	}
	if res < h3mapper.MinRes || res > h3mapper.MaxRes {
		fail(w, http.StatusBadRequest, fmt.Sprintf("res %d out of range %d..%d", res, h3mapper.MinRes, h3mapper.MaxRes))
		return
	}
	var bbox *model.BBox
	if raw := strings.TrimSpace(q.Get("bbox")); raw != "" {
		bb, err := h3mapper.ParseBBox(raw)
		if err != nil {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
		bbox = &bb
	}

	out, err := a.evaluated(ctx, r, scope, filter.Newest)
	if err != nil {
		a.Logger.ErrorContext(ctx, "listing fetch failed", "store", a.Records.Name(), "err", err)
		writeJSON(w, http.StatusBadGateway, envelope{
			OK:    false,
			Error: err.Error(),
			Data:  clustersOut{Clusters: []h3mapper.Cluster{}, Res: res},
		})
		return
	}
	rs := out.Properties
	resp := clustersOut{Res: res}
	if bbox != nil {
		rs = h3mapper.InBBox(rs, *bbox)
		resp.BBox = bbox.String()
	}
	clusters, err := a.Mapper.Cluster(rs, res)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	resp.Clusters, resp.Count = clusters, len(rs)
	ok(w, http.StatusOK, resp)
}

func (a *api) adminList(w http.ResponseWriter, r *http.Request) {
	l, err := a.Records.List(r.Context())
	if err != nil {
		a.listingFailed(r.Context(), w, err)
		return
	}
	ok(w, http.StatusOK, map[string]any{"properties": l.Properties, "count": l.Count})
}

func (a *api) adminCreate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if a.Validator != nil {
		if err := a.Validator.ValidateCreate(body); err != nil {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var rec model.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.Records.Create(r.Context(), rec)
	if err != nil {
		a.storeError(r.Context(), w, "create", err)
		return
	}
	ok(w, http.StatusCreated, map[string]int64{"property_id": id})
}

func (a *api) adminUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	body, err := readBody(r)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if a.Validator != nil {
		if err := a.Validator.ValidateUpdate(body); err != nil {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := a.Records.Update(r.Context(), id, json.RawMessage(body)); err != nil {
		a.storeError(r.Context(), w, "update", err)
		return
	}
	ok(w, http.StatusOK, map[string]int64{"property_id": id})
}

func (a *api) adminDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.Records.Remove(r.Context(), id); err != nil {
		a.storeError(r.Context(), w, "delete", err)
		return
	}
	ok(w, http.StatusOK, map[string]int64{"property_id": id})
}

func (a *api) storeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var apiErr *records.APIError
	switch {
	case errors.Is(err, records.ErrNotFound):
		fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, records.ErrInvalid):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		a.Logger.WarnContext(ctx, "property api call failed", "op", op, "status", apiErr.Status, "err", err)
		status := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		fail(w, status, err.Error())
	default:
		a.Logger.ErrorContext(ctx, "record store call failed", "op", op, "err", err)
		fail(w, http.StatusBadGateway, err.Error())
	}
}

func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, errors.New("empty request body")
	}
	return b, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid property id %q", raw)
	}
	return id, nil
}
