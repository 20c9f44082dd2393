package forward

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mottu/patio-proxy/backend"
	"github.com/mottu/patio-proxy/cache"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/internal/utils"
	"github.com/mottu/patio-proxy/log"
)

var forwardedHeaders = []string{"Authorization", "Content-Type", "Accept-Language"}

// Route maps one inbound endpoint to a backend path.
type Route struct {
	// Name labels metrics and logs, e.g. dashboard.resumo.
	Name string
	// Path is the backend path relative to the API base path.
	Path string
	// Query replaces the inbound query when set, otherwise the query is copied verbatim.
	Query url.Values
	// Category enables caching of 2xx GET answers.
	Category string
	// Invalidates lists the tags invalidated after a 2xx mutation.
	Invalidates []string
	// Message is the envelope error text used when the backend fails.
	Message string
}

type Forwarder struct {
	client    *backend.Client
	cache     *cache.Tagged
	telemetry telemetry.Reporter
	log       log.Logger
}

// NewForwarder creates a Forwarder. A nil cache disables response caching.
func NewForwarder(client *backend.Client, cache *cache.Tagged, telemetryReporter telemetry.Reporter, log log.Logger) *Forwarder {
	return &Forwarder{
		client:    client,
		cache:     cache,
		telemetry: telemetryReporter,
		log:       log.WithPrefix("forward"),
	}
}

func (f *Forwarder) Client() *backend.Client {
	return f.client
}

// Forward performs one backend call for r and relays a 2xx answer unchanged.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, route Route) {
	rawQuery := r.URL.RawQuery
	if route.Query != nil {
		rawQuery = route.Query.Encode()
	}
	cacheable := r.Method == http.MethodGet && route.Category != ""
	// answers depend on the caller's credentials
	key := cache.Key(r.Method, route.Path, rawQuery, r.Header.Get("Authorization"))
	if cacheable && f.serveFromCache(w, r, key, route.Category) {
		return
	}

	req := &backend.Request{
		Method:   r.Method,
		Path:     route.Path,
		RawQuery: rawQuery,
		Header:   http.Header{},
	}
	for _, h := range forwardedHeaders {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		req.Body = r.Body
	}
	// taken before the call so that an invalidation racing it marks the entry stale
	start := time.Now()
	resp, err := f.client.Do(r.Context(), req)
	if err != nil {
		f.telemetry.AddUpstreamFailure(route.Name, 0)
		WriteErr(w, Transport(route.Message, err))
		return
	}
	if !resp.IsSuccess() {
		f.telemetry.AddUpstreamFailure(route.Name, resp.Status)
		f.log.Warnf("%s answered %d", route.Name, resp.Status)
		WriteErr(w, Upstream(route.Message, resp))
		return
	}
	entry := &cache.Entry{FetchedAt: start, Status: resp.Status, ContentType: resp.ContentType(), Body: resp.Body}
	if cacheable {
		f.store(r.Context(), w, key, route.Category, entry)
	} else if len(route.Invalidates) > 0 {
		f.invalidate(r.Context(), route.Invalidates)
	}
	writeEntry(w, r, entry)
}

// ServeCached answers from the cache when possible, otherwise produces the
// JSON value, answers with it and caches it.
func (f *Forwarder) ServeCached(w http.ResponseWriter, r *http.Request, category string, key string, produce func(ctx context.Context) (any, error)) {
	if f.serveFromCache(w, r, key, category) {
		return
	}
	start := time.Now()
	v, err := produce(r.Context())
	if err != nil {
		WriteErr(w, err)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		WriteErr(w, err)
		return
	}
	entry := &cache.Entry{FetchedAt: start, Status: http.StatusOK, ContentType: "application/json", Body: data}
	f.store(r.Context(), w, key, category, entry)
	writeEntry(w, r, entry)
}

// Invalidate marks the given tags stale, when caching is enabled.
func (f *Forwarder) Invalidate(ctx context.Context, tags ...string) {
	f.invalidate(ctx, tags)
}

func (f *Forwarder) serveFromCache(w http.ResponseWriter, r *http.Request, key string, category string) bool {
	if f.cache == nil {
		return false
	}
	c, ok := f.cache.Category(category)
	if !ok {
		return false
	}
	entry, hit := f.cache.Get(r.Context(), key, category)
	if !hit {
		return false
	}
	age := time.Since(entry.FetchedAt)
	w.Header().Set("X-Cache", "HIT")
	w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(max(int((c.Revalidate-age).Seconds()), 0)))
	w.Header().Set("Age", strconv.Itoa(max(int(age.Seconds()), 0)))
	writeEntry(w, r, entry)
	return true
}

func (f *Forwarder) store(ctx context.Context, w http.ResponseWriter, key string, category string, entry *cache.Entry) {
	if f.cache == nil {
		return
	}
	c, ok := f.cache.Category(category)
	if !ok || c.Revalidate <= 0 {
		return
	}
	f.cache.Set(ctx, key, category, entry)
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(int(c.Revalidate.Seconds())))
}

func (f *Forwarder) invalidate(ctx context.Context, tags []string) {
	if f.cache == nil {
		return
	}
	for _, tag := range tags {
		if _, err := f.cache.InvalidateTag(ctx, tag); err != nil {
			f.log.Errorf("failed to invalidate tag '%s': %s", tag, err)
		}
	}
}

func writeEntry(w http.ResponseWriter, r *http.Request, entry *cache.Entry) {
	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	if len(entry.Body) > 0 && entry.Status == http.StatusOK {
		etag := `"` + utils.FastHashHex(entry.Body) + `"`
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(entry.Status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(entry.Body)
	}
}
