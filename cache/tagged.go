package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/status"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/internal/utils"
	"github.com/mottu/patio-proxy/log"
)

const (
	responseKeyPrefix = "resp:"
	tagKeyPrefix      = "tag:"
)

// Tagged stores upstream responses by category. An entry is served while it
// is younger than its category's revalidation period and was fetched after
// the last invalidation of every tag of the category.
type Tagged struct {
	store             Store
	categories        map[string]Category
	statusReporter    status.Reporter
	telemetryReporter telemetry.Reporter
	log               log.Logger
	now               func() time.Time
}

func NewTagged(store External, conf *config.CacheConfig, statusReporter status.Reporter, telemetryReporter telemetry.Reporter, log log.Logger) *Tagged {
	statusReporter.SetCacheMode(store.Mode())
	statusReporter.ReportOk(status.Cache, "using "+store.Mode()+" storage")
	return &Tagged{
		store:             store,
		categories:        Categories(conf.Revalidate),
		statusReporter:    statusReporter,
		telemetryReporter: telemetryReporter,
		log:               log.WithPrefix("cache"),
		now:               time.Now,
	}
}

// Key derives the storage key of a response from its identifying parts.
func Key(parts ...string) string {
	return responseKeyPrefix + utils.FastHashHex([]byte(strings.Join(parts, "\n")))
}

func (t *Tagged) Category(name string) (Category, bool) {
	c, ok := t.categories[name]
	return c, ok
}

func (t *Tagged) Get(ctx context.Context, key string, category string) (*Entry, bool) {
	c, ok := t.categories[category]
	if !ok || c.Revalidate <= 0 {
		return nil, false
	}
	e, ok := t.lookup(ctx, key, c)
	t.telemetryReporter.AddCacheLookup(c.Name, ok)
	return e, ok
}

func (t *Tagged) lookup(ctx context.Context, key string, c Category) (*Entry, bool) {
	data, err := t.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.reportError("failed to read cache entry", err)
		}
		return nil, false
	}
	e, err := EntryFromBytes(data)
	if err != nil {
		t.reportError("failed to decode cache entry", err)
		return nil, false
	}
	if t.now().Sub(e.FetchedAt) >= c.Revalidate {
		return nil, false
	}
	for _, tag := range c.Tags {
		invalidatedAt, ok := t.invalidatedAt(ctx, tag)
		if ok && !e.FetchedAt.After(invalidatedAt) {
			t.log.Debugf("entry of '%s' invalidated by tag '%s'", c.Name, tag)
			return nil, false
		}
	}
	return e, true
}

func (t *Tagged) invalidatedAt(ctx context.Context, tag string) (time.Time, bool) {
	data, err := t.store.Get(ctx, tagKeyPrefix+tag)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.reportError("failed to read tag '"+tag+"'", err)
		}
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		t.reportError("invalid timestamp under tag '"+tag+"'", err)
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

func (t *Tagged) Set(ctx context.Context, key string, category string, e *Entry) {
	c, ok := t.categories[category]
	if !ok || c.Revalidate <= 0 {
		return
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = t.now()
	}
	if err := t.store.Set(ctx, key, EntryToBytes(e), c.Revalidate); err != nil {
		t.reportError("failed to write cache entry", err)
		return
	}
	t.statusReporter.ReportOk(status.Cache, "entry of '"+c.Name+"' stored")
}

// InvalidateTag marks every entry tagged with tag and fetched before now as stale.
func (t *Tagged) InvalidateTag(ctx context.Context, tag string) (time.Time, error) {
	now := t.now()
	if err := t.store.Set(ctx, tagKeyPrefix+tag, []byte(strconv.FormatInt(now.UnixMilli(), 10)), 0); err != nil {
		t.reportError("failed to invalidate tag '"+tag+"'", err)
		return time.Time{}, err
	}
	t.log.Infof("tag '%s' invalidated", tag)
	t.statusReporter.ReportOk(status.Cache, "tag '"+tag+"' invalidated")
	return now, nil
}

func (t *Tagged) reportError(msg string, err error) {
	t.log.Errorf("%s: %s", msg, err)
	t.statusReporter.ReportError(status.Cache, msg)
}
