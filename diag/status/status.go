package status

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/mottu/patio-proxy/config"
)

type HealthStatus string

const (
	Backend = "backend"
	Cache   = "cache"

	Healthy      HealthStatus = "healthy"
	Degraded     HealthStatus = "degraded"
	Initializing HealthStatus = "initializing"
	Down         HealthStatus = "down"
	NA           HealthStatus = "n/a"
)

const maxRecordCount = 5
const maxLastErrorsMeaningDegraded = 2

type Reporter interface {
	ReportOk(component string, message string)
	ReportError(component string, message string)
	SetCacheMode(mode string)
	GetStatus() Status

	HttpHandler() http.HandlerFunc
}

type Status struct {
	Status  HealthStatus  `json:"status"`
	Backend BackendStatus `json:"backend"`
	Cache   CacheStatus   `json:"cache"`
}

type BackendStatus struct {
	Origin  string       `json:"origin"`
	Status  HealthStatus `json:"status"`
	Records []string     `json:"records"`
}

type CacheStatus struct {
	Mode    string       `json:"mode,omitempty"`
	Status  HealthStatus `json:"status"`
	Records []string     `json:"records"`
}

type record struct {
	time    time.Time
	isError bool
	message string
}

type reporter struct {
	records map[string][]record
	mu      sync.RWMutex
	status  Status
}

func NewNullReporter() Reporter {
	return &reporter{records: make(map[string][]record)}
}

func NewReporter(conf *config.Config) Reporter {
	r := &reporter{
		records: make(map[string][]record),
		status: Status{
			Status: Initializing,
			Backend: BackendStatus{
				Origin: conf.Backend.BaseUrl(),
				Status: Initializing,
			},
			Cache: CacheStatus{
				Status: Initializing,
			},
		},
	}
	if !conf.Cache.Enabled {
		r.status.Cache.Status = NA
	}
	return r
}

func (r *reporter) ReportOk(component string, message string) {
	r.appendRecord(component, "[ok] "+message, false)
}

func (r *reporter) ReportError(component string, message string) {
	r.appendRecord(component, "[error] "+message, true)
}

func (r *reporter) SetCacheMode(mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Cache.Mode = mode
}

func (r *reporter) HttpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status, err := json.Marshal(r.GetStatus())
		if err != nil {
			http.Error(w, "Error producing status", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(status)
	}
}

func (r *reporter) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.status
	s.Backend.Records = append([]string(nil), r.status.Backend.Records...)
	s.Cache.Records = append([]string(nil), r.status.Cache.Records...)
	return s
}

func (r *reporter) checkStatus(records []record) ([]string, HealthStatus) {
	length := len(records)
	targetRecords := make([]string, length)
	var errorCount = 0
	for i, msg := range records {
		targetRecords[i] = msg.time.UTC().Format(time.RFC1123) + ": " + msg.message
		if i >= length-maxLastErrorsMeaningDegraded {
			if msg.isError {
				errorCount++
			} else {
				errorCount--
			}
		}
	}
	if errorCount > 0 && errorCount >= min(maxLastErrorsMeaningDegraded, length) {
		return targetRecords, Degraded
	}
	return targetRecords, Healthy
}

func (r *reporter) appendRecord(component string, message string, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, ok := r.records[component]
	if !ok {
		recs = make([]record, 0, maxRecordCount)
	}
	recs = append(recs, record{time: time.Now(), isError: isError, message: message})
	if len(recs) > maxRecordCount {
		recs = recs[1:]
	}
	r.records[component] = recs
	rec, stat := r.checkStatus(recs)
	switch component {
	case Cache:
		if r.status.Cache.Status == NA {
			return
		}
		r.status.Cache.Records = rec
		r.status.Cache.Status = stat
	case Backend:
		r.status.Backend.Records = rec
		if stat == Degraded && (r.status.Backend.Status == Initializing || r.status.Backend.Status == Down) {
			stat = Down
		}
		r.status.Backend.Status = stat
	default:
		return
	}
	r.status.Status = r.overall()
}

func (r *reporter) overall() HealthStatus {
	switch r.status.Backend.Status {
	case Down:
		return Down
	case Initializing:
		return Initializing
	case Degraded:
		return Degraded
	}
	if r.status.Cache.Status == Degraded {
		return Degraded
	}
	return Healthy
}
