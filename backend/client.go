package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/diag/status"
	"github.com/mottu/patio-proxy/diag/telemetry"
	"github.com/mottu/patio-proxy/log"
)

const maxBodySize = 16 << 20

// Response is a fully read backend answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

type Request struct {
	Method string
	// Path is relative to the configured API base path, e.g. /dashboard/resumo.
	Path string
	// RawQuery is copied verbatim when Query is nil.
	RawQuery string
	Query    url.Values
	Header   http.Header
	Body     io.Reader
}

type Client struct {
	baseUrl string
	headers map[string]string
	client  *http.Client
	tel     telemetry.Reporter
	log     log.Logger
}

func NewClient(conf *config.BackendConfig, statusReporter status.Reporter, telemetryReporter telemetry.Reporter, log log.Logger) *Client {
	backendLog := log.WithLevel(conf.Log.GetLevel()).WithPrefix("backend")
	var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	transport = status.InterceptBackend(statusReporter, transport)
	transport = telemetryReporter.InstrumentHttpClient(transport, telemetry.NewKV("peer", "backend"))
	backendLog.Reportf("forwarding to %s", conf.BaseUrl())
	return &Client{
		baseUrl: conf.BaseUrl(),
		headers: conf.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(conf.Timeout) * time.Second,
		},
		tel: telemetryReporter,
		log: backendLog,
	}
}

// URL builds the absolute backend URL of path with the given raw query.
func (c *Client) URL(path string, rawQuery string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseUrl + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Do performs exactly one outbound call. Non-2xx answers are returned as a
// Response, only transport failures produce an error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	rawQuery := req.RawQuery
	if req.Query != nil {
		rawQuery = req.Query.Encode()
	}
	target := c.URL(req.Path, rawQuery)

	ctx, span := c.tel.StartSpan(ctx, "backend.fetch", telemetry.NewKV("method", method), telemetry.NewKV("path", req.Path))
	defer span.End()

	body := req.Body
	if body == nil {
		body = http.NoBody
	}
	r, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend request: %w", err)
	}
	for k, v := range req.Header {
		r.Header[k] = v
	}
	for k, v := range c.headers {
		r.Header.Set(k, v)
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json")
	}

	c.log.Debugf("%s %s", method, target)
	resp, err := c.client.Do(r)
	if err != nil {
		c.log.Errorf("%s %s failed: %s", method, target, err)
		span.RecordError(err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.log.Errorf("failed to read the response of %s %s: %s", method, target, err)
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}
	c.log.Debugf("%s %s answered %d", method, target, resp.StatusCode)
	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}, nil
}
