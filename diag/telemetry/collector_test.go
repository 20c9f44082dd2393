package telemetry

import (
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// grpcCollector hosts an OTLP gRPC service on a random local port.
type grpcCollector struct {
	listener net.Listener
	srv      *grpc.Server
	mu       sync.RWMutex
}

func newGrpcCollector() (*grpcCollector, error) {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return nil, err
	}
	return &grpcCollector{listener: listener, srv: grpc.NewServer()}, nil
}

func (c *grpcCollector) Addr() string {
	return c.listener.Addr().String()
}

func (c *grpcCollector) Shutdown() {
	c.srv.Stop()
}

// inMemoryHttpCollector keeps every OTLP/HTTP export request it receives.
type inMemoryHttpCollector[T proto.Message] struct {
	srv     *httptest.Server
	newMsg  func() T
	mu      sync.RWMutex
	records []T
}

func newInMemoryHttpCollector[T proto.Message](newMsg func() T) *inMemoryHttpCollector[T] {
	c := &inMemoryHttpCollector[T]{newMsg: newMsg}
	c.srv = httptest.NewServer(c)
	return c
}

func (c *inMemoryHttpCollector[T]) Addr() string {
	return c.srv.Listener.Addr().String()
}

func (c *inMemoryHttpCollector[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = gz.Close() }()
		body = gz
	}
	data, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg := c.newMsg()
	if err = proto.Unmarshal(data, msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.records = append(c.records, msg)
	c.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (c *inMemoryHttpCollector[T]) snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.records...)
}

func (c *inMemoryHttpCollector[T]) Shutdown() {
	c.srv.Close()
}
