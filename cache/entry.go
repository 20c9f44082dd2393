package cache

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Entry is a cached upstream response.
type Entry struct {
	FetchedAt   time.Time
	Status      int
	ContentType string
	Body        []byte
}

var newLineByte = []byte{'\n'}

// EntryToBytes encodes the entry as newline separated segments:
// fetch time in unix milliseconds, status code, content type, then the raw body.
func EntryToBytes(e *Entry) []byte {
	var b bytes.Buffer
	b.Grow(len(e.Body) + len(e.ContentType) + 32)
	b.WriteString(strconv.FormatInt(e.FetchedAt.UnixMilli(), 10))
	b.Write(newLineByte)
	b.WriteString(strconv.Itoa(e.Status))
	b.Write(newLineByte)
	b.WriteString(e.ContentType)
	b.Write(newLineByte)
	b.Write(e.Body)
	return b.Bytes()
}

func EntryFromBytes(data []byte) (*Entry, error) {
	segments := bytes.SplitN(data, newLineByte, 4)
	if len(segments) != 4 {
		return nil, fmt.Errorf("invalid cache entry: expected 4 segments, got %d", len(segments))
	}
	millis, err := strconv.ParseInt(string(segments[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cache entry fetch time: %w", err)
	}
	status, err := strconv.Atoi(string(segments[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid cache entry status: %w", err)
	}
	return &Entry{
		FetchedAt:   time.UnixMilli(millis),
		Status:      status,
		ContentType: string(segments[2]),
		Body:        segments[3],
	}, nil
}
