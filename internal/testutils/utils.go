package testutils

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

func WaitUntil(timeout time.Duration, f func() bool) {
	t := time.After(timeout)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		for {
			select {
			case <-t:
				panic("timeout expired")
			default:
				if f() {
					wg.Done()
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()
	wg.Wait()
}

// AddParams attaches httprouter path parameters to the request, as the router would.
func AddParams(r *http.Request, kv ...string) {
	var params httprouter.Params
	for i := 0; i+1 < len(kv); i += 2 {
		params = append(params, httprouter.Param{Key: kv[i], Value: kv[i+1]})
	}
	ctx := context.WithValue(r.Context(), httprouter.ParamsKey, params)
	*r = *r.WithContext(ctx)
}

func UseTempFile(data string, f func(path string)) {
	file, err := os.CreateTemp("", "*.yaml")
	if err != nil {
		panic(fmt.Errorf("couldn't create temp file: %s", err))
	}
	_, err = file.WriteString(data)
	if err != nil {
		panic(fmt.Errorf("couldn't write to temp file: %s", err))
	}
	_ = file.Close()
	filePath := file.Name()
	defer func() {
		err := os.Remove(filePath)
		if err != nil {
			log.Printf("couldn't delete temp file %s: %s", filePath, err)
		}
	}()
	f(filePath)
}

func WriteIntoFile(path string, data string) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err = f.WriteString(data); err != nil {
		panic(err)
	}
	if err = f.Sync(); err != nil {
		panic(err)
	}
}

func ReadFile(path string) string {
	d, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	return string(d)
}
