package status

import (
	"fmt"
	"net/http"
)

type clientInterceptor struct {
	http.RoundTripper

	reporter Reporter
}

// InterceptBackend reports the outcome of each backend call. Client errors
// (4xx) still count as a reachable backend.
func InterceptBackend(reporter Reporter, transport http.RoundTripper) http.RoundTripper {
	return &clientInterceptor{reporter: reporter, RoundTripper: transport}
}

func (i *clientInterceptor) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := i.RoundTripper.RoundTrip(r)
	if err != nil {
		i.reporter.ReportError(Backend, fmt.Sprintf("%s %s failed", r.Method, r.URL.Path))
	} else {
		if resp.StatusCode < http.StatusInternalServerError {
			i.reporter.ReportOk(Backend, fmt.Sprintf("%s %s answered %d", r.Method, r.URL.Path, resp.StatusCode))
		} else {
			i.reporter.ReportError(Backend, fmt.Sprintf("unexpected response received: %s", resp.Status))
		}
	}
	return resp, err
}
