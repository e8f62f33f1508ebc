package sync

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
)

// HTTPRequestTimeout is the default timeout for all HTTP requests to Mantis and Jira.
const HTTPRequestTimeout = 60 * time.Second

// recordingsPath is where request recordings are written when RecordRequests is set.
const recordingsPath = "testdata/.requests"

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 64 << 10

// apiBuilder returns a requests.Builder rooted at endpoint.
// The endpoint always ends in a slash so relative paths are appended to it,
// which keeps installs served from a sub path (e.g. https://host/mantis) working.
func apiBuilder(endpoint string, record bool, recording string) *requests.Builder {
	result := requests.
		URL(strings.TrimSuffix(endpoint, "/") + "/").
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if record {
		result = result.Transport(requests.Record(nil, fmt.Sprintf("%s/%s", recordingsPath, recording)))
	}
	return result
}

// statusValidator accepts only the given status codes.
// It stores the status of every response, and the body of rejected ones, for error reporting.
func statusValidator(status *int, body *string, accept ...int) requests.ResponseHandler {
	return func(res *http.Response) error {
		*status = res.StatusCode
		if slices.Contains(accept, res.StatusCode) {
			return nil
		}
		b, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		if err == nil {
			*body = string(b)
		}
		return fmt.Errorf("unexpected status: %s", res.Status)
	}
}

// successStatuses lists the 2xx codes.
var successStatuses = []int{
	http.StatusOK,
	http.StatusCreated,
	http.StatusAccepted,
	http.StatusNonAuthoritativeInfo,
	http.StatusNoContent,
	http.StatusResetContent,
	http.StatusPartialContent,
}
