package transport

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HTTPFetcher abstracts HTTP calls for testability
type HTTPFetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// RealHTTPFetcher wraps http.Client for production use
type RealHTTPFetcher struct {
	client *http.Client
}

// NewRealHTTPFetcher creates a production HTTP fetcher. A zero timeout means
// no overall request deadline; cancellation still flows through the request
// context.
func NewRealHTTPFetcher(timeout time.Duration) HTTPFetcher {
	return &RealHTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *RealHTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	return f.client.Do(req)
}

type mockResponse struct {
	status int
	body   string
}

// MockHTTPFetcher simulates HTTP responses for testing
type MockHTTPFetcher struct {
	mu        sync.Mutex
	responses map[string]mockResponse
	errors    map[string]error
	requests  []string
}

// NewMockHTTPFetcher creates a mock HTTP fetcher
func NewMockHTTPFetcher() *MockHTTPFetcher {
	return &MockHTTPFetcher{
		responses: make(map[string]mockResponse),
		errors:    make(map[string]error),
	}
}

// AddResponse registers a mock response for a URL
func (m *MockHTTPFetcher) AddResponse(urlStr string, statusCode int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errors, urlStr)
	m.responses[urlStr] = mockResponse{status: statusCode, body: body}
}

// AddError registers a mock error for a URL
func (m *MockHTTPFetcher) AddError(urlStr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[urlStr] = err
}

// Requests returns every URL requested so far, in order.
func (m *MockHTTPFetcher) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// Count returns how often urlStr was requested.
func (m *MockHTTPFetcher) Count(urlStr string) int {
	n := 0
	for _, r := range m.Requests() {
		if r == urlStr {
			n++
		}
	}
	return n
}

func (m *MockHTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	urlStr := req.URL.String()
	m.mu.Lock()
	m.requests = append(m.requests, urlStr)
	err, hasErr := m.errors[urlStr]
	resp, hasResp := m.responses[urlStr]
	m.mu.Unlock()

	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	if hasErr {
		return nil, err
	}
	if !hasResp {
		// Return 404 for unknown URLs
		resp = mockResponse{status: http.StatusNotFound, body: "Not Found"}
	}
	parsedURL, _ := url.Parse(urlStr)
	return &http.Response{
		StatusCode:    resp.status,
		Body:          io.NopCloser(strings.NewReader(resp.body)),
		ContentLength: int64(len(resp.body)),
		Header:        make(http.Header),
		Request:       &http.Request{URL: parsedURL},
	}, nil
}
