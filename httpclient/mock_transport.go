package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"regexp"
	"sync"
)

// MockTransport provides a configurable http.RoundTripper for testing.
// It allows stubbing responses and verifying request expectations.
//
// Example:
//
//	mock := httpclient.NewMockTransport().StubPath("/users", http.StatusOK, `[]`)
//	client := httpclient.New(httpclient.WithMockTransport(mock))
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []stub
	fallback    *stub
	requests    []*http.Request
	requestHook func(*http.Request)
}

type stub struct {
	matcher    func(*http.Request) bool
	statusCode int
	body       string
	err        error
	handler    func(*http.Request) (*http.Response, error)
}

func (s *stub) respond(req *http.Request) (*http.Response, error) {
	switch {
	case s.handler != nil:
		resp, err := s.handler(req)
		if resp != nil && resp.Request == nil {
			resp.Request = req
		}
		return resp, err
	case s.err != nil:
		return nil, s.err
	}
	resp := NewStubResponse(s.statusCode, s.body)
	resp.Request = req
	return resp, nil
}

// MockResult is one scripted outcome for StubSequence.
type MockResult struct {
	StatusCode int
	Body       string
	Err        error
}

// NewMockTransport creates a new MockTransport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// NewStubResponse builds a response with a readable body.
func NewStubResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode:    statusCode,
		Status:        http.StatusText(statusCode),
		Proto:         "HTTP/1.1",
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		Header:        make(http.Header),
		ContentLength: int64(len(body)),
	}
}

// StubResponse answers every unmatched request with the given response.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{statusCode: statusCode, body: body}
	return m
}

// StubError answers every unmatched request with err.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{err: err}
	return m
}

// StubPath stubs requests matching the path to return the given response.
func (m *MockTransport) StubPath(path string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body)
}

// StubPathRegex stubs requests matching the path regex to return the given response.
func (m *MockTransport) StubPathRegex(pattern string, statusCode int, body string) *MockTransport {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *http.Request) bool {
		return re.MatchString(req.URL.Path)
	}, statusCode, body)
}

// StubMethod stubs requests with the given method to return the given response.
func (m *MockTransport) StubMethod(method string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == method
	}, statusCode, body)
}

// StubFunc stubs requests matching the predicate to return the given response.
func (m *MockTransport) StubFunc(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
) *MockTransport {
	return m.addStub(stub{matcher: matcher, statusCode: statusCode, body: body})
}

// StubFuncError stubs requests matching the predicate to return the given error.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	return m.addStub(stub{matcher: matcher, err: err})
}

// StubHandler routes every request matching the predicate to fn.
// fn runs without the transport lock held, so it may block on the request context.
func (m *MockTransport) StubHandler(
	matcher func(*http.Request) bool,
	fn func(*http.Request) (*http.Response, error),
) *MockTransport {
	return m.addStub(stub{matcher: matcher, handler: fn})
}

// StubSequence answers successive requests with results in order. Once the
// results run out the last one repeats.
//
// Example:
//
//	mock.StubSequence(
//	    httpclient.MockResult{StatusCode: 500},
//	    httpclient.MockResult{StatusCode: 500},
//	    httpclient.MockResult{StatusCode: 200, Body: `{"ok":true}`},
//	)
func (m *MockTransport) StubSequence(results ...MockResult) *MockTransport {
	if len(results) == 0 {
		return m
	}

	var (
		mu   sync.Mutex
		next int
	)
	return m.StubHandler(func(*http.Request) bool { return true }, func(*http.Request) (*http.Response, error) {
		mu.Lock()
		r := results[min(next, len(results)-1)]
		next++
		mu.Unlock()

		if r.Err != nil {
			return nil, r.Err
		}
		return NewStubResponse(r.StatusCode, r.Body), nil
	})
}

func (m *MockTransport) addStub(s stub) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, s)
	return m
}

// OnRequest sets a hook that is called for each request.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	m.mu.RLock()
	match := m.fallback
	// First match wins.
	for i := range m.stubs {
		if m.stubs[i].matcher(req) {
			match = &m.stubs[i]
			break
		}
	}
	m.mu.RUnlock()

	if match == nil {
		return nil, errors.New("no stub found for request: " + req.Method + " " + req.URL.String())
	}
	return match.respond(req)
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.fallback = nil
	m.requestHook = nil
}
