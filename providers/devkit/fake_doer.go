package devkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// HTTPScript is one canned response for the fake doer. When Err is set
// the request fails without producing a response.
type HTTPScript struct {
	StatusCode  int
	ContentType string
	Body        string
	Err         error
}

// RecordedRequest captures the parts of an outbound request tests care
// about. The body is drained at record time so handlers can replay it.
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// FakeDoer replays scripted responses in order. Once the scripts run
// out the last one repeats, so a single script serves any call count.
type FakeDoer struct {
	mu       sync.Mutex
	scripts  []HTTPScript
	requests []RecordedRequest
}

func NewFakeDoer(scripts ...HTTPScript) *FakeDoer {
	return &FakeDoer{scripts: append([]HTTPScript(nil), scripts...)}
}

func (d *FakeDoer) Do(req *http.Request) (*http.Response, error) {
	if d == nil {
		return nil, fmt.Errorf("devkit: fake doer is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	recorded := RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
	}
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		req.Body.Close()
		recorded.Body = string(raw)
	}
	d.requests = append(d.requests, recorded)

	index := len(d.requests) - 1
	if index >= len(d.scripts) {
		index = len(d.scripts) - 1
	}
	if index < 0 {
		return buildResponse(req, HTTPScript{StatusCode: http.StatusOK, ContentType: "application/json", Body: "{}"}), nil
	}
	script := d.scripts[index]
	if script.Err != nil {
		return nil, script.Err
	}
	return buildResponse(req, script), nil
}

// Requests returns a copy of every recorded request in call order.
func (d *FakeDoer) Requests() []RecordedRequest {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RecordedRequest(nil), d.requests...)
}

// CallCount reports how many requests the doer has served.
func (d *FakeDoer) CallCount() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func buildResponse(req *http.Request, script HTTPScript) *http.Response {
	status := script.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	contentType := strings.TrimSpace(script.ContentType)
	if contentType == "" {
		contentType = "application/json"
	}
	header := http.Header{}
	header.Set("Content-Type", contentType)
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(script.Body))),
		Request:    req,
	}
}

// JSONScript is shorthand for a JSON response with the given status.
func JSONScript(statusCode int, body string) HTTPScript {
	return HTTPScript{StatusCode: statusCode, ContentType: "application/json", Body: body}
}
