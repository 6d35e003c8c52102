package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:8080"

// TestContext holds per-scenario HTTP state against a running server.
type TestContext struct {
	BaseURL    string
	HTTPClient *http.Client

	LastStatus int
	LastBody   []byte
	LastHeader http.Header

	DigitalID string
	Hashes    []string
}

// NewTestContext reads BASE_URL, falling back to a local server.
func NewTestContext() *TestContext {
	base := os.Getenv("BASE_URL")
	if base == "" {
		base = defaultBaseURL
	}
	return &TestContext{
		BaseURL:    strings.TrimRight(base, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (tc *TestContext) reset() {
	tc.LastStatus = 0
	tc.LastBody = nil
	tc.LastHeader = nil
	tc.DigitalID = ""
	tc.Hashes = nil
}

// POST marshals body as JSON. A string body is sent verbatim.
func (tc *TestContext) POST(path string, body interface{}) error {
	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, tc.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.BaseURL+path, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	tc.LastStatus = resp.StatusCode
	tc.LastBody = body
	tc.LastHeader = resp.Header
	return nil
}

func (tc *TestContext) GetLastStatus() int            { return tc.LastStatus }
func (tc *TestContext) GetLastBody() []byte           { return tc.LastBody }
func (tc *TestContext) GetLastHeader(k string) string { return tc.LastHeader.Get(k) }

// GetResponseField reads a top-level field from the last JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastBody, &data); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response %s", field, string(tc.LastBody))
	}
	return v, nil
}

func (tc *TestContext) GetDigitalID() string   { return tc.DigitalID }
func (tc *TestContext) SetDigitalID(id string) { tc.DigitalID = id }

func (tc *TestContext) RecordHash(hash string) { tc.Hashes = append(tc.Hashes, hash) }
func (tc *TestContext) GetHashes() []string    { return tc.Hashes }
