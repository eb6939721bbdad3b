package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		data       any
		expected   string
	}{
		{"object", http.StatusOK, map[string]int{"count": 42}, "{\"count\":42}\n"},
		{"created", http.StatusCreated, []string{"one"}, "[\"one\"]\n"},
		{"nil data", http.StatusNoContent, nil, ""},
		{"empty map", http.StatusOK, map[string]string{}, "{}\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, tc.data)

			if recorder.Code != tc.statusCode {
				t.Errorf("expected status %d, got %d", tc.statusCode, recorder.Code)
			}
			if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
			}
			if recorder.Body.String() != tc.expected {
				t.Errorf("expected body %q, got %q", tc.expected, recorder.Body.String())
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusNotFound, "post not found")

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", recorder.Code)
	}
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["error"] != "post not found" {
		t.Errorf("expected error 'post not found', got '%s'", result["error"])
	}
}

func TestParsePostID(t *testing.T) {
	tests := []struct {
		param string
		id    int64
		ok    bool
	}{
		{"42", 42, true},
		{"9007199254740993", 9007199254740993, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.param, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tc.param})
			recorder := httptest.NewRecorder()

			id, ok := parsePostID(recorder, req)
			if ok != tc.ok || id != tc.id {
				t.Errorf("parsePostID(%q) = %d, %v; want %d, %v", tc.param, id, ok, tc.id, tc.ok)
			}
			if !ok && recorder.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", recorder.Code)
			}
		})
	}
}

func TestParseSearchQuery(t *testing.T) {
	tests := []struct {
		query     string
		limit     int
		threshold float64
		wantErr   bool
	}{
		{"", 0, 0, false},
		{"limit=5", 5, 0, false},
		{"threshold=0.25&limit=10", 10, 0.25, false},
		{"limit=0", 0, 0, true},
		{"limit=100000", 0, 0, true},
		{"limit=x", 0, 0, true},
		{"threshold=0", 0, 0, true},
		{"threshold=1.5", 0, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			q, err := parseSearchQuery(httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil))
			if (err != nil) != tc.wantErr {
				t.Fatalf("error = %v; wantErr %v", err, tc.wantErr)
			}
			if err == nil && (q.Limit != tc.limit || q.Threshold != tc.threshold) {
				t.Errorf("query = %+v; want limit %d threshold %f", q, tc.limit, tc.threshold)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst contentTokenRequest

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content_token":"abc"}`))
	if !decodeJSON(recorder, req, &dst) || dst.ContentToken != "abc" {
		t.Errorf("decodeJSON failed, got %+v", dst)
	}

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	if decodeJSON(recorder, req, &dst) {
		t.Error("decodeJSON should fail on invalid JSON")
	}
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", recorder.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	for _, method := range []string{"GET", "HEAD"} {
		t.Run(method, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			HealthCheck(recorder, httptest.NewRequest(method, "/api/v1/health", nil))

			if recorder.Code != http.StatusOK {
				t.Errorf("expected status %d, got %d", http.StatusOK, recorder.Code)
			}
		})
	}
}
