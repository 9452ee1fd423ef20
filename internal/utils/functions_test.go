package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseHeaderArgs(t *testing.T) {
	got := ParseHeaderArgs([]string{"X-A: 1", "bad", "X-B:two:parts"})
	if len(got) != 2 || got["X-A"] != "1" || got["X-B"] != "two:parts" {
		t.Errorf("ParseHeaderArgs = %v", got)
	}
}

func TestHTTPClientHeaders(t *testing.T) {
	var gotAuth, gotAgent, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPClientConfig{BearerToken: "secret", Headers: map[string]string{"X-Custom": "yes"}})
	resp, err := client.Get(t.Context(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	resp.Body.Close()
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotAgent != ToolUserAgent {
		t.Errorf("User-Agent = %q", gotAgent)
	}
	if gotCustom != "yes" {
		t.Errorf("X-Custom = %q", gotCustom)
	}
}
