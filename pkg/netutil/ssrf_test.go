package netutil

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsPrivateIP(t *testing.T) {
	for _, tc := range []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.0.10", true},
		{"169.254.169.254", true},
		{"::1", true},
		{"0.0.0.0", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	} {
		if got := IsPrivateIP(net.ParseIP(tc.ip)); got != tc.want {
			t.Errorf("IsPrivateIP(%s) = %t, want %t", tc.ip, got, tc.want)
		}
	}
}

func TestCheckURL(t *testing.T) {
	for _, raw := range []string{"https://example.com/a", "http://example.com"} {
		if _, err := CheckURL(raw); err != nil {
			t.Errorf("CheckURL(%q): %v", raw, err)
		}
	}
	for _, raw := range []string{"file:///etc/passwd", "ftp://example.com", "/relative", "https://"} {
		if _, err := CheckURL(raw); err == nil {
			t.Errorf("CheckURL(%q) succeeded, want an error", raw)
		}
	}
}

func TestSafeTransportBlocksLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: SafeTransport()}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("request to a loopback server succeeded")
	}
}
