package geoip

import (
	"net"
	"testing"
)

type stubReader struct {
	byIP   map[string]string
	closed bool
}

func (s *stubReader) Lookup(ip net.IP) string { return s.byIP[ip.String()] }
func (s *stubReader) Close() error            { s.closed = true; return nil }

func TestService_Lookup(t *testing.T) {
	s := NewService("")
	if got := s.Lookup("203.0.113.1"); got != "" {
		t.Fatalf("disabled service must answer empty, got %q", got)
	}

	s.SetReader(&stubReader{byIP: map[string]string{"203.0.113.1": "Japan"}})
	if got := s.Lookup("203.0.113.1"); got != "Japan" {
		t.Fatalf("got %q", got)
	}
	if got := s.Lookup("198.51.100.9"); got != "" {
		t.Fatalf("unknown ip: %q", got)
	}
	if got := s.Lookup("not-an-ip"); got != "" {
		t.Fatalf("garbage ip: %q", got)
	}
}

func TestService_SetReaderClosesOld(t *testing.T) {
	s := NewService("")
	old := &stubReader{}
	s.SetReader(old)
	s.SetReader(&stubReader{})
	if !old.closed {
		t.Fatal("old reader must be closed on swap")
	}
	s.Close()
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open("/nonexistent/geoip.mmdb"); err == nil {
		t.Fatal("expected error")
	}
}
