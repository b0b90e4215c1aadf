// Package geoip annotates egress IPs with their country using a local
// MaxMind database.
package geoip

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"
)

// Reader abstracts the database reader so tests can stub lookups.
type Reader interface {
	Lookup(ip net.IP) string
	Close() error
}

type countryRecord struct {
	Country struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
}

type mmdbReader struct {
	db *maxminddb.Reader
}

// Open opens a GeoLite2/GeoIP2 country database.
func Open(path string) (Reader, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	return &mmdbReader{db: db}, nil
}

func (r *mmdbReader) Lookup(ip net.IP) string {
	var rec countryRecord
	if err := r.db.Lookup(ip, &rec); err != nil {
		return ""
	}
	if name := rec.Country.Names["en"]; name != "" {
		return name
	}
	return rec.Country.ISOCode
}

func (r *mmdbReader) Close() error {
	return r.db.Close()
}

// Service provides country lookup with hot-reloading via RWMutex. A Service
// with no database loaded answers every lookup with "".
type Service struct {
	mu     sync.RWMutex
	reader Reader

	path string
}

// NewService creates a Service over a database path. An empty path yields a
// disabled service; a load failure is logged and also yields a disabled
// service, country annotation is never worth failing startup over.
func NewService(path string) *Service {
	s := &Service{path: path}
	if path == "" {
		return s
	}
	if err := s.Reload(); err != nil {
		log.Printf("geoip: %v", err)
	}
	return s
}

// Lookup returns the country name for an IP string, or "" when unknown,
// unparseable or the database is not loaded.
func (s *Service) Lookup(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reader == nil {
		return ""
	}
	return s.reader.Lookup(ip)
}

// Reload reopens the database file and swaps the reader. RLock holders
// finish on the old reader before it is closed.
func (s *Service) Reload() error {
	if s.path == "" {
		return nil
	}
	reader, err := Open(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.reader
	s.reader = reader
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// SetReader installs a reader directly. Test hook.
func (s *Service) SetReader(r Reader) {
	s.mu.Lock()
	old := s.reader
	s.reader = r
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Close releases the underlying database.
func (s *Service) Close() {
	s.mu.Lock()
	r := s.reader
	s.reader = nil
	s.mu.Unlock()
	if r != nil {
		r.Close()
	}
}
