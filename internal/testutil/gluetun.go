// Package testutil provides in-process fakes for the external systems the
// gateway talks to: the media extractor and gluetun control servers.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeGluetun is an in-process gluetun control server. It tracks status
// transitions and settings updates so tests can assert on the reconnect
// choreography.
type FakeGluetun struct {
	Server *httptest.Server

	mu           sync.Mutex
	status       string
	publicIP     string
	stopCalls    int
	startCalls   int
	settingsPuts []string

	// FailSetStatus makes status transitions return 500.
	FailSetStatus bool
}

// NewFakeGluetun starts a fake control server in the "running" state.
func NewFakeGluetun(publicIP string) *FakeGluetun {
	f := &FakeGluetun{status: "running", publicIP: publicIP}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/vpn/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": f.status})
	})
	mux.HandleFunc("PUT /v1/vpn/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.FailSetStatus {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.status = body.Status
		switch body.Status {
		case "stopped":
			f.stopCalls++
		case "running":
			f.startCalls++
		}
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("GET /v1/publicip/ip", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"public_ip": f.publicIP})
	})
	mux.HandleFunc("PUT /v1/settings", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body struct {
			VPN struct {
				Provider struct {
					Name            string `json:"name"`
					ServerSelection struct {
						Countries []string `json:"countries"`
					} `json:"server_selection"`
				} `json:"provider"`
			} `json:"vpn"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.settingsPuts = append(f.settingsPuts, body.VPN.Provider.ServerSelection.Countries...)
		w.Write([]byte("{}"))
	})
	f.Server = httptest.NewServer(mux)
	return f
}

// Close shuts the fake server down.
func (f *FakeGluetun) Close() { f.Server.Close() }

// URL returns the control server base URL.
func (f *FakeGluetun) URL() string { return f.Server.URL }

// Status returns the current fake tunnel status.
func (f *FakeGluetun) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// SetPublicIP changes the reported egress IP, as a real reconnect would.
func (f *FakeGluetun) SetPublicIP(ip string) {
	f.mu.Lock()
	f.publicIP = ip
	f.mu.Unlock()
}

// Cycles reports how many stop and start transitions were requested.
func (f *FakeGluetun) Cycles() (stops, starts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls, f.startCalls
}

// RotatedTo lists the countries pushed via settings updates, in order.
func (f *FakeGluetun) RotatedTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.settingsPuts))
	copy(out, f.settingsPuts)
	return out
}
