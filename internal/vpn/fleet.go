package vpn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"gopkg.in/yaml.v3"
)

// DefaultProvider is the VPN provider configured on the gluetun instances.
const DefaultProvider = "mullvad"

// ErrUnknownInstance means the instance id is not in the fleet table.
var ErrUnknownInstance = errors.New("vpn: unknown instance")

// Instance is one gluetun container in the fleet.
type Instance struct {
	ID          string `yaml:"instance_id"`
	ControlPort int    `yaml:"control_port"`
	Region      string `yaml:"region"`
	Name        string `yaml:"name"`
}

// FleetConfig is the on-disk fleet description.
type FleetConfig struct {
	Provider  string     `yaml:"provider"`
	Instances []Instance `yaml:"instances"`
}

// LoadFleetConfig reads and validates a YAML fleet table.
func LoadFleetConfig(path string) (*FleetConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vpn: read fleet config: %w", err)
	}
	var cfg FleetConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("vpn: parse fleet config %s: %w", path, err)
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	seen := make(map[string]bool)
	for i, inst := range cfg.Instances {
		if inst.ID == "" {
			return nil, fmt.Errorf("vpn: fleet config %s: instance %d has no instance_id", path, i)
		}
		if inst.ControlPort <= 0 {
			return nil, fmt.Errorf("vpn: fleet config %s: instance %s has no control_port", path, inst.ID)
		}
		if seen[inst.ID] {
			return nil, fmt.Errorf("vpn: fleet config %s: duplicate instance_id %s", path, inst.ID)
		}
		seen[inst.ID] = true
	}
	return &cfg, nil
}

// InstanceStatus is a fleet member's last observed state.
type InstanceStatus struct {
	ID        string    `json:"instance_id"`
	Name      string    `json:"name"`
	Region    string    `json:"region"`
	Status    string    `json:"status"`
	PublicIP  string    `json:"public_ip,omitempty"`
	Country   string    `json:"country,omitempty"`
	Attempts  int       `json:"reconnect_attempts"`
	Reachable bool      `json:"reachable"`
	CheckedAt time.Time `json:"checked_at"`
}

// Fleet coordinates reconnects and rotation across all gluetun instances.
// The instance table is immutable after construction; only the status map
// and the per-instance guards mutate.
type Fleet struct {
	provider    string
	order       []string
	instances   map[string]Instance
	clients     map[string]*Client
	controllers map[string]*Controller
	states      map[string]*ReconnectState
	statuses    *xsync.Map[string, InstanceStatus]

	// CountryFn annotates egress IPs with a country name; optional.
	CountryFn func(ip string) string
}

// NewFleet builds a fleet from a config table and shared control-server
// credentials.
func NewFleet(cfg *FleetConfig, username, password string) *Fleet {
	f := &Fleet{
		provider:    cfg.Provider,
		instances:   make(map[string]Instance, len(cfg.Instances)),
		clients:     make(map[string]*Client, len(cfg.Instances)),
		controllers: make(map[string]*Controller, len(cfg.Instances)),
		states:      make(map[string]*ReconnectState, len(cfg.Instances)),
		statuses:    xsync.NewMap[string, InstanceStatus](),
	}
	for _, inst := range cfg.Instances {
		client := NewClient(inst.ControlPort, username, password)
		state := NewReconnectState(0, 0)
		f.order = append(f.order, inst.ID)
		f.instances[inst.ID] = inst
		f.clients[inst.ID] = client
		f.states[inst.ID] = state
		f.controllers[inst.ID] = NewController(client, state)
	}
	return f
}

// SetReconnectPolicy applies cooldown and attempt ceiling to every
// instance guard. Non-positive values keep the defaults.
func (f *Fleet) SetReconnectPolicy(cooldown time.Duration, maxAttempts int) {
	for _, state := range f.states {
		state.SetPolicy(cooldown, maxAttempts)
	}
}

// Instances returns the configured instance ids in table order.
func (f *Fleet) Instances() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Status probes every instance concurrently and returns their states in
// table order. Unreachable instances report Reachable=false rather than
// failing the whole call.
func (f *Fleet) Status(ctx context.Context) []InstanceStatus {
	out := make([]InstanceStatus, len(f.order))
	var wg sync.WaitGroup
	for i, id := range f.order {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			out[i] = f.probe(ctx, id)
		}(i, id)
	}
	wg.Wait()
	return out
}

// LastStatus returns the most recent probe result for an instance, if any.
func (f *Fleet) LastStatus(id string) (InstanceStatus, bool) {
	return f.statuses.Load(id)
}

func (f *Fleet) probe(ctx context.Context, id string) InstanceStatus {
	inst := f.instances[id]
	st := InstanceStatus{
		ID:        id,
		Name:      inst.Name,
		Region:    inst.Region,
		Attempts:  f.states[id].Attempts(),
		CheckedAt: time.Now().UTC(),
	}
	client := f.clients[id]

	status, err := client.Status(ctx)
	if err != nil {
		log.Printf("vpn: status probe %s: %v", id, err)
		st.Status = "unreachable"
		f.statuses.Store(id, st)
		return st
	}
	st.Status = status
	st.Reachable = true
	if ip, err := client.PublicIP(ctx); err == nil {
		st.PublicIP = ip
		if f.CountryFn != nil && ip != "" {
			st.Country = f.CountryFn(ip)
		}
	}
	f.statuses.Store(id, st)
	return st
}

// Reconnect cycles one instance's tunnel, subject to its guard.
func (f *Fleet) Reconnect(ctx context.Context, id string) error {
	ctrl, ok := f.controllers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	return ctrl.Reconnect(ctx)
}

// Rotate repoints an instance at a different country and cycles the tunnel
// to apply it. Empty country means round-robin to the next region in the
// fleet table. The cycle is unguarded: gluetun only picks up new settings
// on a restart, and rotation typically follows a failed reconnect that has
// already stamped the guard's cooldown.
func (f *Fleet) Rotate(ctx context.Context, id, country string) error {
	client, ok := f.clients[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	if country == "" {
		country = f.nextCountry(id)
	}
	log.Printf("vpn: rotating %s to %s", id, country)
	if err := client.SetCountries(ctx, f.provider, []string{country}); err != nil {
		return err
	}
	if err := f.controllers[id].cycle(ctx); err != nil {
		return err
	}
	f.states[id].Succeed()
	return nil
}

// HandleBlock reacts to an upstream block signal for an instance: first a
// plain reconnect for a fresh IP in the same region, then a rotation when
// the reconnect is refused or fails.
func (f *Fleet) HandleBlock(ctx context.Context, id string) error {
	if _, ok := f.instances[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	log.Printf("vpn: handling block on %s", id)
	err := f.Reconnect(ctx, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCooldownActive) {
		// A reconnect just happened; a rotation now would thrash.
		return err
	}
	log.Printf("vpn: reconnect %s failed (%v), rotating server", id, err)
	return f.Rotate(ctx, id, "")
}

func (f *Fleet) nextCountry(id string) string {
	for i, other := range f.order {
		if other == id {
			next := f.instances[f.order[(i+1)%len(f.order)]]
			if next.Name != "" {
				return next.Name
			}
			break
		}
	}
	if len(f.order) > 0 {
		return f.instances[f.order[0]].Name
	}
	return ""
}

// RunRefresher probes the fleet at a jittered interval until stopCh closes.
// Each sweep gets its own timeout so a hung control server cannot wedge
// the loop.
func (f *Fleet) RunRefresher(stopCh <-chan struct{}, minInterval, jitterRange time.Duration) {
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		interval := minInterval
		if jitterRange > 0 {
			interval += time.Duration(rand.Int64N(int64(jitterRange)))
		}
		timer.Reset(interval)
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		f.Status(ctx)
		cancel()
	}
}
