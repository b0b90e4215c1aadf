package vpn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/streamgate-proxy/streamgate/internal/testutil"
)

func fastControllers(f *Fleet) {
	for _, ctrl := range f.controllers {
		ctrl.stopWait = 0
		ctrl.startWait = 0
		ctrl.baseDelay = time.Millisecond
	}
}

func testFleet(t *testing.T, n int) (*Fleet, []*testutil.FakeGluetun) {
	t.Helper()
	names := []string{"Singapore", "Japan", "USA"}
	cfg := &FleetConfig{Provider: "mullvad"}
	fakes := make([]*testutil.FakeGluetun, n)
	for i := 0; i < n; i++ {
		cfg.Instances = append(cfg.Instances, Instance{
			ID:          "instance-" + names[i],
			ControlPort: 8001 + i,
			Region:      names[i],
			Name:        names[i],
		})
	}
	f := NewFleet(cfg, "admin", "pw")
	for i, id := range f.order {
		fakes[i] = testutil.NewFakeGluetun(fmt.Sprintf("203.0.113.%d", i+1))
		t.Cleanup(fakes[i].Close)
		f.clients[id].BaseURL = fakes[i].URL()
	}
	fastControllers(f)
	return f, fakes
}

func TestLoadFleetConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	data := `provider: mullvad
instances:
  - instance_id: instance-sg
    control_port: 8001
    region: singapore
    name: Singapore
  - instance_id: instance-jp
    control_port: 8002
    region: japan
    name: Japan
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFleetConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Instances) != 2 || cfg.Instances[1].ControlPort != 8002 {
		t.Fatalf("parsed config: %+v", cfg)
	}
}

func TestLoadFleetConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	os.WriteFile(path, []byte("instances:\n  - region: nowhere\n"), 0o600)
	if _, err := LoadFleetConfig(path); err == nil {
		t.Fatal("expected validation error for missing instance_id")
	}
}

func TestFleet_ReconnectCyclesTunnel(t *testing.T) {
	f, fakes := testFleet(t, 1)
	id := f.order[0]

	if err := f.Reconnect(context.Background(), id); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	stops, starts := fakes[0].Cycles()
	if stops != 1 || starts != 1 {
		t.Fatalf("cycles: stops=%d starts=%d", stops, starts)
	}
	if f.states[id].Attempts() != 0 {
		t.Fatalf("attempts must reset on success, got %d", f.states[id].Attempts())
	}
}

func TestFleet_ReconnectCooldown(t *testing.T) {
	f, _ := testFleet(t, 1)
	id := f.order[0]
	ctx := context.Background()

	if err := f.Reconnect(ctx, id); err != nil {
		t.Fatalf("first reconnect: %v", err)
	}
	if err := f.Reconnect(ctx, id); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected cooldown, got %v", err)
	}
}

func TestFleet_ReconnectFailureKeepsAttempts(t *testing.T) {
	f, fakes := testFleet(t, 1)
	id := f.order[0]
	fakes[0].FailSetStatus = true

	if err := f.Reconnect(context.Background(), id); err == nil {
		t.Fatal("expected reconnect failure")
	}
	if f.states[id].Attempts() != 1 {
		t.Fatalf("failed attempt must count, got %d", f.states[id].Attempts())
	}
}

func TestFleet_RotateRoundRobin(t *testing.T) {
	f, fakes := testFleet(t, 3)
	id := f.order[0] // Singapore

	if err := f.Rotate(context.Background(), id, ""); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	rotated := fakes[0].RotatedTo()
	if len(rotated) != 1 || rotated[0] != "Japan" {
		t.Fatalf("expected round-robin to Japan, got %v", rotated)
	}
	stops, starts := fakes[0].Cycles()
	if stops != 1 || starts != 1 {
		t.Fatal("rotation must reconnect to apply settings")
	}
}

func TestFleet_RotateExplicitCountry(t *testing.T) {
	f, fakes := testFleet(t, 2)
	if err := f.Rotate(context.Background(), f.order[1], "Sweden"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	rotated := fakes[1].RotatedTo()
	if len(rotated) != 1 || rotated[0] != "Sweden" {
		t.Fatalf("got %v", rotated)
	}
}

func TestFleet_HandleBlockRespectsCooldown(t *testing.T) {
	f, fakes := testFleet(t, 2)
	id := f.order[0]
	ctx := context.Background()

	if err := f.Reconnect(ctx, id); err != nil {
		t.Fatalf("prime reconnect: %v", err)
	}
	err := f.HandleBlock(ctx, id)
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected cooldown passthrough, got %v", err)
	}
	if len(fakes[0].RotatedTo()) != 0 {
		t.Fatal("cooldown must not trigger a rotation")
	}
}

func TestFleet_HandleBlockRotatesAfterFailure(t *testing.T) {
	f, fakes := testFleet(t, 2)
	id := f.order[0]
	fakes[0].FailSetStatus = true

	// Reconnect fails, settings push still works, then the rotation's own
	// cycle fails too. The block handler should surface that error after
	// having pushed new settings.
	err := f.HandleBlock(context.Background(), id)
	if err == nil {
		t.Fatal("expected failure when tunnel refuses to cycle")
	}
	rotated := fakes[0].RotatedTo()
	if len(rotated) != 1 || rotated[0] != "Japan" {
		t.Fatalf("expected rotation attempt, got %v", rotated)
	}
}

func TestFleet_RotateAfterFailedReconnectCyclesTunnel(t *testing.T) {
	f, fakes := testFleet(t, 2)
	id := f.order[0]
	ctx := context.Background()

	fakes[0].FailSetStatus = true
	if err := f.Reconnect(ctx, id); err == nil {
		t.Fatal("expected reconnect failure")
	}
	fakes[0].FailSetStatus = false

	// The failed reconnect stamped the default cooldown; rotation must
	// still cycle the tunnel or the pushed settings never take effect.
	if err := f.Rotate(ctx, id, ""); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated := fakes[0].RotatedTo(); len(rotated) != 1 || rotated[0] != "Japan" {
		t.Fatalf("rotated: %v", rotated)
	}
	stops, starts := fakes[0].Cycles()
	if stops != 1 || starts != 1 {
		t.Fatalf("settings pushed but tunnel not cycled: stops=%d starts=%d", stops, starts)
	}
	if f.states[id].Attempts() != 0 {
		t.Fatalf("successful rotation must reset attempts, got %d", f.states[id].Attempts())
	}
}

func TestFleet_UnknownInstance(t *testing.T) {
	f, _ := testFleet(t, 1)
	ctx := context.Background()
	if err := f.Reconnect(ctx, "nope"); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("reconnect: %v", err)
	}
	if err := f.Rotate(ctx, "nope", ""); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("rotate: %v", err)
	}
	if err := f.HandleBlock(ctx, "nope"); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("handle block: %v", err)
	}
}

func TestFleet_Status(t *testing.T) {
	f, fakes := testFleet(t, 2)
	f.CountryFn = func(ip string) string { return "Testland" }
	fakes[1].Close()

	statuses := f.Status(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("statuses: %d", len(statuses))
	}
	if !statuses[0].Reachable || statuses[0].Status != StatusRunning {
		t.Fatalf("instance 0: %+v", statuses[0])
	}
	if statuses[0].Country != "Testland" {
		t.Fatalf("country annotation missing: %+v", statuses[0])
	}
	if statuses[1].Reachable || statuses[1].Status != "unreachable" {
		t.Fatalf("instance 1: %+v", statuses[1])
	}

	if st, ok := f.LastStatus(f.order[0]); !ok || st.PublicIP == "" {
		t.Fatalf("last status: %+v ok=%v", st, ok)
	}
}
