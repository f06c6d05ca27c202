package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okulo/brine/sim"
)

func TestNilExporterIsNoOp(t *testing.T) {
	e, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e != nil {
		t.Fatal("empty dir should disable export")
	}
	if err := e.WriteFrame(sim.FrameSnapshot{}); err != nil {
		t.Errorf("nil exporter WriteFrame: %v", err)
	}
}

func TestWriteFrameLayout(t *testing.T) {
	dir := t.TempDir()
	e, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snap := sim.FrameSnapshot{
		Positions:  []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: -0.5}},
		Velocities: []r3.Vec{{Y: -9.81}, {}},
		Densities:  []float64{1000, 998.5},
		Masses:     []float64{0.008, 0.008},
	}
	if err := e.WriteFrame(snap); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := e.WriteFrame(snap); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if e.Frame() != 2 {
		t.Errorf("frame index = %d, want 2", e.Frame())
	}

	data, err := os.ReadFile(filepath.Join(dir, "position", "00000.txt"))
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "1 2 3" {
		t.Errorf("line 0 = %q, want %q", lines[0], "1 2 3")
	}

	data, err = os.ReadFile(filepath.Join(dir, "density", "00001.txt"))
	if err != nil {
		t.Fatalf("reading second frame: %v", err)
	}
	lines = strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || lines[1] != "998.5" {
		t.Errorf("density frame = %q", string(data))
	}

	for _, field := range []string{"position", "velocity", "density", "mass"} {
		for _, frame := range []string{"00000.txt", "00001.txt"} {
			if _, err := os.Stat(filepath.Join(dir, field, frame)); err != nil {
				t.Errorf("missing %s/%s: %v", field, frame, err)
			}
		}
	}
}
