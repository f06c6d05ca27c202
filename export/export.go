// Package export writes per-frame particle fields to disk, one
// subdirectory per field, one file per frame, one particle per line.
// The layout is the flat-text format common to SPH post-processing
// pipelines: positions and velocities as "x y z", scalars as one number.
package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okulo/brine/sim"
)

// Field subdirectory names.
const (
	fieldPosition = "position"
	fieldVelocity = "velocity"
	fieldDensity  = "density"
	fieldMass     = "mass"
)

// Exporter writes frame snapshots under a root directory.
type Exporter struct {
	dir   string
	frame int
}

// New creates the field subdirectories under dir. Returns nil if dir is
// empty (export disabled).
func New(dir string) (*Exporter, error) {
	if dir == "" {
		return nil, nil
	}
	for _, field := range []string{fieldPosition, fieldVelocity, fieldDensity, fieldMass} {
		if err := os.MkdirAll(filepath.Join(dir, field), 0755); err != nil {
			return nil, fmt.Errorf("creating export directory: %w", err)
		}
	}
	return &Exporter{dir: dir}, nil
}

// Frame returns the index the next WriteFrame will use.
func (e *Exporter) Frame() int {
	if e == nil {
		return 0
	}
	return e.frame
}

// WriteFrame writes one snapshot across all field subdirectories and
// advances the frame index. A partially written frame leaves the index
// unchanged so a retry overwrites it.
func (e *Exporter) WriteFrame(snap sim.FrameSnapshot) error {
	if e == nil {
		return nil
	}
	name := fmt.Sprintf("%05d.txt", e.frame)

	err := e.writeVectors(filepath.Join(e.dir, fieldPosition, name), snap.Positions)
	if err == nil {
		err = e.writeVectors(filepath.Join(e.dir, fieldVelocity, name), snap.Velocities)
	}
	if err == nil {
		err = e.writeScalars(filepath.Join(e.dir, fieldDensity, name), snap.Densities)
	}
	if err == nil {
		err = e.writeScalars(filepath.Join(e.dir, fieldMass, name), snap.Masses)
	}
	if err != nil {
		return fmt.Errorf("writing frame %d: %w", e.frame, err)
	}
	e.frame++
	return nil
}

func (e *Exporter) writeVectors(path string, vs []r3.Vec) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, v := range vs {
		fmt.Fprintf(w, "%g %g %g\n", v.X, v.Y, v.Z)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (e *Exporter) writeScalars(path string, vals []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, v := range vals {
		fmt.Fprintf(w, "%g\n", v)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
