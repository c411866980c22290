// Package fsi couples an immersed solid to the fluid solver: between fluid
// steps the driver classifies the fluid cells against the solid and writes
// the artificial-fluid indicator and the FSI forcing into the per-cell
// coupling cache.
package fsi

import (
	"math"

	"github.com/Tatha911/OpenIFEM/dofs"
	"github.com/Tatha911/OpenIFEM/mesh"
)

// Solid is what the driver needs from an immersed body: an inside test and
// kinematic/stress samples at a point and time. Constitutive solid models
// plug in behind this interface.
type Solid interface {
	Inside(p mesh.Point, t float64) bool
	Velocity(p mesh.Point, t float64) [dofs.Dim]float64
	Acceleration(p mesh.Point, t float64) [dofs.Dim]float64
	Stress(p mesh.Point, t float64) [dofs.Dim][dofs.Dim]float64
}

// RigidDisk is a kinematic solid: a disk of fixed radius translating
// vertically as A*sin(2*pi*f*t) about its rest center. Rigid motion makes the
// velocity and acceleration uniform over the body; the stress sample is zero
// because the disk carries no constitutive model.
type RigidDisk struct {
	CenterX, CenterY float64
	Radius           float64
	Amplitude        float64
	Frequency        float64
}

func (d RigidDisk) omega() float64 { return 2 * math.Pi * d.Frequency }

func (d RigidDisk) centerAt(t float64) mesh.Point {
	return mesh.Point{X: d.CenterX, Y: d.CenterY + d.Amplitude*math.Sin(d.omega()*t)}
}

func (d RigidDisk) Inside(p mesh.Point, t float64) bool {
	c := d.centerAt(t)
	dx, dy := p.X-c.X, p.Y-c.Y
	return dx*dx+dy*dy <= d.Radius*d.Radius
}

func (d RigidDisk) Velocity(_ mesh.Point, t float64) [dofs.Dim]float64 {
	return [dofs.Dim]float64{0, d.Amplitude * d.omega() * math.Cos(d.omega()*t)}
}

func (d RigidDisk) Acceleration(_ mesh.Point, t float64) [dofs.Dim]float64 {
	w := d.omega()
	return [dofs.Dim]float64{0, -d.Amplitude * w * w * math.Sin(w*t)}
}

func (d RigidDisk) Stress(_ mesh.Point, _ float64) [dofs.Dim][dofs.Dim]float64 {
	return [dofs.Dim][dofs.Dim]float64{}
}
