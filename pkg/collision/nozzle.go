// Nozzle geometry model
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package collision

import "math"

// NozzleGeometry describes the conical hot end. Pure value, immutable,
// supplied by configuration.
type NozzleGeometry struct {
	// TipDiameter is the nozzle tip diameter in mm.
	TipDiameter float64

	// ConeHalfAngle is the cone half-angle in degrees.
	ConeHalfAngle float64

	// ConeHeight is the height of the conical section in mm.
	ConeHeight float64
}

// RadiusAt returns the nozzle radius at the given vertical clearance
// above the tip. Clearances beyond the cone use the cone-top radius;
// nothing in the model widens past the cone.
func (n NozzleGeometry) RadiusAt(clearance float64) float64 {
	if clearance <= 0 {
		return n.TipDiameter / 2
	}
	if clearance > n.ConeHeight {
		clearance = n.ConeHeight
	}
	return n.TipDiameter/2 + clearance*math.Tan(n.ConeHalfAngle*math.Pi/180)
}
