// Package geometry converts shape geometry between a canvas's pixel
// space and the viewport-independent unit space used on the wire. Each
// axis of the unit space spans [0,1]; receivers denormalize with their
// own canvas dimensions, so two clients with different canvas sizes
// agree on shape placement.
package geometry

import (
	"liveroom/pkg/types"
)

// Normalize maps a shape from pixel coordinates on a (w,h) canvas into
// unit space. The input shape is not modified. Radii are scaled against
// the horizontal axis. A degenerate canvas cannot yield finite unit
// coordinates; the geometry passes through unscaled.
func Normalize(shape types.DrawShape, w, h float64) types.DrawShape {
	if w <= 0 || h <= 0 {
		return scale(shape, 1, 1)
	}
	return scale(shape, 1/w, 1/h)
}

// Denormalize maps a unit-space shape onto a (w,h) canvas. Degenerate
// dimensions pass the geometry through unscaled.
func Denormalize(shape types.DrawShape, w, h float64) types.DrawShape {
	if w <= 0 || h <= 0 {
		return scale(shape, 1, 1)
	}
	return scale(shape, w, h)
}

// NormalizeAll normalizes a full shape list for transmission.
func NormalizeAll(shapes []types.DrawShape, w, h float64) []types.DrawShape {
	out := make([]types.DrawShape, len(shapes))
	for i, s := range shapes {
		out[i] = Normalize(s, w, h)
	}
	return out
}

// DenormalizeAll maps a received shape list onto the local canvas.
func DenormalizeAll(shapes []types.DrawShape, w, h float64) []types.DrawShape {
	out := make([]types.DrawShape, len(shapes))
	for i, s := range shapes {
		out[i] = Denormalize(s, w, h)
	}
	return out
}

func scale(shape types.DrawShape, sx, sy float64) types.DrawShape {
	out := shape
	out.Geometry = types.Geometry{}

	if pts := shape.Geometry.Points; pts != nil {
		scaled := make([]types.Point, len(pts))
		for i, p := range pts {
			scaled[i] = types.Point{X: p.X * sx, Y: p.Y * sy}
		}
		out.Geometry.Points = scaled
	}
	if b := shape.Geometry.Box; b != nil {
		out.Geometry.Box = &types.Box{
			X: b.X * sx,
			Y: b.Y * sy,
			W: b.W * sx,
			H: b.H * sy,
		}
	}
	if c := shape.Geometry.Circle; c != nil {
		out.Geometry.Circle = &types.Circle{
			CX: c.CX * sx,
			CY: c.CY * sy,
			R:  c.R * sx,
		}
	}
	return out
}
