package board

import "math"

// Bounds is an axis-aligned box in world-space coordinates.
type Bounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Expand grows the box by margin on every side.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		MinX: b.MinX - margin,
		MinY: b.MinY - margin,
		MaxX: b.MaxX + margin,
		MaxY: b.MaxY + margin,
	}
}

// Contains reports whether the point lies inside or on the box.
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// approximate glyph advance as a fraction of the font size
const textAdvanceRatio = 0.6

// ElementBounds computes the bounding box of an element, normalizing
// signed extents so that negative-direction drags still produce a
// well-ordered box.
func ElementBounds(e Element) Bounds {
	switch e.Type {
	case ElementTypePen:
		if len(e.Points) == 0 {
			return Bounds{MinX: e.X, MinY: e.Y, MaxX: e.X, MaxY: e.Y}
		}
		b := Bounds{MinX: e.Points[0].X, MinY: e.Points[0].Y, MaxX: e.Points[0].X, MaxY: e.Points[0].Y}
		for _, p := range e.Points[1:] {
			b.MinX = math.Min(b.MinX, p.X)
			b.MinY = math.Min(b.MinY, p.Y)
			b.MaxX = math.Max(b.MaxX, p.X)
			b.MaxY = math.Max(b.MaxY, p.Y)
		}
		return b
	case ElementTypeLine, ElementTypeArrow:
		return Bounds{
			MinX: math.Min(e.X1, e.X2),
			MinY: math.Min(e.Y1, e.Y2),
			MaxX: math.Max(e.X1, e.X2),
			MaxY: math.Max(e.Y1, e.Y2),
		}
	case ElementTypeText:
		fontSize := e.Style.FontSize
		if fontSize <= 0 {
			fontSize = 16
		}
		width := float64(len(e.Text)) * fontSize * textAdvanceRatio
		return Bounds{MinX: e.X, MinY: e.Y, MaxX: e.X + width, MaxY: e.Y + fontSize}
	default:
		return Bounds{
			MinX: math.Min(e.X, e.X+e.W),
			MinY: math.Min(e.Y, e.Y+e.H),
			MaxX: math.Max(e.X, e.X+e.W),
			MaxY: math.Max(e.Y, e.Y+e.H),
		}
	}
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// distanceToSegment returns the shortest distance from p to the segment ab.
func distanceToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lengthSquared := dx*dx + dy*dy
	if lengthSquared == 0 {
		return distance(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSquared
	t = math.Max(0, math.Min(1, t))
	closest := Point{X: a.X + t*dx, Y: a.Y + t*dy}
	return distance(p, closest)
}
