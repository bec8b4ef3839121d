package board

// screen-space slack around non-pen elements, converted to world
// units by the current zoom before testing containment
const eraserHitMargin = 8.0

// EraseChange aggregates the mutations produced by one eraser contact:
// ids to remove and replacement stroke segments to insert.
type EraseChange struct {
	Deleted []ElementID
	Added   []Element
}

// Empty reports whether the contact produced no mutation.
func (c EraseChange) Empty() bool {
	return len(c.Deleted) == 0 && len(c.Added) == 0
}

// EraseAt evaluates one eraser contact at center with the given radius
// against every element. Non-pen elements are deleted whole on a bounds
// hit. Pen strokes lose the points within the radius and the surviving
// points are regrouped into maximal runs of originally-contiguous
// indices; runs shorter than two points are dropped, and each kept run
// becomes a new element with a fresh id and the original style.
func EraseAt(elements []Element, center Point, radius, zoom float64, ids IDProvider) (EraseChange, error) {
	if zoom <= 0 {
		zoom = 1
	}
	var change EraseChange
	for _, el := range elements {
		if el.Type != ElementTypePen {
			hit := ElementBounds(el).Expand(eraserHitMargin / zoom).Contains(center)
			if hit {
				change.Deleted = append(change.Deleted, el.ID)
			}
			continue
		}
		if !strokeNear(el, center, radius) {
			continue
		}
		runs, erased := splitStroke(el.Points, center, radius)
		if !erased {
			continue
		}
		change.Deleted = append(change.Deleted, el.ID)
		for _, run := range runs {
			id, err := ids.NewID()
			if err != nil {
				return EraseChange{}, err
			}
			change.Added = append(change.Added, Element{
				ID:     ElementID(id),
				Type:   ElementTypePen,
				Style:  el.Style,
				Points: run,
			})
		}
	}
	return change, nil
}

// strokeNear is the coarse rejection test: the contact must come within
// radius plus stroke width of some point or some segment of the stroke.
func strokeNear(el Element, center Point, radius float64) bool {
	reach := radius + el.Style.StrokeWidth
	for i, p := range el.Points {
		if distance(center, p) <= reach {
			return true
		}
		if i > 0 && distanceToSegment(center, el.Points[i-1], p) <= reach {
			return true
		}
	}
	return false
}

// splitStroke partitions points into surviving runs. A point survives
// when its distance from center is at least radius. Survivors stay in
// one run only while their original indices remain adjacent. Runs with
// fewer than two points cannot render and are discarded.
func splitStroke(points []Point, center Point, radius float64) (runs [][]Point, erased bool) {
	var current []Point
	flush := func() {
		if len(current) >= 2 {
			runs = append(runs, current)
		}
		current = nil
	}
	for _, p := range points {
		if distance(center, p) >= radius {
			current = append(current, p)
			continue
		}
		erased = true
		flush()
	}
	flush()
	if !erased {
		return nil, false
	}
	return runs, true
}
