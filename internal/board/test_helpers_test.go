package board

import (
	"fmt"
	"testing"
)

func mustElementID(t *testing.T, value string) ElementID {
	t.Helper()
	id, err := NewElementID(value)
	if err != nil {
		t.Fatalf("unexpected element id error: %v", err)
	}
	return id
}

func mustRoomID(t *testing.T, value string) RoomID {
	t.Helper()
	id, err := NewRoomID(value)
	if err != nil {
		t.Fatalf("unexpected room id error: %v", err)
	}
	return id
}

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("segment-%d", p.next), nil
}

func penStroke(id string, points ...Point) Element {
	return Element{
		ID:     ElementID(id),
		Type:   ElementTypePen,
		Style:  Style{StrokeColor: "#1a1a1a", StrokeWidth: 2, Opacity: 1},
		Points: points,
	}
}
