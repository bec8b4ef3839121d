package board

import (
	"errors"
	"strings"
	"testing"
)

func TestNewElementIDValidatesInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain", input: "el-1", want: "el-1"},
		{name: "trims-whitespace", input: "  el-2  ", want: "el-2"},
		{name: "empty", input: "", wantErr: ErrInvalidElementID},
		{name: "whitespace-only", input: "   ", wantErr: ErrInvalidElementID},
		{name: "oversized", input: strings.Repeat("a", 191), wantErr: ErrInvalidElementID},
		{name: "at-bound", input: strings.Repeat("a", 190), want: strings.Repeat("a", 190)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewElementID(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.String() != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, id.String())
			}
		})
	}
}

func TestNewRoomIDValidatesInput(t *testing.T) {
	if _, err := NewRoomID(""); !errors.Is(err, ErrInvalidRoomID) {
		t.Fatalf("expected invalid room id error, got %v", err)
	}
	if _, err := NewRoomID(strings.Repeat("r", 191)); !errors.Is(err, ErrInvalidRoomID) {
		t.Fatalf("expected invalid room id error, got %v", err)
	}
	id, err := NewRoomID(" lobby ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "lobby" {
		t.Fatalf("expected trimmed id, got %q", id.String())
	}
}

func TestElementTypeKnown(t *testing.T) {
	known := []ElementType{
		ElementTypePen, ElementTypeRectangle, ElementTypeEllipse,
		ElementTypeLine, ElementTypeArrow, ElementTypeText, ElementTypeImage,
	}
	for _, typ := range known {
		if !typ.Known() {
			t.Fatalf("expected %q to be known", typ)
		}
	}
	if ElementType("polygon").Known() {
		t.Fatalf("expected polygon to be unknown")
	}
	if ElementType("").Known() {
		t.Fatalf("expected empty type to be unknown")
	}
}

func TestElementValidate(t *testing.T) {
	tests := []struct {
		name    string
		element Element
		wantErr error
	}{
		{
			name:    "rectangle",
			element: Element{ID: "r-1", Type: ElementTypeRectangle, X: 10, Y: 10, W: 40, H: 20},
		},
		{
			name:    "pen-single-point-preview",
			element: penStroke("p-1", Point{X: 1, Y: 1}),
		},
		{
			name:    "text-empty-while-editing",
			element: Element{ID: "t-1", Type: ElementTypeText, X: 5, Y: 5},
		},
		{
			name:    "missing-id",
			element: Element{Type: ElementTypeLine},
			wantErr: ErrInvalidElementID,
		},
		{
			name:    "unknown-type",
			element: Element{ID: "x-1", Type: "scribble"},
			wantErr: ErrUnknownElementType,
		},
		{
			name:    "pen-without-points",
			element: Element{ID: "p-2", Type: ElementTypePen},
			wantErr: ErrInvalidGeometry,
		},
		{
			name:    "image-without-payload",
			element: Element{ID: "i-1", Type: ElementTypeImage, W: 100, H: 100},
			wantErr: ErrInvalidGeometry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.element.Validate()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestElementValidateCommitted(t *testing.T) {
	single := penStroke("p-1", Point{X: 1, Y: 1})
	if err := single.Validate(); err != nil {
		t.Fatalf("single-point preview should validate: %v", err)
	}
	if err := single.ValidateCommitted(); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected committed single-point stroke to be rejected, got %v", err)
	}

	committed := penStroke("p-2", Point{X: 1, Y: 1}, Point{X: 2, Y: 2})
	if err := committed.ValidateCommitted(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	emptyText := Element{ID: "t-1", Type: ElementTypeText, X: 5, Y: 5}
	if err := emptyText.ValidateCommitted(); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected committed empty text to be rejected, got %v", err)
	}
	filledText := Element{ID: "t-2", Type: ElementTypeText, X: 5, Y: 5, Text: "hello"}
	if err := filledText.ValidateCommitted(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestElementCloneIsIndependent(t *testing.T) {
	original := penStroke("p-1", Point{X: 1, Y: 1}, Point{X: 2, Y: 2})
	clone := original.Clone()
	clone.Points[0].X = 99
	if original.Points[0].X != 1 {
		t.Fatalf("mutating the clone must not touch the original")
	}
	if !original.Equal(original.Clone()) {
		t.Fatalf("clone should compare equal to its source")
	}
}

func TestElementEqual(t *testing.T) {
	base := penStroke("p-1", Point{X: 1, Y: 1}, Point{X: 2, Y: 2})

	same := base.Clone()
	if !base.Equal(same) {
		t.Fatalf("expected value-identical elements to be equal")
	}

	moved := base.Clone()
	moved.Points[1] = Point{X: 3, Y: 3}
	if base.Equal(moved) {
		t.Fatalf("expected point change to break equality")
	}

	restyled := base.Clone()
	restyled.Style.StrokeColor = "#ff0000"
	if base.Equal(restyled) {
		t.Fatalf("expected style change to break equality")
	}

	shorter := base.Clone()
	shorter.Points = shorter.Points[:1]
	if base.Equal(shorter) {
		t.Fatalf("expected length change to break equality")
	}
}
