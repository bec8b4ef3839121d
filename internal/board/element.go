package board

import (
	"errors"
	"fmt"
	"strings"
)

// ElementType enumerates the supported drawable variants.
type ElementType string

const (
	// ElementTypePen is a freehand stroke made of ordered points.
	ElementTypePen ElementType = "pen"
	// ElementTypeRectangle is an axis-aligned rectangle with signed extent.
	ElementTypeRectangle ElementType = "rectangle"
	// ElementTypeEllipse is an ellipse inscribed in a signed bounding box.
	ElementTypeEllipse ElementType = "ellipse"
	// ElementTypeLine is a straight segment between two endpoints.
	ElementTypeLine ElementType = "line"
	// ElementTypeArrow is a line with a head at its second endpoint.
	ElementTypeArrow ElementType = "arrow"
	// ElementTypeText is a positioned text run.
	ElementTypeText ElementType = "text"
	// ElementTypeImage is a placed image with an embedded encoded payload.
	ElementTypeImage ElementType = "image"
)

// Known reports whether the value is one of the supported variants.
func (t ElementType) Known() bool {
	switch t {
	case ElementTypePen, ElementTypeRectangle, ElementTypeEllipse,
		ElementTypeLine, ElementTypeArrow, ElementTypeText, ElementTypeImage:
		return true
	default:
		return false
	}
}

const maxIdentifierLength = 190

var (
	// ErrInvalidElementID indicates that an element identifier is empty or exceeds bounds.
	ErrInvalidElementID = errors.New("board: invalid element id")
	// ErrInvalidRoomID indicates that a room identifier is empty or exceeds bounds.
	ErrInvalidRoomID = errors.New("board: invalid room id")
	// ErrUnknownElementType indicates that an element carries an unsupported variant tag.
	ErrUnknownElementType = errors.New("board: unknown element type")
	// ErrInvalidGeometry indicates that an element's variant-specific fields are unusable.
	ErrInvalidGeometry = errors.New("board: invalid element geometry")
)

// ElementID represents a validated element identifier.
type ElementID string

// NewElementID validates raw input and returns an ElementID.
func NewElementID(rawInput string) (ElementID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidElementID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidElementID, maxIdentifierLength)
	}
	return ElementID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ElementID) String() string {
	return string(id)
}

// RoomID represents a validated room identifier.
type RoomID string

// NewRoomID validates raw input and returns a RoomID.
func NewRoomID(rawInput string) (RoomID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRoomID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidRoomID, maxIdentifierLength)
	}
	return RoomID(trimmed), nil
}

// String returns the underlying string identifier.
func (id RoomID) String() string {
	return string(id)
}

// Point is a position in world-space coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Style carries the presentation attributes shared by every variant.
type Style struct {
	StrokeColor string  `json:"strokeColor"`
	FillColor   string  `json:"fillColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	FontSize    float64 `json:"fontSize"`
	Opacity     float64 `json:"opacity"`
}

// Element models one drawable entity. Variant-specific fields are zero
// for variants that do not use them.
type Element struct {
	ID        ElementID   `json:"id"`
	Type      ElementType `json:"type"`
	Style     Style       `json:"style"`
	Points    []Point     `json:"points,omitempty"`
	X         float64     `json:"x,omitempty"`
	Y         float64     `json:"y,omitempty"`
	W         float64     `json:"w,omitempty"`
	H         float64     `json:"h,omitempty"`
	X1        float64     `json:"x1,omitempty"`
	Y1        float64     `json:"y1,omitempty"`
	X2        float64     `json:"x2,omitempty"`
	Y2        float64     `json:"y2,omitempty"`
	Text      string      `json:"text,omitempty"`
	ImageData string      `json:"imageData,omitempty"`
}

// Validate checks identifier bounds, the variant tag, and the minimum
// variant geometry an in-progress element must carry.
func (e Element) Validate() error {
	if _, err := NewElementID(string(e.ID)); err != nil {
		return err
	}
	if !e.Type.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownElementType, string(e.Type))
	}
	switch e.Type {
	case ElementTypePen:
		if len(e.Points) == 0 {
			return fmt.Errorf("%w: pen stroke has no points", ErrInvalidGeometry)
		}
	case ElementTypeImage:
		if e.ImageData == "" {
			return fmt.Errorf("%w: image has no payload", ErrInvalidGeometry)
		}
	}
	return nil
}

// ValidateCommitted applies the stricter rules for durable elements:
// a committed pen stroke needs at least two points and a committed
// text element must not be empty.
func (e Element) ValidateCommitted() error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.Type {
	case ElementTypePen:
		if len(e.Points) < 2 {
			return fmt.Errorf("%w: committed pen stroke needs at least two points", ErrInvalidGeometry)
		}
	case ElementTypeText:
		if e.Text == "" {
			return fmt.Errorf("%w: committed text is empty", ErrInvalidGeometry)
		}
	}
	return nil
}

// Clone returns a deep copy, including the point sequence.
func (e Element) Clone() Element {
	clone := e
	if e.Points != nil {
		clone.Points = make([]Point, len(e.Points))
		copy(clone.Points, e.Points)
	}
	return clone
}

// Equal reports whether two elements carry the same value.
func (e Element) Equal(other Element) bool {
	if e.ID != other.ID || e.Type != other.Type || e.Style != other.Style {
		return false
	}
	if e.X != other.X || e.Y != other.Y || e.W != other.W || e.H != other.H {
		return false
	}
	if e.X1 != other.X1 || e.Y1 != other.Y1 || e.X2 != other.X2 || e.Y2 != other.Y2 {
		return false
	}
	if e.Text != other.Text || e.ImageData != other.ImageData {
		return false
	}
	if len(e.Points) != len(other.Points) {
		return false
	}
	for i := range e.Points {
		if e.Points[i] != other.Points[i] {
			return false
		}
	}
	return true
}
