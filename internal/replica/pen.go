package replica

import (
	"errors"

	"github.com/smtart/whiteboard-app/internal/board"
	"github.com/smtart/whiteboard-app/internal/protocol"
)

var errStrokeFinished = errors.New("stroke already finished")

// PenStream accumulates a local freehand stroke and transmits only the
// untransmitted suffix of its points, so outbound cost stays bounded by
// the new points rather than the whole stroke.
type PenStream struct {
	replica   *Replica
	id        board.ElementID
	style     board.Style
	points    []board.Point
	sent      int
	styleSent bool
	finished  bool
}

// StartStroke allocates a stroke id and opens a pen stream.
func (r *Replica) StartStroke(style board.Style) (*PenStream, error) {
	if r.roomID == "" {
		return nil, errNotJoined
	}
	id, err := r.ids.NewID()
	if err != nil {
		return nil, err
	}
	return &PenStream{replica: r, id: board.ElementID(id), style: style}, nil
}

// ID returns the stroke's element id.
func (s *PenStream) ID() board.ElementID {
	return s.id
}

// Points returns the accumulated points for local rendering.
func (s *PenStream) Points() []board.Point {
	points := make([]board.Point, len(s.points))
	copy(points, s.points)
	return points
}

// Extend buffers new points without transmitting them.
func (s *PenStream) Extend(points ...board.Point) {
	if s.finished {
		return
	}
	s.points = append(s.points, points...)
}

// Flush emits the buffered suffix as one delta. The style rides along
// only on the stroke's first delta.
func (s *PenStream) Flush() error {
	if s.finished {
		return errStrokeFinished
	}
	if s.sent >= len(s.points) {
		return nil
	}
	payload := protocol.PenDeltaPayload{
		RoomID: s.replica.roomID.String(),
		ID:     s.id.String(),
		Points: s.points[s.sent:],
	}
	if !s.styleSent {
		style := s.style
		payload.Style = &style
	}
	if err := s.replica.emit(protocol.TypePenDelta, payload); err != nil {
		return err
	}
	s.sent = len(s.points)
	s.styleSent = true
	return nil
}

// Finish flushes the tail, closes out receivers' preview buffers, and
// commits the stroke as a durable element when it can render. Strokes
// shorter than two points are discarded and report false.
func (s *PenStream) Finish() (bool, error) {
	if s.finished {
		return false, errStrokeFinished
	}
	if err := s.Flush(); err != nil {
		return false, err
	}
	s.finished = true
	if err := s.replica.emit(protocol.TypeDrawingDone, protocol.DrawingDonePayload{
		RoomID: s.replica.roomID.String(),
		ID:     s.id.String(),
	}); err != nil {
		return false, err
	}
	if len(s.points) < 2 {
		return false, nil
	}
	element := board.Element{
		ID:     s.id,
		Type:   board.ElementTypePen,
		Style:  s.style,
		Points: s.points,
	}
	if err := s.replica.AddElement(element); err != nil {
		return false, err
	}
	return true, nil
}
