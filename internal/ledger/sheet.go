package ledger

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrLineNotFound is returned when a line id or index does not exist.
var ErrLineNotFound = errors.New("ledger: line not found")

// Sheet is an ordered, editable set of lines. Each line carries a synthetic
// id so edits can target it independently of its position.
type Sheet struct {
	lines []Line
}

// NewSheet returns a sheet holding lines, assigning ids to those without one.
func NewSheet(lines ...Line) *Sheet {
	s := &Sheet{lines: make([]Line, 0, len(lines))}
	for _, l := range lines {
		s.Add(l)
	}
	return s
}

// Len returns the number of lines, blank ones included.
func (s *Sheet) Len() int { return len(s.lines) }

// Lines returns a copy of the lines in order.
func (s *Sheet) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Add appends l and returns its id. A missing quantity defaults to 1.
func (s *Sheet) Add(l Line) string {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Quantity.IsZero() && l.UnitPriceHT.IsZero() && l.IsBlank() {
		l.Quantity = decimal.NewFromInt(1)
	}
	s.lines = append(s.lines, l)
	return l.ID
}

// Update applies fn to the line with the given id.
func (s *Sheet) Update(id string, fn func(*Line)) error {
	i := s.index(id)
	if i < 0 {
		return ErrLineNotFound
	}
	fn(&s.lines[i])
	s.lines[i].ID = id
	return nil
}

// Remove deletes the line with the given id.
func (s *Sheet) Remove(id string) error {
	i := s.index(id)
	if i < 0 {
		return ErrLineNotFound
	}
	return s.RemoveAt(i)
}

// RemoveAt deletes the line at position i.
func (s *Sheet) RemoveAt(i int) error {
	if i < 0 || i >= len(s.lines) {
		return ErrLineNotFound
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	return nil
}

// Move places the line with the given id at position to, shifting the
// others. to is clamped to the sheet bounds.
func (s *Sheet) Move(id string, to int) error {
	i := s.index(id)
	if i < 0 {
		return ErrLineNotFound
	}
	if to < 0 {
		to = 0
	}
	if to >= len(s.lines) {
		to = len(s.lines) - 1
	}
	l := s.lines[i]
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.lines = append(s.lines[:to], append([]Line{l}, s.lines[to:]...)...)
	return nil
}

// Totals computes the sheet totals for a TVA percentage.
func (s *Sheet) Totals(tvaPct decimal.Decimal) Totals {
	return Compute(s.lines, tvaPct)
}

func (s *Sheet) index(id string) int {
	for i, l := range s.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
