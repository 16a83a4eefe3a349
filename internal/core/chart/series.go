package chart

import (
	"errors"
	"fmt"
	"sync"
)

// ErrOutOfOrder is returned when a point is older than the last one in the series.
var ErrOutOfOrder = errors.New("point older than last point")

const defaultMaxPoints = 5000

// Point is a single time/value sample. Time is unix seconds.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// Series is an append-or-replace line series, the same update contract a
// browser charting library applies to a live line.
type Series struct {
	mu        sync.Mutex
	points    []Point
	maxPoints int
	onUpdate  func(p Point, replaced bool)
}

func NewSeries(maxPoints int) *Series {
	if maxPoints <= 0 {
		maxPoints = defaultMaxPoints
	}
	return &Series{maxPoints: maxPoints}
}

// OnUpdate registers a callback invoked after every applied update.
// It runs with the series lock released.
func (s *Series) OnUpdate(fn func(p Point, replaced bool)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// Update merges p into the series: a point at the last point's time replaces
// it, a later point is appended, an earlier point is rejected.
func (s *Series) Update(p Point) error {
	s.mu.Lock()
	replaced := false
	if n := len(s.points); n > 0 {
		last := s.points[n-1]
		switch {
		case p.Time < last.Time:
			s.mu.Unlock()
			return fmt.Errorf("update time=%d last=%d: %w", p.Time, last.Time, ErrOutOfOrder)
		case p.Time == last.Time:
			s.points[n-1] = p
			replaced = true
		}
	}
	if !replaced {
		s.points = append(s.points, p)
		if len(s.points) > s.maxPoints {
			s.points = s.points[len(s.points)-s.maxPoints:]
		}
	}
	fn := s.onUpdate
	s.mu.Unlock()

	if fn != nil {
		fn(p, replaced)
	}
	return nil
}

// Points returns a copy of the series.
func (s *Series) Points() []Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Last returns the newest point.
func (s *Series) Last() (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

func (s *Series) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}
