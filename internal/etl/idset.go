package etl

import "sync"

// IDSet is a concurrent set of customer identifiers seen during one run.
type IDSet struct {
	m sync.Map
}

func NewIDSet() *IDSet { return &IDSet{} }

// Add inserts id and reports whether it was not present before.
func (s *IDSet) Add(id int64) bool {
	_, loaded := s.m.LoadOrStore(id, struct{}{})
	return !loaded
}

// Contains reports whether id has been added.
func (s *IDSet) Contains(id int64) bool {
	_, ok := s.m.Load(id)
	return ok
}
