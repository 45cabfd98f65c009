package tagstore

import "fmt"

// Store holds the set of tag definitions served by a simulated PLC,
// keyed by exact-match name. Tag counts are small, so linear lookup is
// acceptable (spec.md §4.B, §9).
type Store struct {
	tags []*Tag
}

// NewStore returns an empty tag store.
func NewStore() *Store {
	return &Store{}
}

// Add registers tag in the store. Names must be unique.
func (s *Store) Add(tag *Tag) error {
	if _, ok := s.Find(tag.Name); ok {
		return fmt.Errorf("tagstore: duplicate tag name %q", tag.Name)
	}
	s.tags = append(s.tags, tag)
	return nil
}

// Find looks up a tag by exact name.
func (s *Store) Find(name string) (*Tag, bool) {
	for _, t := range s.tags {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Len returns the number of tags in the store.
func (s *Store) Len() int {
	return len(s.tags)
}

// All returns the tags in declaration order. The returned slice must not
// be mutated by the caller.
func (s *Store) All() []*Tag {
	return s.tags
}
