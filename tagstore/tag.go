package tagstore

import (
	"fmt"
	"regexp"

	"warsim/protoerr"
)

// MaxNameLen is the longest tag name this simulator accepts (spec.md §3).
const MaxNameLen = 40

// MaxDims is the largest number of array dimensions a tag may declare
// (spec.md §3).
const MaxDims = 3

var nameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Tag is an immutable tag definition (name, type, dimensions) plus its
// mutable data region. Definitions are created once at startup; only the
// Data buffer changes afterward (spec.md §3).
type Tag struct {
	Name      string
	Type      ElemType
	ElemSize  int
	Dims      [MaxDims]int // trailing zero entries mean "unused"
	NDims     int
	ElemCount int
	Data      []byte
}

// New creates a tag definition with a zero-initialized data region sized
// elemCount*elemSize bytes.
func New(name string, t ElemType, dims []int) (*Tag, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if len(dims) < 1 || len(dims) > MaxDims {
		return nil, fmt.Errorf("tagstore: tag %q must declare 1-%d dimensions, got %d", name, MaxDims, len(dims))
	}

	var d [MaxDims]int
	count := 1
	for i, ext := range dims {
		if ext <= 0 {
			return nil, fmt.Errorf("tagstore: tag %q dimension %d must be positive, got %d", name, i, ext)
		}
		d[i] = ext
		count *= ext
	}

	size := t.Size()
	return &Tag{
		Name:      name,
		Type:      t,
		ElemSize:  size,
		Dims:      d,
		NDims:     len(dims),
		ElemCount: count,
		Data:      make([]byte, count*size),
	}, nil
}

func validateName(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("tagstore: tag name %q must be 1-%d bytes", name, MaxNameLen)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("tagstore: tag name %q must start with a letter and contain only letters, digits, underscore", name)
	}
	return nil
}

// extent returns the declared extent of dimension i, treating unused
// trailing dimensions as extent 1 (spec.md §4.B).
func (t *Tag) extent(i int) int {
	if i >= t.NDims {
		return 1
	}
	return t.Dims[i]
}

// ElementOffset returns the flat byte offset of the element addressed by
// idx, an N-dimensional index where N must equal the tag's declared
// dimensionality. It fails with protoerr.OutOfRange on any dimension
// mismatch or bounds violation (spec.md §4.B).
func (t *Tag) ElementOffset(idx []int) (int, error) {
	if len(idx) != t.NDims {
		return 0, protoerr.New(protoerr.OutOfRange, "tag %q wants %d indices, got %d", t.Name, t.NDims, len(idx))
	}

	var full [MaxDims]int
	for i := 0; i < MaxDims; i++ {
		if i < len(idx) {
			if idx[i] < 0 || idx[i] >= t.extent(i) {
				return 0, protoerr.New(protoerr.OutOfRange, "tag %q index %d=%d out of extent %d", t.Name, i, idx[i], t.extent(i))
			}
			full[i] = idx[i]
		}
	}

	flat := full[0]*t.extent(1)*t.extent(2) + full[1]*t.extent(2) + full[2]
	return t.ElemSize * flat, nil
}

// TotalBytes returns the total size of the tag's data region.
func (t *Tag) TotalBytes() int {
	return t.ElemCount * t.ElemSize
}
