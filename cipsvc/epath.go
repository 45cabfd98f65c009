package cipsvc

import (
	"warsim/bufview"
	"warsim/protoerr"
)

// CIP path segment markers this simulator decodes (spec.md §4.D.5). Read
// Tag addresses a tag by one symbolic segment (the tag name) followed by
// zero or more numeric segments (one per array dimension).
const (
	segSymbolic  = 0x91
	segElement8  = 0x28
	segElement16 = 0x29
	segElement32 = 0x2A
)

// tagPath is a decoded Read Tag / Read Tag Fragmented request path: a tag
// name plus an N-dimensional element index.
type tagPath struct {
	Name    string
	Indices []int
}

// decodeTagPath parses seg as a symbolic segment naming a tag, optionally
// followed by numeric segments addressing one element of it. seg must be
// exactly the tag_segment bytes named by the request's leading length
// byte (spec.md §4.D.5) — decodeTagPath consumes every byte in seg and
// fails if any are left over.
func decodeTagPath(seg bufview.View) (tagPath, error) {
	if seg.Len() < 2 {
		return tagPath{}, protoerr.New(protoerr.BadRequest, "tag segment too short: %d bytes", seg.Len())
	}

	marker, _ := seg.At(0)
	if marker != segSymbolic {
		return tagPath{}, protoerr.New(protoerr.BadRequest, "tag segment: expected symbolic marker %#x, got %#x", segSymbolic, marker)
	}

	nameLen, _ := seg.At(1)
	n := int(nameLen)
	if seg.Len() < 2+n {
		return tagPath{}, protoerr.New(protoerr.BadRequest, "tag segment: truncated name, want %d bytes", n)
	}
	name := string(seg.Sub(2, n).Bytes())

	pos := 2 + n
	if n%2 != 0 {
		pos++ // pad to an even offset
	}

	var indices []int
	for pos < seg.Len() {
		marker, _ := seg.At(pos)
		switch marker {
		case segElement8:
			if pos+2 > seg.Len() {
				return tagPath{}, protoerr.New(protoerr.BadRequest, "tag segment: truncated 8-bit element segment")
			}
			v, _ := seg.At(pos + 1)
			indices = append(indices, int(v))
			pos += 2
		case segElement16:
			if pos+4 > seg.Len() {
				return tagPath{}, protoerr.New(protoerr.BadRequest, "tag segment: truncated 16-bit element segment")
			}
			indices = append(indices, int(seg.Uint16LE(pos+2)))
			pos += 4
		case segElement32:
			if pos+6 > seg.Len() {
				return tagPath{}, protoerr.New(protoerr.BadRequest, "tag segment: truncated 32-bit element segment")
			}
			indices = append(indices, int(seg.Uint32LE(pos+2)))
			pos += 6
		default:
			return tagPath{}, protoerr.New(protoerr.BadRequest, "tag segment: unrecognized segment marker %#x", marker)
		}
	}

	return tagPath{Name: name, Indices: indices}, nil
}

// pathMatch compares a connection path field against reference, matching
// the length-prefixed, conditionally-padded form Forward Open and Forward
// Close both use (spec.md §4.D.3): a one-byte length in 16-bit words,
// an optional reserved pad byte when padRequired is set, then the path
// bytes themselves.
func pathMatch(body bufview.View, padRequired bool, reference []byte) bool {
	if body.Len() < 1 {
		return false
	}
	words, _ := body.At(0)
	if int(words)*2 != len(reference) {
		return false
	}

	rest := body.Sub(1, body.Len()-1)
	if padRequired {
		if rest.Len() < 1 {
			return false
		}
		rest = rest.Sub(1, rest.Len()-1)
	}

	if rest.Len() < len(reference) {
		return false
	}
	return rest.Sub(0, len(reference)).MatchBytes(reference)
}
