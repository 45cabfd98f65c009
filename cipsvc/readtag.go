package cipsvc

import (
	"warsim/bufview"
	"warsim/plcsession"
)

// handleReadTag implements Read Tag (service 0x4C) and Read Tag
// Fragmented (service 0x52). Request layout after the service byte:
// tag_segment_size (u8, in 16-bit words), the tag_segment bytes
// themselves, an element count (u16), and — for the fragmented service
// only — a starting byte offset (u32) (spec.md §4.D.5).
func handleReadTag(body, out bufview.View, sess *plcsession.Session, service byte, fragmented bool) bufview.View {
	if body.Len() < 1 {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	segWords, _ := body.At(0)
	segLen := int(segWords) * 2
	if body.Len() < 1+segLen {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	tagSeg := body.Sub(1, segLen)
	rest := body.Sub(1+segLen, body.Len()-1-segLen)

	path, err := decodeTagPath(tagSeg)
	if err != nil {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	minRest := 2
	if fragmented {
		minRest = 6
	}
	if rest.Len() < minRest {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	elementCount := int(rest.Uint16LE(0))
	var byteOffset int
	if fragmented {
		byteOffset = int(rest.Uint32LE(2))
	}

	tag, ok := sess.Store.Find(path.Name)
	if !ok {
		return writeHeader(out, service, statusPathUnknown, nil)
	}

	start, err := tag.ElementOffset(path.Indices)
	if err != nil {
		ext := extendedOutOfRange
		return writeHeader(out, service, statusFailure, &ext)
	}

	total := tag.TotalBytes()
	span := elementCount * tag.ElemSize

	if start+span > total || start+byteOffset > total || byteOffset > span {
		ext := extendedOutOfRange
		return writeHeader(out, service, statusFailure, &ext)
	}

	// C is the output capacity available for data after the 6-byte reply
	// prefix (4-byte CIP header plus the 2-byte element type code); A is
	// how much of the remaining span fits, rounded down to a 4-byte
	// multiple once it exceeds 8 bytes (spec.md §4.D.5).
	capacity := out.Len() - 6
	remaining := span - byteOffset
	needFrag := remaining > capacity

	avail := remaining
	if avail > capacity {
		avail = capacity
	}
	if avail > 8 {
		avail -= avail % 4
	}

	status := byte(statusSuccess)
	if needFrag {
		status = statusNeedsFragment
	}

	writeHeader(out, service, status, nil)
	out.PutUint16LE(4, uint16(tag.Type.Code()))

	from := start + byteOffset
	n := out.Sub(6, avail).CopyFrom(0, tag.Data[from:from+avail])
	return out.Sub(0, 6+n)
}
