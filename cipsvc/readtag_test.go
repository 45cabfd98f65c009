package cipsvc

import (
	"math/rand"
	"testing"

	"warsim/bufview"
	"warsim/plcsession"
	"warsim/tagstore"
)

func bigTagSession(t *testing.T) (*plcsession.Session, *tagstore.Tag) {
	t.Helper()
	store := tagstore.NewStore()
	tag, err := tagstore.New("Big", tagstore.DINT, []int{2000})
	if err != nil {
		t.Fatal(err)
	}
	for i := range tag.Data {
		tag.Data[i] = byte(i)
	}
	if err := store.Add(tag); err != nil {
		t.Fatal(err)
	}
	sess := plcsession.New(plcsession.ControlLogix, []byte{0x01, 0x00}, store, rand.New(rand.NewSource(3)))
	return sess, tag
}

func readFragRequest(tagName string, elementCount uint16, byteOffset uint32) []byte {
	seg := []byte{0x91, byte(len(tagName))}
	seg = append(seg, tagName...)
	if len(tagName)%2 != 0 {
		seg = append(seg, 0x00)
	}
	seg = append(seg, 0x28, 0x00) // numeric segment: start at element 0
	req := []byte{svcReadTagFrag, byte(len(seg) / 2)}
	req = append(req, seg...)
	req = append(req, byte(elementCount), byte(elementCount>>8))
	req = append(req, byte(byteOffset), byte(byteOffset>>8), byte(byteOffset>>16), byte(byteOffset>>24))
	return req
}

// Scenario: a fragmented read of Big:DINT[2000] with a 500-byte output
// capacity requires continuation (spec.md §8 scenario 5).
func TestReadTagFragmentedRequiresContinuation(t *testing.T) {
	sess, tag := bigTagSession(t)

	req := readFragRequest("Big", 2000, 0)
	in := bufview.Of(req)
	out := bufview.Of(make([]byte, 506)) // 500 bytes of capacity after the 6-byte reply prefix

	result := Dispatch(in, out, sess)

	status, _ := result.At(2)
	if status != statusNeedsFragment {
		t.Fatalf("status = %#x; want 0x06", status)
	}
	dataLen := result.Len() - 6
	if dataLen != 500 {
		t.Fatalf("data length = %d; want 500", dataLen)
	}
	got := result.Sub(6, dataLen).Bytes()
	for i, b := range got {
		if b != tag.Data[i] {
			t.Fatalf("data[%d] = %d; want %d", i, b, tag.Data[i])
		}
	}
}

// Continuing the read at byte_offset 500 should make forward progress
// with the same capacity.
func TestReadTagFragmentedContinuation(t *testing.T) {
	sess, tag := bigTagSession(t)

	req := readFragRequest("Big", 2000, 500)
	in := bufview.Of(req)
	out := bufview.Of(make([]byte, 506))

	result := Dispatch(in, out, sess)

	dataLen := result.Len() - 6
	if dataLen != 500 {
		t.Fatalf("data length = %d; want 500", dataLen)
	}
	got := result.Sub(6, dataLen).Bytes()
	for i, b := range got {
		if b != tag.Data[500+i] {
			t.Fatalf("data[%d] = %d; want %d", i, b, tag.Data[500+i])
		}
	}
}

// Final continuation, small enough to complete without another fragment.
func TestReadTagFragmentedFinalChunk(t *testing.T) {
	sess, tag := bigTagSession(t)

	total := tag.TotalBytes() // 8000
	offset := uint32(total - 200)
	req := readFragRequest("Big", 2000, offset)
	in := bufview.Of(req)
	out := bufview.Of(make([]byte, 504))

	result := Dispatch(in, out, sess)

	status, _ := result.At(2)
	if status != statusSuccess {
		t.Fatalf("status = %#x; want success on the final chunk", status)
	}
	dataLen := result.Len() - 6
	if dataLen != 200 {
		t.Fatalf("data length = %d; want 200", dataLen)
	}
}

func TestReadTagUnknownName(t *testing.T) {
	sess, _ := newTagSession(t)

	req := []byte{0x4C, 0x04, 0x91, 0x06, 'N', 'o', 'S', 'u', 'c', 'h', 0x28, 0x00}
	result := Dispatch(bufview.Of(req), bufview.Of(make([]byte, 32)), sess)

	status, _ := result.At(2)
	if status != statusPathUnknown {
		t.Fatalf("status = %#x; want 0x05", status)
	}
}
