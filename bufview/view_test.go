package bufview

import "testing"

func TestAtPut(t *testing.T) {
	buf := make([]byte, 4)
	v := Of(buf)

	if b, ok := v.At(1); !ok || b != 0 {
		t.Fatalf("At(1) = %d, %v; want 0, true", b, ok)
	}
	if !v.Put(1, 0x42) {
		t.Fatalf("Put(1) failed")
	}
	if b, _ := v.At(1); b != 0x42 {
		t.Fatalf("At(1) after Put = %d; want 0x42", b)
	}

	if _, ok := v.At(4); ok {
		t.Fatalf("At(4) should be out of range")
	}
	if v.Put(4, 1) {
		t.Fatalf("Put(4) should fail silently, not panic")
	}
	if v.Put(-1, 1) {
		t.Fatalf("Put(-1) should fail silently, not panic")
	}
}

func TestSubSaturates(t *testing.T) {
	v := Of([]byte{1, 2, 3, 4, 5})

	t.Run("in range", func(t *testing.T) {
		s := v.Sub(1, 2)
		if s.Len() != 2 || s.Bytes()[0] != 2 {
			t.Fatalf("Sub(1,2) = %v", s.Bytes())
		}
	})

	t.Run("truncates past end", func(t *testing.T) {
		s := v.Sub(3, 10)
		if s.Len() != 2 {
			t.Fatalf("Sub(3,10).Len() = %d; want 2", s.Len())
		}
	})

	t.Run("start past end yields empty", func(t *testing.T) {
		s := v.Sub(100, 4)
		if s.Len() != 0 {
			t.Fatalf("Sub(100,4).Len() = %d; want 0", s.Len())
		}
	})

	t.Run("negative start clamps to zero", func(t *testing.T) {
		s := v.Sub(-3, 2)
		if s.Len() != 2 || s.Bytes()[0] != 1 {
			t.Fatalf("Sub(-3,2) = %v", s.Bytes())
		}
	})
}

func TestLittleEndianRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	v := Of(buf)

	v.PutUint16LE(0, 0xABCD)
	if got := v.Uint16LE(0); got != 0xABCD {
		t.Fatalf("Uint16LE = %04x; want ABCD", got)
	}

	v.PutUint32LE(2, 0xDEADBEEF)
	if got := v.Uint32LE(2); got != 0xDEADBEEF {
		t.Fatalf("Uint32LE = %08x; want DEADBEEF", got)
	}

	v.PutUint64LE(8, 0x0102030405060708)
	if got := v.Uint64LE(8); got != 0x0102030405060708 {
		t.Fatalf("Uint64LE = %016x; want 0102030405060708", got)
	}
}

func TestOutOfRangeReadsReturnZero(t *testing.T) {
	v := Of([]byte{1, 2})

	if got := v.Uint16LE(1); got != 0 {
		t.Fatalf("Uint16LE(1) = %d; want 0 (straddles end)", got)
	}
	if got := v.Uint32LE(0); got != 0 {
		t.Fatalf("Uint32LE(0) = %d; want 0 (too short)", got)
	}
}

func TestOutOfRangeWritesAreSilent(t *testing.T) {
	buf := []byte{1, 2}
	v := Of(buf)

	v.PutUint16LE(1, 0xFFFF) // straddles end, must not panic or corrupt buf[0]
	if buf[0] != 1 {
		t.Fatalf("silent out-of-range write corrupted buf[0]: %v", buf)
	}
}

func TestMatchBytesAndString(t *testing.T) {
	v := Of([]byte{0x02, 0x20, 0x06, 0x24, 0x01, 0xFF})

	if !v.MatchBytes([]byte{0x02, 0x20, 0x06, 0x24, 0x01}) {
		t.Fatalf("MatchBytes should match leading prefix")
	}
	if v.MatchBytes([]byte{0x02, 0x20, 0x07}) {
		t.Fatalf("MatchBytes should not match a differing prefix")
	}

	hello := Of([]byte("hello"))
	if !hello.MatchString("hello") {
		t.Fatalf("MatchString should match exact string")
	}
	if hello.MatchString("hell") {
		t.Fatalf("MatchString requires exact length, not just prefix")
	}
}

func TestCopyFrom(t *testing.T) {
	buf := make([]byte, 6)
	v := Of(buf)

	n := v.CopyFrom(2, []byte{0xAA, 0xBB, 0xCC, 0xDD})
	if n != 4 {
		t.Fatalf("CopyFrom returned %d; want 4", n)
	}
	want := []byte{0, 0, 0xAA, 0xBB, 0xCC, 0xDD}
	for i, b := range want {
		if buf[i] != b {
			t.Fatalf("buf = %v; want %v", buf, want)
		}
	}
}
