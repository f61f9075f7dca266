package can

import "testing"

func TestPackNoDataRoundTrip(t *testing.T) {
	d := ECUTimeout(IndexLeft)
	f := PackNoData(d, 7)
	if !f.Valid() {
		t.Fatalf("frame failed CRC check after packing")
	}
	if !f.Match(d) {
		t.Fatalf("packed frame does not match its own descriptor")
	}
	if got := f.Bytes()[0]; got != Head {
		t.Fatalf("first byte = %#x, want HEAD", got)
	}
	if len(f.Bytes()) != 6 {
		t.Fatalf("no-data frame length = %d, want 6", len(f.Bytes()))
	}
}

func TestPackWithDataRoundTrip(t *testing.T) {
	d := ECUTargetSpeed(IndexRight)
	var payload [8]byte
	copy(payload[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	f := PackWithData(d, payload, 9)
	if !f.Valid() {
		t.Fatalf("frame failed CRC check after packing")
	}
	if f.Data != payload {
		t.Fatalf("payload mutated: got %v want %v", f.Data, payload)
	}
	if len(f.Bytes()) != 14 {
		t.Fatalf("with-data frame length = %d, want 14", len(f.Bytes()))
	}
}

func TestMatchWildcardIndex(t *testing.T) {
	f := PackNoData(ECUState(IndexLeft), 1)
	if !f.Match(ECUBroadcastState) {
		t.Fatalf("frame from ECU0 should match wildcard-index descriptor")
	}
	if f.Match(TCUBroadcastState) {
		t.Fatalf("ECU frame should not match TCU descriptor")
	}
	other := PackNoData(ECUState(IndexRight), 1)
	if other.Match(Descriptor{NodeECU, IndexLeft, MsgState}) {
		t.Fatalf("ECU1 frame should not match an ECU0-specific descriptor")
	}
}

func TestBigEndianRoundTrip16(t *testing.T) {
	for _, v := range []int16{0, 1, -1, 32767, -32768, 12345} {
		f := PackBigEndianInt16(ECUTargetSpeed(IndexLeft), v, 0)
		if got := GetBigEndianInt16(&f); got != v {
			t.Fatalf("round trip of %d got %d", v, got)
		}
	}
}

func TestBigEndianRoundTrip32(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 2147483647, -2147483648, 123456789} {
		f := PackBigEndianInt32(ECUTargetSpeed(IndexLeft), v, 0)
		if got := GetBigEndianInt32(&f); got != v {
			t.Fatalf("round trip of %d got %d", v, got)
		}
	}
}

func TestCrcRejectsBitFlips(t *testing.T) {
	f := PackWithData(TCUTargetPosition(IndexOnly), [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, 3)
	raw := f.Bytes()
	for i := 1; i < len(raw)-1; i++ { // skip HEAD and CRC themselves
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte(nil), raw...)
			corrupted[i] ^= 1 << bit

			var p Parser
			var got Result
			for _, b := range corrupted {
				if r := p.Feed(b); r.Kind != ResultNone {
					got = r
				}
			}
			if got.Kind != ResultCrcError {
				t.Fatalf("flipping bit %d of byte %d did not fail CRC check (kind=%d)", bit, i, got.Kind)
			}
		}
	}
}

func TestReformatLeavesPayloadUntouched(t *testing.T) {
	f := PackWithData(ECUTargetSpeed(IndexLeft), [8]byte{9, 8, 7, 6, 5, 4, 3, 2}, 11)
	want := f.Data
	f.Reformat()
	if f.Data != want {
		t.Fatalf("Reformat mutated payload: got %v want %v", f.Data, want)
	}
	if !f.Valid() {
		t.Fatalf("Reformat produced an invalid CRC")
	}
}
