package cache

import "testing"

func TestSplitRoundTrip(t *testing.T) {
	const lineSize = 64
	const numSets = 512
	for tag := uint64(0); tag < 1000; tag += 37 {
		for offset := uint64(0); offset < lineSize; offset += 9 {
			addr := tag<<6 | offset
			a := Split(addr, lineSize, numSets)
			if a.Tag != tag {
				t.Fatalf("tag mismatch: got %d want %d (addr=%#x)", a.Tag, tag, addr)
			}
			if a.LineOffset != offset {
				t.Fatalf("offset mismatch: got %d want %d (addr=%#x)", a.LineOffset, offset, addr)
			}
		}
	}
}

func TestSplitSetIndexIsTagMaskedByMask(t *testing.T) {
	a := Split(0x12340, 64, 256)
	want := a.Tag & 255
	if a.SetIndex != want {
		t.Fatalf("set index = %d, want %d", a.SetIndex, want)
	}
}

func TestSplitSkewedDiffersFromPlainInGeneral(t *testing.T) {
	plain := Split(0xABCDE0, 64, 256)
	skewed := SplitSkewed(0xABCDE0, 64, 256)
	if plain.Tag != skewed.Tag || plain.LineOffset != skewed.LineOffset {
		t.Fatalf("skewed split must preserve tag/offset: plain=%+v skewed=%+v", plain, skewed)
	}
	if plain.SetIndex == skewed.SetIndex {
		t.Fatalf("skewed set index should differ here: plain=%+v skewed=%+v", plain, skewed)
	}
}

func TestValidateGeometryRejectsNonPowerOfTwo(t *testing.T) {
	if err := validateGeometry(64, 100); err == nil {
		t.Fatal("expected error for non-power-of-two set count")
	}
	if err := validateGeometry(100, 64); err == nil {
		t.Fatal("expected error for non-power-of-two line size")
	}
	if err := validateGeometry(64, 256); err != nil {
		t.Fatalf("unexpected error for valid geometry: %v", err)
	}
}
