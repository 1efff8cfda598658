package pathsync

import (
	"strings"
	"testing"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec := Codec{}

	original := NewActivityProgress(ProgressKey{StudentID: "s1", PlanID: "p1", Kind: ActivityWho})
	original.Attempts = 3

	encoded, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded ActivityProgress
	if err := codec.Decode(encoded, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Attempts != 3 || decoded.ID != original.ID {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestCodec_SmallValuesStayPlain(t *testing.T) {
	codec := Codec{Compress: true}

	encoded, err := codec.Encode(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.HasPrefix(encoded, snappyPrefix) {
		t.Errorf("expected small value to stay uncompressed")
	}
}

func TestCodec_CompressesLargeValues(t *testing.T) {
	codec := Codec{Compress: true}

	large := map[string]string{"data": strings.Repeat("abcdefgh", 200)}
	encoded, err := codec.Encode(large)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(encoded, snappyPrefix) {
		t.Errorf("expected large value to be compressed")
	}

	var decoded map[string]string
	if err := codec.Decode(encoded, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded["data"] != large["data"] {
		t.Errorf("compressed round trip mismatch")
	}
}

func TestCodec_DecodeUncompressedWithCompressionOn(t *testing.T) {
	// A store written before compression was enabled must stay readable.
	plain, err := Codec{}.Encode(map[string]int{"n": 7})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded map[string]int
	if err := (Codec{Compress: true}).Decode(plain, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded["n"] != 7 {
		t.Errorf("expected n=7, got %d", decoded["n"])
	}
}
