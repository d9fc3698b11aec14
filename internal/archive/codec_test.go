package archive_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"glimpse/internal/archive"
)

func TestCodecRoundTrip(t *testing.T) {
	cases := map[string][]byte{
		"empty":      {},
		"small":      []byte("hello"),
		"repetitive": bytes.Repeat([]byte("abcdefgh"), 64*1024),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			unit, err := archive.Encode(raw)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if string(unit[:4]) != "GLZ1" {
				t.Fatalf("unexpected magic %q", unit[:4])
			}
			if got := binary.LittleEndian.Uint64(unit[8:16]); got != uint64(len(raw)) {
				t.Fatalf("header size %d, want %d", got, len(raw))
			}
			out, err := archive.Decode(unit)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(out, raw) {
				t.Fatal("round trip mismatch")
			}
		})
	}
}

func TestDecodeLargeRatio(t *testing.T) {
	// Highly compressible payloads exceed any fixed multiple of the unit size.
	raw := make([]byte, 8<<20)
	unit, err := archive.Encode(raw)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(unit)*10 >= len(raw) {
		t.Fatalf("expected ratio above 10x, unit is %d bytes", len(unit))
	}
	out, err := archive.Decode(unit)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != len(raw) {
		t.Fatalf("decoded %d bytes, want %d", len(out), len(raw))
	}
}

func TestDecodeRejectsCorruptUnits(t *testing.T) {
	good, err := archive.Encode([]byte("payload bytes"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'

	wrongSize := append([]byte(nil), good...)
	binary.LittleEndian.PutUint64(wrongSize[8:16], 3)

	hugeSize := append([]byte(nil), good...)
	binary.LittleEndian.PutUint64(hugeSize[8:16], 1<<40)

	truncated := good[:len(good)-4]

	cases := map[string][]byte{
		"short":      good[:10],
		"bad magic":  badMagic,
		"wrong size": wrongSize,
		"huge size":  hugeSize,
		"truncated":  truncated,
	}
	for name, unit := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := archive.Decode(unit); !errors.Is(err, archive.ErrCorruptUnit) {
				t.Fatalf("expected ErrCorruptUnit, got %v", err)
			}
		})
	}
}
