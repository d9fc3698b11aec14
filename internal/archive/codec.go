package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ErrCorruptUnit reports an archive unit that cannot be decoded.
var ErrCorruptUnit = errors.New("corrupt archive unit")

const (
	headerSize = 16
	// maxUnitSize bounds the allocation made from an untrusted size header.
	maxUnitSize = 1 << 30
)

var unitMagic = [8]byte{'G', 'L', 'Z', '1', 0, 0, 0, 0}

var (
	encoderOnce = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1), zstd.WithZeroFrames(true))
	})
	decoderOnce = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(maxUnitSize))
	})
)

// Encode wraps raw in an archive unit.
func Encode(raw []byte) ([]byte, error) {
	enc, err := encoderOnce()
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	out := make([]byte, headerSize, headerSize+len(raw)/2)
	copy(out, unitMagic[:])
	binary.LittleEndian.PutUint64(out[8:headerSize], uint64(len(raw)))
	return enc.EncodeAll(raw, out), nil
}

// Decode returns the original bytes of an archive unit. The output buffer is
// sized from the header and the decoded length must match it exactly.
func Decode(unit []byte) ([]byte, error) {
	if len(unit) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptUnit, len(unit))
	}
	if !bytes.Equal(unit[:8], unitMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptUnit, unit[:4])
	}
	size := binary.LittleEndian.Uint64(unit[8:headerSize])
	if size > maxUnitSize {
		return nil, fmt.Errorf("%w: declared size %d exceeds limit", ErrCorruptUnit, size)
	}
	dec, err := decoderOnce()
	if err != nil {
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	out, err := dec.DecodeAll(unit[headerSize:], make([]byte, 0, int(size)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptUnit, err)
	}
	if uint64(len(out)) != size {
		return nil, fmt.Errorf("%w: decoded %d bytes, header declares %d", ErrCorruptUnit, len(out), size)
	}
	return out, nil
}
