package message

import "fmt"

// BlockSZX is the 3-bit block-size exponent index from RFC 7959 Section 2.2.
type BlockSZX uint8

const (
	SZX16 BlockSZX = iota
	SZX32
	SZX64
	SZX128
	SZX256
	SZX512
	SZX1024
)

// Size returns the block size in bytes that szx denotes.
func (szx BlockSZX) Size() int {
	return 16 << uint(szx)
}

// SZXFromSize returns the SZX value for a given block size, which must be
// one of 16,32,64,128,256,512,1024.
func SZXFromSize(size int) (BlockSZX, error) {
	for szx := SZX16; szx <= SZX1024; szx++ {
		if szx.Size() == size {
			return szx, nil
		}
	}
	return 0, fmt.Errorf("message: %d is not a valid block size", size)
}

// BlockOption is the NUM/M/SZX triple from RFC 7959 Section 2.2, plus the
// BERT extension (draft-ietf-core-coap-tcp-tls): BERT permits multiple
// 1024-byte blocks per message and is carried as a flag alongside SZX1024
// rather than a distinct SZX value, since it changes block-count
// semantics, not the size encoding itself.
type BlockOption struct {
	Num  uint32
	SZX  BlockSZX
	More bool
	BERT bool
}

// BlockSize returns the size, in bytes, of a single block under this
// option (always 1024 when BERT is set, regardless of SZX's nominal value).
func (b BlockOption) BlockSize() int {
	if b.BERT {
		return 1024
	}
	return b.SZX.Size()
}

// Encode produces the minimal-width (1..3 byte) variable-length unsigned
// integer encoding: low 3 bits SZX, bit 3 the more flag, remaining upper
// bits the block number.
func (b BlockOption) Encode() []byte {
	szx := b.SZX
	if b.BERT {
		szx = SZX1024
	}
	v := b.Num<<4 | uint32(szx)
	if b.More {
		v |= 0x08
	}

	switch {
	case v&0xFFFFFF00 == 0:
		return []byte{byte(v)}
	case v&0xFFFF0000 == 0:
		return []byte{byte(v >> 8), byte(v)}
	default:
		return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	}
}

// DecodeBlockOption parses a 1..3 byte block-option value. Shorter
// encodings than the minimal width for a given number are accepted, as
// the specification requires.
func DecodeBlockOption(data []byte) (BlockOption, error) {
	if len(data) == 0 || len(data) > 3 {
		return BlockOption{}, fmt.Errorf("message: block option value must be 1..3 bytes, got %d", len(data))
	}
	var v uint32
	for _, b := range data {
		v = v<<8 | uint32(b)
	}
	szx := BlockSZX(v & 0x07)
	more := v&0x08 != 0
	num := v >> 4
	return BlockOption{Num: num, SZX: szx, More: more, BERT: szx == SZX1024}, nil
}

// NextBlock computes the BlockOption for the block following b over
// fullPayload, advancing the block number by one.
func NextBlock(b BlockOption, fullPayload []byte) BlockOption {
	return nextBlockStep(b, fullPayload, 1)
}

// NextBERTBlock computes the BlockOption for the block following b, where
// bertBlocksPerMessage 1024-byte blocks are transferred per message.
func NextBERTBlock(b BlockOption, fullPayload []byte, bertBlocksPerMessage uint32) BlockOption {
	n := nextBlockStep(b, fullPayload, bertBlocksPerMessage)
	n.BERT = true
	n.SZX = SZX1024
	return n
}

func nextBlockStep(b BlockOption, fullPayload []byte, step uint32) BlockOption {
	blockSize := uint32(b.BlockSize())
	next := b.Num + step
	more := (uint64(next)+1)*uint64(blockSize) < uint64(len(fullPayload))
	return BlockOption{Num: next, SZX: b.SZX, More: more, BERT: b.BERT}
}

// CreateBlockPart slices the portion of fullPayload that block b
// addresses: [num*size, min(len(fullPayload), (num+1)*size)). It returns
// nil if the start offset lies beyond the payload.
func CreateBlockPart(b BlockOption, fullPayload []byte) []byte {
	size := b.BlockSize()
	start := int(b.Num) * size
	if start >= len(fullPayload) {
		return nil
	}
	end := start + size
	if end > len(fullPayload) {
		end = len(fullPayload)
	}
	return fullPayload[start:end]
}

// AppendPayload appends block's bytes to buffer and returns the number of
// (possibly BERT) blocks that payload represents: 1 for a standard block,
// more than 1 when a BERT message carries several 1024-byte blocks
// concatenated in a single payload.
func AppendPayload(buffer *[]byte, b BlockOption, payload []byte) int {
	*buffer = append(*buffer, payload...)
	blockSize := b.BlockSize()
	if blockSize == 0 {
		return 0
	}
	return len(payload) / blockSize
}
