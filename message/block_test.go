package message_test

import (
	"testing"

	"github.com/coregx/coap/message"
)

func TestBlockOptionEncodeDecodeRoundTrip(t *testing.T) {
	b := message.BlockOption{Num: 2, SZX: message.SZX256, More: true}
	data := b.Encode()
	got, err := message.DecodeBlockOption(data)
	if err != nil {
		t.Fatalf("DecodeBlockOption() error = %v", err)
	}
	if got != b {
		t.Fatalf("round trip = %+v, want %+v", got, b)
	}
}

func TestNextBlockMoreFlag(t *testing.T) {
	// block 2 of a 256-byte-block transfer over a 1000-byte payload:
	// next block is 3, (3+1)*256 = 1024, which is not < 1000, so More = false.
	b := message.BlockOption{Num: 2, SZX: message.SZX256}
	payload := make([]byte, 1000)

	next := message.NextBlock(b, payload)
	if next.Num != 3 {
		t.Fatalf("Num = %d, want 3", next.Num)
	}
	if next.More {
		t.Fatal("More = true, want false")
	}
}

func TestNextBlockMoreFlagWhenDataRemains(t *testing.T) {
	b := message.BlockOption{Num: 0, SZX: message.SZX256}
	payload := make([]byte, 1000)

	next := message.NextBlock(b, payload)
	if next.Num != 1 {
		t.Fatalf("Num = %d, want 1", next.Num)
	}
	if !next.More {
		t.Fatal("More = false, want true")
	}
}

func TestCreateBlockPart(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	b := message.BlockOption{Num: 1, SZX: message.SZX256}
	part := message.CreateBlockPart(b, payload)
	if len(part) != 44 { // 300 - 256
		t.Fatalf("len(part) = %d, want 44", len(part))
	}
	if part[0] != payload[256] {
		t.Fatalf("part[0] = %d, want %d", part[0], payload[256])
	}

	beyond := message.BlockOption{Num: 5, SZX: message.SZX256}
	if got := message.CreateBlockPart(beyond, payload); got != nil {
		t.Fatalf("CreateBlockPart() beyond payload = %v, want nil", got)
	}
}

func TestBERTBlockSize(t *testing.T) {
	b := message.BlockOption{SZX: message.SZX1024, BERT: true}
	if b.BlockSize() != 1024 {
		t.Fatalf("BlockSize() = %d, want 1024", b.BlockSize())
	}

	next := message.NextBERTBlock(b, make([]byte, 5000), 3)
	if !next.BERT {
		t.Fatal("NextBERTBlock() result BERT = false, want true")
	}
	if next.Num != 3 {
		t.Fatalf("Num = %d, want 3 (advanced by bertBlocksPerMessage)", next.Num)
	}
}

func TestAppendPayloadBlockCount(t *testing.T) {
	var buf []byte
	b := message.BlockOption{SZX: message.SZX256}
	n := message.AppendPayload(&buf, b, make([]byte, 512))
	if n != 2 {
		t.Fatalf("AppendPayload() block count = %d, want 2", n)
	}
	if len(buf) != 512 {
		t.Fatalf("len(buf) = %d, want 512", len(buf))
	}
}

func TestSZXFromSize(t *testing.T) {
	szx, err := message.SZXFromSize(64)
	if err != nil {
		t.Fatalf("SZXFromSize() error = %v", err)
	}
	if szx != message.SZX64 {
		t.Fatalf("SZXFromSize(64) = %v, want SZX64", szx)
	}

	if _, err := message.SZXFromSize(100); err == nil {
		t.Fatal("SZXFromSize(100) error = nil, want error for non-power-of-two size")
	}
}
