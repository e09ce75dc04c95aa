package message_test

import (
	"testing"

	"github.com/coregx/coap/message"
)

func TestCodeFromByteRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		b    byte
		kind message.CodeKind
	}{
		{"empty", 0x00, message.CodeEmpty},
		{"GET", 0x01, message.CodeMethod},
		{"iPATCH", 0x07, message.CodeMethod},
		{"2.05 Content", 0x45, message.CodeResponse},
		{"4.04 Not Found", 0x84, message.CodeResponse},
		{"7.02 signal ping", 0xE2, message.CodeResponse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := message.CodeFromByte(tc.b)
			if c.Kind != tc.kind {
				t.Fatalf("CodeFromByte(0x%02x).Kind = %v, want %v", tc.b, c.Kind, tc.kind)
			}
			if got := c.Byte(); got != tc.b {
				t.Fatalf("round trip: Byte() = 0x%02x, want 0x%02x", got, tc.b)
			}
		})
	}
}

func TestEmptyCodeIsDistinctFromResponse(t *testing.T) {
	empty := message.EmptyCode()
	if empty.Kind != message.CodeEmpty {
		t.Fatalf("EmptyCode().Kind = %v, want CodeEmpty", empty.Kind)
	}
	if empty.Byte() != 0 {
		t.Fatalf("EmptyCode().Byte() = %d, want 0", empty.Byte())
	}
}

func TestIsSignal(t *testing.T) {
	if !message.SignalPing.IsSignal() {
		t.Fatal("SignalPing.IsSignal() = false, want true")
	}
	if message.Content.IsSignal() {
		t.Fatal("Content.IsSignal() = true, want false")
	}
	if message.MethodCode(message.GET).IsSignal() {
		t.Fatal("MethodCode(GET).IsSignal() = true, want false")
	}
}

func TestCodeString(t *testing.T) {
	tests := []struct {
		c    message.Code
		want string
	}{
		{message.EmptyCode(), "0.00"},
		{message.MethodCode(message.GET), "GET"},
		{message.Content, "2.05"},
		{message.SignalAbort, "7.05"},
	}
	for _, tc := range tests {
		if got := tc.c.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
