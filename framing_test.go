package main

import (
	"fmt"
	"math/rand"
	"testing"
)

func frameFor(payload string) []byte {
	return []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(payload), payload))
}

func drain(d *frameDecoder) []string {
	var out []string
	for {
		p, ok := d.Next()
		if !ok {
			return out
		}
		out = append(out, string(p))
	}
}

func TestDecodeOneShot(t *testing.T) {
	var d frameDecoder
	d.Feed(frameFor(`{"method":"ping"}`))

	got := drain(&d)
	if len(got) != 1 || got[0] != `{"method":"ping"}` {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeSplitAcrossArbitraryBoundaries(t *testing.T) {
	payload := `{"method":"room::broadcast","message":"hello world"}`
	frame := frameFor(payload)

	// Every split position must reassemble identically to one-shot delivery.
	for cut := 1; cut < len(frame); cut++ {
		var d frameDecoder
		d.Feed(frame[:cut])
		if got := drain(&d); len(got) != 0 && got[0] != payload {
			t.Fatalf("cut %d: early mismatched frame %q", cut, got[0])
		}
		d.Feed(frame[cut:])
		got := drain(&d)
		if len(got) != 1 || got[0] != payload {
			t.Fatalf("cut %d: got %q", cut, got)
		}
	}
}

func TestDecodeMultipleFramesInOneFeed(t *testing.T) {
	var d frameDecoder
	buf := append(frameFor(`{"a":1}`), frameFor(`{"b":2}`)...)
	buf = append(buf, frameFor(`{"c":3}`)...)
	d.Feed(buf)

	got := drain(&d)
	want := []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

// TestDecodePayloadContainingCRLF guards the header-advance fix: a payload
// holding "\r\n" must not shift the frame boundary.
func TestDecodePayloadContainingCRLF(t *testing.T) {
	payload := "{\"contents\":\"line one\r\nline two\r\n\"}"
	var d frameDecoder
	d.Feed(frameFor(payload))
	d.Feed(frameFor(`{"next":true}`))

	got := drain(&d)
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if got[0] != payload {
		t.Fatalf("frame 0: got %q", got[0])
	}
	if got[1] != `{"next":true}` {
		t.Fatalf("frame 1: got %q", got[1])
	}
}

func TestDecodeMultibytePayloadSplitMidRune(t *testing.T) {
	payload := `{"some":"ラウトは難しいです！"}`
	frame := frameFor(payload)

	// Split inside a multi-byte sequence; the byte count is authoritative.
	// The frame ends with "！" (3 bytes) then `"}`, so 4 bytes from the end
	// is just after the first byte of "！".
	var d frameDecoder
	cut := len(frame) - 4
	d.Feed(frame[:cut])
	if got := drain(&d); len(got) != 0 {
		t.Fatalf("decoded early: %q", got)
	}
	d.Feed(frame[cut:])
	got := drain(&d)
	if len(got) != 1 || got[0] != payload {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeMalformedHeaderResyncs(t *testing.T) {
	var d frameDecoder
	d.Feed([]byte("content-length: 5\r\n\r\n"))
	d.Feed(frameFor(`{"ok":true}`))

	got := drain(&d)
	if len(got) != 1 || got[0] != `{"ok":true}` {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeEmptyPayloadIsDropped(t *testing.T) {
	var d frameDecoder
	d.Feed([]byte("Content-Length: 0\r\n\r\n"))
	d.Feed(frameFor(`{"ok":true}`))

	got := drain(&d)
	if len(got) != 1 || got[0] != `{"ok":true}` {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeRandomChunking(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var want []string
	var stream []byte
	for i := 0; i < 50; i++ {
		payload := fmt.Sprintf(`{"seq":%d,"body":"msg \r\n %d"}`, i, rng.Intn(1000))
		want = append(want, payload)
		stream = append(stream, frameFor(payload)...)
	}

	var d frameDecoder
	var got []string
	for len(stream) > 0 {
		n := rng.Intn(17) + 1
		if n > len(stream) {
			n = len(stream)
		}
		d.Feed(stream[:n])
		stream = stream[n:]
		got = append(got, drain(&d)...)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d mismatch", i)
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	got := string(encodeFrame([]byte(`{"method":"ping"}`)))
	want := "Content-Length: 17\r\n\r\n{\"method\":\"ping\"}"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := `{"contents":"日本語\r\nです"}`
	var d frameDecoder
	d.Feed(encodeFrame([]byte(payload)))
	got := drain(&d)
	if len(got) != 1 || got[0] != payload {
		t.Fatalf("got %q", got)
	}
}
