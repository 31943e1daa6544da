package main

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Wire format: every frame is "Content-Length: <N>\r\n\r\n" followed by
// exactly N bytes of UTF-8 JSON. There is no trailing delimiter; the byte
// count is authoritative, so payloads may themselves contain "\r\n" or
// multi-byte runes split across socket reads.
const (
	headerPrefix    = "Content-Length: "
	headerSeparator = "\r\n\r\n"
)

// frameDecoder reassembles Content-Length frames from arbitrary byte chunks.
// Feed appends raw socket data; Next pops one complete payload at a time.
// Partial frames stay buffered until the remaining bytes arrive.
//
// The decoder advances by the header's byte length, never by splitting the
// whole buffer on "\r\n" and counting pieces — a payload containing "\r\n"
// would otherwise shift the frame boundary.
type frameDecoder struct {
	buf []byte
}

// Feed appends a chunk of raw bytes to the decode buffer.
func (d *frameDecoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next extracts the next complete payload from the buffer. It returns
// (payload, true) when a whole frame is available and (nil, false) when
// more bytes are needed. A malformed header is logged and dropped through
// its blank line, and the scan resumes with the bytes after it; any body
// that followed the malformed header is not skipped and is parsed as the
// next header. An empty payload is logged and dropped. The connection is
// never torn down for a bad frame.
func (d *frameDecoder) Next() ([]byte, bool) {
	for {
		sep := bytes.Index(d.buf, []byte(headerSeparator))
		if sep < 0 {
			return nil, false
		}

		length, err := parseContentLength(d.buf[:sep])
		if err != nil {
			logrus.Errorf("[channel] dropping malformed frame header: %v", err)
			d.buf = d.buf[sep+len(headerSeparator):]
			continue
		}

		body := sep + len(headerSeparator)
		if len(d.buf) < body+length {
			return nil, false // short read; keep the partial frame
		}

		payload := make([]byte, length)
		copy(payload, d.buf[body:body+length])
		d.buf = d.buf[body+length:]

		if length == 0 {
			logrus.Errorf("[channel] dropping empty frame")
			continue
		}
		return payload, true
	}
}

// parseContentLength parses a frame header line. The prefix casing and the
// single trailing space are exact; anything else is a protocol violation.
func parseContentLength(header []byte) (int, error) {
	if !bytes.HasPrefix(header, []byte(headerPrefix)) {
		return 0, fmt.Errorf("expected %q, got %q", headerPrefix, string(header))
	}
	digits := header[len(headerPrefix):]
	n, err := strconv.Atoi(string(digits))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad content length %q", string(digits))
	}
	return n, nil
}

// encodeFrame wraps a serialized JSON payload in a Content-Length header.
func encodeFrame(payload []byte) []byte {
	header := headerPrefix + strconv.Itoa(len(payload)) + headerSeparator
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	return append(out, payload...)
}
