// Package slip implements the byte-stuffing framing the ROM bootloader's
// wire protocol rides on: every command and response is one SLIP frame,
// delimited by End and with End/Esc escaped inside the payload.
package slip

import "bytes"

// Special bytes per RFC 1055, reused unchanged by the ROM loader's framing.
const (
	End    = 0xC0
	Esc    = 0xDB
	EscEnd = 0xDC
	EscEsc = 0xDD
)

// Encode wraps payload in SLIP framing: a leading and trailing End byte,
// with any End or Esc byte inside payload escaped so it can't be mistaken
// for a delimiter.
func Encode(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(payload) + 10)
	buf.WriteByte(End)
	for _, b := range payload {
		switch b {
		case End:
			buf.WriteByte(Esc)
			buf.WriteByte(EscEnd)
		case Esc:
			buf.WriteByte(Esc)
			buf.WriteByte(EscEsc)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(End)
	return buf.Bytes()
}

// stripFrameDelimiters drops the leading and trailing runs of End bytes
// from frame, returning nil if nothing but delimiters remain. The two
// runs are trimmed independently against the frame's original bounds, so
// a frame of nothing but End bytes collapses cleanly to nil rather than
// an empty non-nil slice.
func stripFrameDelimiters(frame []byte) []byte {
	start, end := 0, len(frame)
	for start < end && frame[start] == End {
		start++
	}
	for end > start && frame[end-1] == End {
		end--
	}
	if start >= end {
		return nil
	}
	return frame[start:end]
}

// Decode extracts the unescaped payload from a SLIP frame (delimiters
// included). Returns nil if frame is too short to be valid or carries no
// payload once delimiters are stripped.
func Decode(frame []byte) []byte {
	if len(frame) < 2 {
		return nil
	}
	payload := stripFrameDelimiters(frame)
	if payload == nil {
		return nil
	}

	var buf bytes.Buffer
	buf.Grow(len(payload))
	for i := 0; i < len(payload); {
		b := payload[i]
		if b == Esc && i+1 < len(payload) {
			switch payload[i+1] {
			case EscEnd:
				buf.WriteByte(End)
			case EscEsc:
				buf.WriteByte(Esc)
			default:
				buf.WriteByte(payload[i+1])
			}
			i += 2
			continue
		}
		buf.WriteByte(b)
		i++
	}
	return buf.Bytes()
}

// ReadFrame pulls the first complete SLIP frame out of a byte stream,
// returning it (delimiters included) and whatever trails it. Leading
// bytes before the first End are discarded as line noise. A run of bare
// End bytes with no payload between them never closes a frame, since the
// ROM loader sometimes pads between frames with extra Ends; ReadFrame
// keeps scanning past those until real payload bytes appear.
func ReadFrame(stream []byte) (frame, remaining []byte) {
	frameStart := bytes.IndexByte(stream, End)
	if frameStart == -1 {
		return nil, stream
	}

	sawPayload := false
	for i := frameStart; i < len(stream); i++ {
		if stream[i] != End {
			sawPayload = true
			continue
		}
		if sawPayload {
			return stream[frameStart : i+1], stream[i+1:]
		}
	}
	return nil, stream
}
