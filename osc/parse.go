// Copyright 2013 - 2015 Sebastian Ruml <sebastian.ruml@gmail.com>

package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ParsePacket decodes a single OSC packet (message or bundle) from data.
// Any error wraps ErrMalformed.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrMalformed)
	}

	switch data[0] {
	case '/':
		return readMessage(bytes.NewReader(data))
	case '#':
		return readBundle(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrMalformed, data[0])
	}
}

// readBundle reads a Bundle. Each element is length prefixed and parsed
// from its own sub-slice, so a bad element cannot desynchronize the rest.
func readBundle(r *bytes.Reader) (*Bundle, error) {
	tag, err := readPaddedString(r)
	if err != nil {
		return nil, err
	}
	if tag != bundleTag {
		return nil, fmt.Errorf("%w: invalid bundle start tag %q", ErrMalformed, tag)
	}

	var tt uint64
	if err := binary.Read(r, binary.BigEndian, &tt); err != nil {
		return nil, fmt.Errorf("%w: bundle time tag: %v", ErrMalformed, err)
	}

	bundle := &Bundle{Timetag: *NewTimetagFromTimetag(tt)}

	for r.Len() > 0 {
		var length int32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("%w: bundle element size: %v", ErrMalformed, err)
		}
		if length <= 0 || int(length) > r.Len() {
			return nil, fmt.Errorf("%w: bundle element size %d", ErrMalformed, length)
		}

		element := make([]byte, length)
		if _, err := io.ReadFull(r, element); err != nil {
			return nil, fmt.Errorf("%w: bundle element: %v", ErrMalformed, err)
		}

		p, err := ParsePacket(element)
		if err != nil {
			return nil, err
		}
		if err := bundle.Append(p); err != nil {
			return nil, err
		}
	}

	return bundle, nil
}

// readMessage reads one OSC Message.
func readMessage(r *bytes.Reader) (*Message, error) {
	address, err := readPaddedString(r)
	if err != nil {
		return nil, err
	}

	msg := NewMessage(address)
	if err := readArguments(msg, r); err != nil {
		return nil, err
	}

	return msg, nil
}

// readArguments reads the type tag string and all arguments it announces.
// A message without a type tag string carries no arguments.
func readArguments(msg *Message, r *bytes.Reader) error {
	if r.Len() == 0 {
		return nil
	}

	typetags, err := readPaddedString(r)
	if err != nil {
		return err
	}
	if len(typetags) == 0 || typetags[0] != ',' {
		return fmt.Errorf("%w: unsupported type tag string %q", ErrMalformed, typetags)
	}

	for _, c := range typetags[1:] {
		switch c {
		case 'i':
			var i int32
			if err := binary.Read(r, binary.BigEndian, &i); err != nil {
				return shortRead(c, err)
			}
			msg.Append(i)

		case 'h':
			var i int64
			if err := binary.Read(r, binary.BigEndian, &i); err != nil {
				return shortRead(c, err)
			}
			msg.Append(i)

		case 'f':
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return shortRead(c, err)
			}
			msg.Append(math.Float32frombits(bits))

		case 'd':
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return shortRead(c, err)
			}
			msg.Append(math.Float64frombits(bits))

		case 's':
			s, err := readPaddedString(r)
			if err != nil {
				return err
			}
			msg.Append(s)

		case 'b':
			blob, err := readBlob(r)
			if err != nil {
				return err
			}
			msg.Append(blob)

		case 't':
			var tt uint64
			if err := binary.Read(r, binary.BigEndian, &tt); err != nil {
				return shortRead(c, err)
			}
			msg.Append(*NewTimetagFromTimetag(tt))

		case 'T':
			msg.Append(true)

		case 'F':
			msg.Append(false)

		case 'N':
			msg.Append(nil)

		default:
			return fmt.Errorf("%w: unsupported type tag %q", ErrMalformed, c)
		}
	}

	return nil
}

func shortRead(tag rune, err error) error {
	return fmt.Errorf("%w: argument %q: %v", ErrMalformed, tag, err)
}

// readBlob reads an OSC Blob. Padding bytes are consumed and not returned.
func readBlob(r *bytes.Reader) ([]byte, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, shortRead('b', err)
	}
	if n < 0 || int(n) > r.Len() {
		return nil, fmt.Errorf("%w: blob size %d", ErrMalformed, n)
	}

	blob := make([]byte, n)
	if _, err := io.ReadFull(r, blob); err != nil {
		return nil, shortRead('b', err)
	}
	skip(r, blobPadding(int(n)))

	return blob, nil
}

// readPaddedString reads a null terminated string and consumes the padding
// up to the next 4 byte boundary. Missing trailing padding at the end of the
// buffer is tolerated.
func readPaddedString(r *bytes.Reader) (string, error) {
	before := r.Len()

	var buf []byte
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: unterminated string", ErrMalformed)
		}
		if c == 0 {
			break
		}
		buf = append(buf, c)
	}

	consumed := before - r.Len()
	skip(r, (4-consumed%4)%4)

	return string(buf), nil
}

func skip(r *bytes.Reader, n int) {
	if n > r.Len() {
		n = r.Len()
	}
	_, _ = r.Seek(int64(n), io.SeekCurrent)
}
