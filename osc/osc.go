// Copyright 2013 - 2015 Sebastian Ruml <sebastian.ruml@gmail.com>

package osc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// The time tag value consisting of 63 zero bits followed by a one in the
	// least signifigant bit is a special case meaning "immediately."
	timeTagImmediate      = uint64(1)
	secondsFrom1900To1970 = 2208988800
	bundleTag             = "#bundle"
)

var (
	// ErrMalformed is returned when a buffer is not a valid OSC packet.
	ErrMalformed = errors.New("osc: malformed packet")

	// ErrUnsupportedType is returned when an argument has no OSC type tag.
	ErrUnsupportedType = errors.New("osc: unsupported argument type")
)

// Packet is the interface for Message and Bundle.
type Packet interface {
	MarshalBinary() ([]byte, error)
}

// Message is a single OSC message. An OSC message consists of an OSC address
// pattern and zero or more arguments.
type Message struct {
	Address   string
	Arguments []interface{}
}

// Bundle is an OSC Bundle. It consists of the OSC-string "#bundle" followed by
// an OSC Time Tag, followed by zero or more OSC bundle/message elements.
type Bundle struct {
	Timetag  Timetag
	Messages []*Message
	Bundles  []*Bundle
}

// Timetag represents an OSC Time Tag.
// Time tags are represented by a 64 bit fixed point number. The first 32 bits
// specify the number of seconds since midnight on January 1, 1900, and the
// last 32 bits specify fractional parts of a second to a precision of about
// 200 picoseconds. This is the representation used by Internet NTP timestamps.
type Timetag struct {
	timeTag uint64
	time    time.Time
}

////
// Message
////

// NewMessage returns a new Message with the given address and arguments.
func NewMessage(address string, args ...interface{}) *Message {
	return &Message{Address: address, Arguments: args}
}

// Append appends the given arguments to the arguments list.
func (msg *Message) Append(args ...interface{}) {
	msg.Arguments = append(msg.Arguments, args...)
}

// Prepend inserts arg in front of the existing arguments.
func (msg *Message) Prepend(arg interface{}) {
	msg.Arguments = append([]interface{}{arg}, msg.Arguments...)
}

// Equals reports whether b has the same address and the same arguments, in
// the same order, as msg.
func (msg *Message) Equals(b *Message) bool {
	if b == nil || msg.Address != b.Address {
		return false
	}
	if len(msg.Arguments) != len(b.Arguments) {
		return false
	}

	for i, arg := range msg.Arguments {
		switch t := arg.(type) {
		case []byte:
			bb, ok := b.Arguments[i].([]byte)
			if !ok || !bytes.Equal(t, bb) {
				return false
			}
		case Timetag:
			tt, ok := b.Arguments[i].(Timetag)
			if !ok || t.TimeTag() != tt.TimeTag() {
				return false
			}
		default:
			if arg != b.Arguments[i] {
				return false
			}
		}
	}

	return true
}

// Clear clears the OSC address and all arguments.
func (msg *Message) Clear() {
	msg.Address = ""
	msg.ClearData()
}

// ClearData removes all arguments from the OSC Message.
func (msg *Message) ClearData() {
	msg.Arguments = msg.Arguments[:0]
}

// CountArguments returns the number of arguments.
func (msg *Message) CountArguments() int {
	return len(msg.Arguments)
}

// TypeTags returns the type tag string.
func (msg *Message) TypeTags() (string, error) {
	tags := []byte{','}
	for _, arg := range msg.Arguments {
		tag, err := typeTag(arg)
		if err != nil {
			return "", err
		}
		tags = append(tags, tag)
	}

	return string(tags), nil
}

// String implements fmt.Stringer. The format is the address, the type tags
// and then the arguments separated by spaces.
func (msg *Message) String() string {
	tags, err := msg.TypeTags()
	if err != nil {
		return msg.Address + " <" + err.Error() + ">"
	}

	var sb strings.Builder
	sb.WriteString(msg.Address)
	sb.WriteString(" ")
	sb.WriteString(tags)
	for _, arg := range msg.Arguments {
		switch t := arg.(type) {
		case nil:
			sb.WriteString(" Nil")
		case []byte:
			fmt.Fprintf(&sb, " blob(%d)", len(t))
		case Timetag:
			fmt.Fprintf(&sb, " %d", t.TimeTag())
		default:
			fmt.Fprintf(&sb, " %v", t)
		}
	}

	return sb.String()
}

// MarshalBinary serializes the OSC message to a byte slice. The layout is:
// 1. OSC Address Pattern
// 2. OSC Type Tag String
// 3. OSC Arguments
func (msg *Message) MarshalBinary() ([]byte, error) {
	var data = new(bytes.Buffer)
	writePaddedString(msg.Address, data)

	// Type tag string starts with ","
	typetags := []byte{','}

	// Process the type tags and collect all arguments
	var payload = new(bytes.Buffer)
	for _, arg := range msg.Arguments {
		tag, err := typeTag(arg)
		if err != nil {
			return nil, err
		}
		typetags = append(typetags, tag)

		switch t := arg.(type) {
		case int32:
			_ = binary.Write(payload, binary.BigEndian, t)
		case float32:
			_ = binary.Write(payload, binary.BigEndian, math.Float32bits(t))
		case string:
			writePaddedString(t, payload)
		case []byte:
			writeBlob(t, payload)
		case int64:
			_ = binary.Write(payload, binary.BigEndian, t)
		case float64:
			_ = binary.Write(payload, binary.BigEndian, math.Float64bits(t))
		case Timetag:
			payload.Write(t.Bytes())
		}
	}

	writePaddedString(string(typetags), data)
	data.Write(payload.Bytes())

	return data.Bytes(), nil
}

////
// Bundle
////

// NewBundle returns an OSC Bundle with a time tag for the given time.
func NewBundle(t time.Time) *Bundle {
	return &Bundle{Timetag: *NewTimetag(t)}
}

// Append appends an OSC bundle or OSC message to the bundle.
func (b *Bundle) Append(pck Packet) error {
	switch t := pck.(type) {
	case *Bundle:
		b.Bundles = append(b.Bundles, t)
	case *Message:
		b.Messages = append(b.Messages, t)
	default:
		return fmt.Errorf("osc: unsupported packet type %T: only Bundle and Message are supported", t)
	}

	return nil
}

// MarshalBinary serializes the OSC bundle with the following layout:
// 1. Bundle string: '#bundle'
// 2. OSC timetag
// 3. Length of first OSC bundle element
// 4. First bundle element
// 5. Length of n OSC bundle element
// 6. n bundle element
func (b *Bundle) MarshalBinary() ([]byte, error) {
	var data = new(bytes.Buffer)
	writePaddedString(bundleTag, data)
	data.Write(b.Timetag.Bytes())

	elements := make([]Packet, 0, len(b.Messages)+len(b.Bundles))
	for _, m := range b.Messages {
		elements = append(elements, m)
	}
	for _, bb := range b.Bundles {
		elements = append(elements, bb)
	}

	for _, el := range elements {
		buf, err := el.MarshalBinary()
		if err != nil {
			return nil, err
		}
		_ = binary.Write(data, binary.BigEndian, int32(len(buf)))
		data.Write(buf)
	}

	return data.Bytes(), nil
}

// Messages flattens a packet into its messages in wire order. Nested
// bundles are walked depth first, messages before sub-bundles.
func Messages(p Packet) []*Message {
	switch t := p.(type) {
	case *Message:
		return []*Message{t}
	case *Bundle:
		out := append([]*Message(nil), t.Messages...)
		for _, b := range t.Bundles {
			out = append(out, Messages(b)...)
		}
		return out
	}
	return nil
}

////
// Timetag
////

// NewTimetag returns a new OSC timetag object.
func NewTimetag(timeStamp time.Time) *Timetag {
	return &Timetag{
		time:    timeStamp,
		timeTag: timeToTimetag(timeStamp),
	}
}

// NewTimetagFromTimetag creates a new Timetag from the given raw time tag.
func NewTimetagFromTimetag(timetag uint64) *Timetag {
	return &Timetag{
		time:    timetagToTime(timetag),
		timeTag: timetag,
	}
}

// Time returns the time.
func (t *Timetag) Time() time.Time {
	return t.time
}

// FractionalSecond returns the last 32 bits of the Osc Time Tag. Specifies the
// fractional part of a second.
func (t *Timetag) FractionalSecond() uint32 {
	return uint32(t.timeTag)
}

// SecondsSinceEpoch returns the first 32 bits (the number of seconds since the
// midnight 1900) from the OSC timetag.
func (t *Timetag) SecondsSinceEpoch() uint32 {
	return uint32(t.timeTag >> 32)
}

// TimeTag returns the time tag value
func (t Timetag) TimeTag() uint64 {
	return t.timeTag
}

// Bytes converts the OSC Time Tag to its 8 byte wire form.
func (t Timetag) Bytes() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, t.timeTag)
	return buf
}

// SetTime sets the value of the OSC Time Tag.
func (t *Timetag) SetTime(tm time.Time) {
	t.time = tm
	t.timeTag = timeToTimetag(tm)
}

// ExpiresIn calculates the duration until the time tag is reached. It
// returns zero if the value of the timetag is in the past or "immediately".
func (t *Timetag) ExpiresIn() time.Duration {
	if t.timeTag <= timeTagImmediate {
		return 0
	}

	d := time.Until(timetagToTime(t.timeTag))
	if d <= 0 {
		return 0
	}

	return d
}

////
// Encoding helpers
////

// writeBlob writes data as an OSC blob into buff. If the length of data
// isn't 32-bit aligned, padding bytes will be added.
func writeBlob(data []byte, buff *bytes.Buffer) int {
	_ = binary.Write(buff, binary.BigEndian, int32(len(data)))
	buff.Write(data)
	pad := blobPadding(len(data))
	buff.Write(make([]byte, pad))
	return 4 + len(data) + pad
}

// writePaddedString writes a null terminated string padded to a 4 byte
// boundary. Returns the number of written bytes.
func writePaddedString(str string, buff *bytes.Buffer) int {
	buff.WriteString(str)
	pad := padBytesNeeded(len(str))
	buff.Write(make([]byte, pad))
	return len(str) + pad
}

// padBytesNeeded determines how many bytes are needed to terminate a string
// of elementLen bytes and fill up to the next 4 byte length. The result is
// always at least one.
func padBytesNeeded(elementLen int) int {
	return 4*(elementLen/4+1) - elementLen
}

// blobPadding is the number of zero bytes that align a blob to 4 bytes.
func blobPadding(n int) int {
	return (4 - n%4) % 4
}

// timeToTimetag converts the given time to an OSC timetag.
func timeToTimetag(t time.Time) uint64 {
	secs := uint64(secondsFrom1900To1970+t.Unix()) << 32
	frac := uint64(t.Nanosecond()) << 32 / uint64(time.Second)
	return secs + frac
}

// timetagToTime converts the given timetag to a time object.
func timetagToTime(timetag uint64) time.Time {
	secs := int64(timetag>>32) - secondsFrom1900To1970
	nanos := int64((timetag & 0xffffffff) * uint64(time.Second) >> 32)
	return time.Unix(secs, nanos)
}

// typeTag returns the OSC type tag for the given argument.
func typeTag(arg interface{}) (byte, error) {
	switch t := arg.(type) {
	case bool:
		if t {
			return 'T', nil
		}
		return 'F', nil
	case nil:
		return 'N', nil
	case int32:
		return 'i', nil
	case float32:
		return 'f', nil
	case string:
		return 's', nil
	case []byte:
		return 'b', nil
	case int64:
		return 'h', nil
	case float64:
		return 'd', nil
	case Timetag:
		return 't', nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, t)
	}
}
