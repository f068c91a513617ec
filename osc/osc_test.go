package osc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMsgHandlerWithInvalidAddress(t *testing.T) {
	d := NewStandardDispatcher()
	err := d.AddMsgHandler("/address#/test", func(msg *Message) {})
	assert.Error(t, err, "Expected error with '/address#/test'")
}

func TestAddMsgHandler(t *testing.T) {
	d := NewStandardDispatcher()
	require.NoError(t, d.AddMsgHandler("/address/test", func(msg *Message) {}))
	assert.Error(t, d.AddMsgHandler("/address/test", func(msg *Message) {}), "duplicate pattern")
}

func TestDispatchExactAddressDoesNotMatchPrefix(t *testing.T) {
	d := NewStandardDispatcher()
	var got []string
	require.NoError(t, d.AddMsgHandler("/OBSBOT/WebCam/General/Connected", func(msg *Message) {
		got = append(got, msg.Address)
	}))

	d.Dispatch(NewMessage("/OBSBOT/WebCam/General/ConnectedResp"))
	d.Dispatch(NewMessage("/OBSBOT/WebCam/General/Connected"))

	assert.Equal(t, []string{"/OBSBOT/WebCam/General/Connected"}, got)
}

func TestDispatchWildcards(t *testing.T) {
	tests := []struct {
		pattern string
		address string
		match   bool
	}{
		{"*", "/anything/at/all", true},
		{"/led/1/*", "/led/1/high", true},
		{"/led/1/*", "/led/2/high", false},
		{"/led/?/high", "/led/3/high", true},
		{"/led/[1-3]/high", "/led/2/high", true},
		{"/led/[1-3]/high", "/led/4/high", false},
		{"/led/[!1-3]/high", "/led/4/high", true},
		{"/cam/{Tail,Tail2}/Snapshot", "/cam/Tail2/Snapshot", true},
		{"/cam/{Tail,Tail2}/Snapshot", "/cam/TailAir/Snapshot", false},
		{"/a.b", "/aXb", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.address, func(t *testing.T) {
			d := NewStandardDispatcher()
			require.NoError(t, d.AddMsgHandler(tt.pattern, func(msg *Message) {}))
			assert.Equal(t, tt.match, d.Match(tt.address))
		})
	}
}

func TestDispatchBundleImmediate(t *testing.T) {
	d := NewStandardDispatcher()
	var got []string
	require.NoError(t, d.AddMsgHandler("*", func(msg *Message) {
		got = append(got, msg.Address)
	}))

	inner := NewBundle(time.Unix(0, 0))
	require.NoError(t, inner.Append(NewMessage("/c")))
	outer := NewBundle(time.Unix(0, 0))
	require.NoError(t, outer.Append(NewMessage("/a")))
	require.NoError(t, outer.Append(inner))
	require.NoError(t, outer.Append(NewMessage("/b")))

	d.Dispatch(outer)
	assert.Equal(t, []string{"/a", "/b", "/c"}, got)
}

func TestMessageRoundTrip(t *testing.T) {
	msg := NewMessage("/OBSBOT/WebCam/General/SetGimMotorDegree",
		int32(50), int32(-129), int32(59), float32(1.5), "Tiny 2", true, false, nil,
		int64(1)<<40, 2.25, []byte{1, 2, 3, 4, 5})

	data, err := msg.MarshalBinary()
	require.NoError(t, err)
	assert.Zero(t, len(data)%4, "packet size must be a multiple of 4")

	p, err := ParsePacket(data)
	require.NoError(t, err)

	got, ok := p.(*Message)
	require.True(t, ok)
	assert.True(t, msg.Equals(got), "got %v", got)
}

func TestMessageIntegerRoundTrip(t *testing.T) {
	for _, args := range [][]int32{{}, {0}, {0, 1, 2}, {-1, 255, 2147483647}} {
		msg := NewMessage("/OBSBOT/WebCam/General/SetZoom")
		for _, a := range args {
			msg.Append(a)
		}

		data, err := msg.MarshalBinary()
		require.NoError(t, err)
		p, err := ParsePacket(data)
		require.NoError(t, err)

		got := p.(*Message)
		assert.Equal(t, msg.Address, got.Address)
		require.Len(t, got.Arguments, len(args))
		for i, a := range args {
			assert.Equal(t, a, got.Arguments[i])
		}
	}
}

func TestMessageWireLayout(t *testing.T) {
	data, err := NewMessage("/ab", int32(1)).MarshalBinary()
	require.NoError(t, err)

	want := []byte{
		'/', 'a', 'b', 0,
		',', 'i', 0, 0,
		0, 0, 0, 1,
	}
	assert.Equal(t, want, data)
}

func TestMarshalUnsupportedType(t *testing.T) {
	_, err := NewMessage("/x", 42).MarshalBinary()
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestBundleRoundTrip(t *testing.T) {
	b := NewBundle(time.Now().Add(time.Hour))
	require.NoError(t, b.Append(NewMessage("/one", int32(1))))
	inner := NewBundle(time.Now())
	require.NoError(t, inner.Append(NewMessage("/two", "x")))
	require.NoError(t, b.Append(inner))

	data, err := b.MarshalBinary()
	require.NoError(t, err)

	p, err := ParsePacket(data)
	require.NoError(t, err)
	got, ok := p.(*Bundle)
	require.True(t, ok)

	assert.Equal(t, b.Timetag.TimeTag(), got.Timetag.TimeTag())
	msgs := Messages(got)
	require.Len(t, msgs, 2)
	assert.Equal(t, "/one", msgs[0].Address)
	assert.Equal(t, []interface{}{"x"}, msgs[1].Arguments)
}

func TestParsePacketMalformed(t *testing.T) {
	good, err := NewMessage("/zoom", int32(1), "abc").MarshalBinary()
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":          {},
		"garbage":        {0xff, 0x00, 0x00, 0x00},
		"unterminated":   []byte("/abc"),
		"truncated arg":  good[:len(good)-6],
		"bad tag string": {'/', 'a', 0, 0, 'x', 'i', 0, 0},
		"unknown tag":    {'/', 'a', 0, 0, ',', 'Q', 0, 0},
		"bad bundle":     append([]byte("#bundle\x00"), 1, 2),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePacket(data)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseMessageWithoutTypeTags(t *testing.T) {
	p, err := ParsePacket([]byte{'/', 'p', 'i', 'n', 'g', 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, "/ping", p.(*Message).Address)
	assert.Empty(t, p.(*Message).Arguments)
}

func TestTimetag(t *testing.T) {
	now := time.Unix(1700000000, 500000000)
	tt := NewTimetag(now)

	assert.Equal(t, uint32(1700000000+secondsFrom1900To1970), tt.SecondsSinceEpoch())
	assert.InDelta(t, float64(1<<31), float64(tt.FractionalSecond()), 2)
	assert.WithinDuration(t, now, NewTimetagFromTimetag(tt.TimeTag()).Time(), time.Microsecond)
	assert.Zero(t, NewTimetagFromTimetag(timeTagImmediate).ExpiresIn())
}

func TestMessageString(t *testing.T) {
	msg := NewMessage("/OBSBOT/WebCam/General/Connected", int32(0), "x", nil)
	assert.Equal(t, "/OBSBOT/WebCam/General/Connected ,isN 0 x Nil", msg.String())
}

func TestPrepend(t *testing.T) {
	msg := NewMessage("/a", int32(5), int32(6))
	msg.Prepend(int32(0))
	assert.Equal(t, []interface{}{int32(0), int32(5), int32(6)}, msg.Arguments)
}

func TestStreamConnRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	received := make(chan *Message, 1)
	srv := &TCPServer{Handler: func(sc *StreamConn, msg *Message) {
		received <- msg
		_ = sc.Send(NewMessage("/reply", int32(7)))
	}}
	go func() { _ = srv.Serve(ln) }()
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	sc := NewStreamConn(conn)
	defer sc.Close()

	// 0xC0 inside the payload exercises SLIP escaping.
	require.NoError(t, sc.Send(NewMessage("/hello", []byte{0xC0, 0xDB, 1})))

	select {
	case msg := <-received:
		assert.Equal(t, "/hello", msg.Address)
		assert.Equal(t, []byte{0xC0, 0xDB, 1}, msg.Arguments[0])
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the message")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	p, err := sc.Receive()
	require.NoError(t, err)
	assert.True(t, NewMessage("/reply", int32(7)).Equals(p.(*Message)))
}
