// Copyright 2013 - 2015 Sebastian Ruml <sebastian.ruml@gmail.com>

/*
Package osc encodes and decodes OpenSoundControl packets.

The implementation is based on the Open Sound Control 1.0 Specification
(http://opensoundcontrol.org/spec-1_0), with the SLIP stream framing of
OSC 1.1 for TCP transports.

An OSC packet consists of its contents, a contiguous block of binary data,
and its size, the number of 8-bit bytes that comprise the contents. The
size of an OSC packet is always a multiple of 4.

OSC packets come in two flavors:

OSC Messages: An OSC message consists of an OSC address pattern, followed
by an OSC Type Tag String, and finally by zero or more OSC arguments.

OSC Bundles: An OSC Bundle consists of the string "#bundle" followed
by an OSC Time Tag, followed by zero or more OSC bundle elements. Each bundle
element can be another OSC bundle or OSC message. A bundle element consists
of its size (an int32) and its contents.

The following argument types are supported: 'i' (int32), 'f' (float32),
's' (string), 'b' (blob / []byte), 'h' (int64), 't' (Timetag),
'd' (float64), 'T' (true), 'F' (false), 'N' (nil).

Dispatcher address patterns support the '*', '?', '{,}' and '[]' wildcards.

Usage

Encoding a message:

    msg := osc.NewMessage("/OBSBOT/WebCam/General/SetZoom", int32(50))
    data, err := msg.MarshalBinary()

Decoding a datagram:

    packet, err := osc.ParsePacket(data)
    for _, m := range osc.Messages(packet) {
        fmt.Println(m)
    }

Routing messages by address:

    d := osc.NewStandardDispatcher()
    d.AddMsgHandler("/OBSBOT/WebCam/General/*", func(msg *osc.Message) {
        fmt.Println(msg)
    })
    d.Dispatch(packet)

Sending over a TCP stream:

    conn, _ := net.Dial("tcp", "192.168.0.1:57110")
    sc := osc.NewStreamConn(conn)
    sc.Send(osc.NewMessage("/OBSBOT/WebCam/General/Connected", int32(0)))
*/
package osc
