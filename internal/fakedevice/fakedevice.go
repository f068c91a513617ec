// Package fakedevice answers OBSBOT OSC queries the way a camera or the
// Center app does. It serves the integration tests and the fakedevice
// example.
package fakedevice

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/showcontroller/obsbot-osc/osc"
)

const (
	addrConnected     = "/OBSBOT/WebCam/General/Connected"
	addrConnectedResp = "/OBSBOT/WebCam/General/ConnectedResp"
	addrGetDeviceInfo = "/OBSBOT/WebCam/General/GetDeviceInfo"
	addrDeviceInfo    = "/OBSBOT/WebCam/General/DeviceInfo"
	addrGetZoomInfo   = "/OBSBOT/WebCam/General/GetZoomInfo"
	addrSetZoom       = "/OBSBOT/WebCam/General/SetZoom"
	addrZoomInfo      = "/OBSBOT/WebCam/General/ZoomInfo"
	addrGetGimbalPos  = "/OBSBOT/WebCam/General/GetGimbalPosInfo"
	addrGimbalPosResp = "/OBSBOT/WebCam/General/GetGimbalPosInfoResp"
)

// Camera is one slot of the DeviceInfo reply.
type Camera struct {
	Name      string
	Connected bool
}

// Device is a scripted OBSBOT endpoint. Fields may be set before serving;
// afterwards they are guarded by the device.
type Device struct {
	Cameras  []Camera
	Selected int
	Running  bool
	Type     int
	Zoom     int
	FOV      int
	Pitch    float32
	Yaw      float32
	Logger   *slog.Logger

	mu       sync.Mutex
	received []*osc.Message
}

// Respond records msg and returns the replies a real device would send.
func (d *Device) Respond(msg *osc.Message) []*osc.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.received = append(d.received, msg)

	switch msg.Address {
	case addrConnected:
		return []*osc.Message{osc.NewMessage(addrConnectedResp, int32(1))}
	case addrGetDeviceInfo:
		return []*osc.Message{d.deviceInfo()}
	case addrGetZoomInfo:
		return []*osc.Message{d.zoomInfo()}
	case addrSetZoom:
		if n := len(msg.Arguments); n > 0 {
			if z, ok := msg.Arguments[n-1].(int32); ok {
				d.Zoom = int(z)
			}
		}
		return []*osc.Message{d.zoomInfo()}
	case addrGetGimbalPos:
		return []*osc.Message{osc.NewMessage(addrGimbalPosResp, d.Pitch, d.Yaw, float32(0))}
	}
	return nil
}

// Received returns every message seen so far.
func (d *Device) Received() []*osc.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*osc.Message(nil), d.received...)
}

func (d *Device) deviceInfo() *osc.Message {
	msg := osc.NewMessage(addrDeviceInfo)
	for i := 0; i < 4; i++ {
		var c Camera
		if i < len(d.Cameras) {
			c = d.Cameras[i]
		}
		msg.Append(boolInt(c.Connected), c.Name)
	}
	msg.Append(int32(d.Selected), boolInt(d.Running), int32(d.Type))
	return msg
}

func (d *Device) zoomInfo() *osc.Message {
	return osc.NewMessage(addrZoomInfo, int32(d.Zoom), int32(d.FOV))
}

// ServeUDP answers datagrams on conn until it is closed.
func (d *Device) ServeUDP(conn net.PacketConn) error {
	buf := make([]byte, 65535)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		p, err := osc.ParsePacket(buf[:n])
		if err != nil {
			d.logger().Debug("dropping undecodable datagram", "error", err)
			continue
		}
		for _, m := range osc.Messages(p) {
			for _, reply := range d.Respond(m) {
				data, err := reply.MarshalBinary()
				if err != nil {
					d.logger().Error("failed to encode reply", "error", err)
					continue
				}
				if _, err := conn.WriteTo(data, from); err != nil {
					d.logger().Warn("failed to send reply", "to", from.String(), "error", err)
				}
			}
		}
	}
}

// TCPServer returns a SLIP stream server answering on addr.
func (d *Device) TCPServer(addr string) *osc.TCPServer {
	return &osc.TCPServer{
		Addr:   addr,
		Logger: d.logger(),
		Handler: func(sc *osc.StreamConn, msg *osc.Message) {
			for _, reply := range d.Respond(msg) {
				if err := sc.Send(reply); err != nil {
					d.logger().Warn("failed to send reply", "error", err)
					return
				}
			}
		},
	}
}

func (d *Device) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
