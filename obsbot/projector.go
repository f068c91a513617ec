package obsbot

import (
	"fmt"

	"github.com/showcontroller/obsbot-osc/osc"
)

// Addresses of the general command set shared by every OBSBOT product.
const (
	AddressConnected     = "/OBSBOT/WebCam/General/Connected"
	AddressConnectedResp = "/OBSBOT/WebCam/General/ConnectedResp"
	AddressGetDeviceInfo = "/OBSBOT/WebCam/General/GetDeviceInfo"
	AddressDeviceInfo    = "/OBSBOT/WebCam/General/DeviceInfo"
	AddressZoomInfo      = "/OBSBOT/WebCam/General/ZoomInfo"
	AddressGimbalPosInfo = "/OBSBOT/WebCam/General/GetGimbalPosInfoResp"
)

// projection is what one inbound message changes.
type projection struct {
	connected   bool
	values      map[string]interface{}
	definitions []VariableDefinition
	deviceCount int
	followUps   []*osc.Message
}

// projector decodes the known replies of a device into variables. It is
// used from the instance loop only.
type projector struct {
	routes      *osc.StandardDispatcher
	deviceCount int

	// scratch of the message being projected
	multi bool
	out   projection
	err   error
}

func newProjector() *projector {
	p := &projector{routes: osc.NewStandardDispatcher()}

	// Exact addresses never collide, so registration cannot fail.
	_ = p.routes.AddMsgHandler(AddressConnectedResp, p.onConnectedResp)
	_ = p.routes.AddMsgHandler(AddressDeviceInfo, p.onDeviceInfo)
	_ = p.routes.AddMsgHandler(AddressZoomInfo, p.onZoomInfo)
	_ = p.routes.AddMsgHandler(AddressGimbalPosInfo, p.onGimbalPosInfo)

	return p
}

// project returns the changes carried by msg. Unknown addresses produce an
// empty projection. On error nothing of msg may be applied.
func (p *projector) project(msg *osc.Message, multi bool) (projection, error) {
	p.multi = multi
	p.out = projection{}
	p.err = nil

	p.routes.Dispatch(msg)

	if p.err != nil {
		return projection{}, fmt.Errorf("%s: %w", msg.Address, p.err)
	}
	if p.out.definitions != nil {
		p.deviceCount = p.out.deviceCount
	}
	return p.out, nil
}

func (p *projector) onConnectedResp(*osc.Message) {
	p.out.connected = true
	p.out.followUps = append(p.out.followUps, osc.NewMessage(AddressGetDeviceInfo, int32(0)))
}

// onDeviceInfo decodes four (connected, name) pairs followed by the
// selected index, its run state and its device type. Hardware targets only
// report the first pair.
func (p *projector) onDeviceInfo(msg *osc.Message) {
	args := msg.Arguments

	count := 1
	if p.multi {
		count = maxDevices
	}

	type device struct {
		connected bool
		name      string
	}
	devices := make([]device, count)
	for i := range devices {
		flag, err := argInt(args, 2*i)
		if err != nil {
			p.err = err
			return
		}
		name, err := argString(args, 2*i+1)
		if err != nil {
			p.err = err
			return
		}
		devices[i] = device{connected: flag == 1, name: name}
	}

	values := make(map[string]interface{})
	if count > 1 {
		selected, err := argInt(args, 8)
		if err != nil {
			p.err = err
			return
		}
		if selected < 0 || selected >= count {
			p.err = fmt.Errorf("%w: selected device index %d", ErrDecode, selected)
			return
		}
		runState, err := argInt(args, 9)
		if err != nil {
			p.err = err
			return
		}
		deviceType, err := argInt(args, 10)
		if err != nil {
			p.err = err
			return
		}

		for i, d := range devices {
			values[fmt.Sprintf("device%d_connected", i+1)] = connectedLabel(d.connected)
			values[fmt.Sprintf("device%d_name", i+1)] = d.name
		}
		values["selected_index"] = selected
		values["selected_state"] = runStateLabel(runState)
		values["selected_type"] = DeviceTypeLabel(deviceType)
		values["selected_name"] = devices[selected].name
		values["selected_connected"] = connectedLabel(devices[selected].connected)
	} else {
		values["device_name"] = devices[0].name
	}

	p.out.values = values
	if count != p.deviceCount {
		p.out.definitions = DefinitionsFor(count)
		p.out.deviceCount = count
	}
}

func (p *projector) onZoomInfo(msg *osc.Message) {
	zoom, err := argInt(msg.Arguments, 0)
	if err != nil {
		p.err = err
		return
	}
	fov, err := argInt(msg.Arguments, 1)
	if err != nil {
		p.err = err
		return
	}

	p.out.values = map[string]interface{}{
		"zoom": zoom,
		"fov":  FOVLabel(fov),
	}
}

// onGimbalPosInfo decodes pitch and yaw. Roll is not reported.
func (p *projector) onGimbalPosInfo(msg *osc.Message) {
	pitch, err := argNumber(msg.Arguments, 0)
	if err != nil {
		p.err = err
		return
	}
	yaw, err := argNumber(msg.Arguments, 1)
	if err != nil {
		p.err = err
		return
	}

	p.out.values = map[string]interface{}{
		"gimbal_pitch": pitch,
		"gimbal_yaw":   yaw,
	}
}

// FOVLabel maps a field-of-view code to its label.
func FOVLabel(code int) string {
	switch code {
	case 0:
		return "86°"
	case 1:
		return "78°"
	case 2:
		return "65°"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}

// DeviceTypeLabel maps a device type code to a product name.
func DeviceTypeLabel(code int) string {
	switch code {
	case 0:
		return "Tiny"
	case 1:
		return "Tiny 4K"
	case 2:
		return "Meet"
	case 3:
		return "Meet 4K"
	case 5:
		return "Tail2"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}

func connectedLabel(connected bool) string {
	if connected {
		return "Connected"
	}
	return "Disconnected"
}

func runStateLabel(state int) string {
	if state == 1 {
		return "Run"
	}
	return "Sleep"
}

////
// Argument helpers
////

func argAt(args []interface{}, i int) (interface{}, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: missing argument %d", ErrDecode, i)
	}
	return args[i], nil
}

// argInt accepts any numeric OSC type. Floats are truncated.
func argInt(args []interface{}, i int) (int, error) {
	v, err := argAt(args, i)
	if err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float32:
		return int(t), nil
	case float64:
		return int(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: argument %d is %T, want integer", ErrDecode, i, v)
}

func argString(args []interface{}, i int) (string, error) {
	v, err := argAt(args, i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d is %T, want string", ErrDecode, i, v)
	}
	return s, nil
}

// argNumber keeps integers integral and widens floats to float64.
func argNumber(args []interface{}, i int) (interface{}, error) {
	v, err := argAt(args, i)
	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	}
	return nil, fmt.Errorf("%w: argument %d is %T, want number", ErrDecode, i, v)
}
