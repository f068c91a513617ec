package obsbot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showcontroller/obsbot-osc/osc"
)

func TestFOVLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "86°"},
		{1, "78°"},
		{2, "65°"},
		{3, "Unknown (3)"},
		{-1, "Unknown (-1)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FOVLabel(tt.code))
	}
}

func TestDeviceTypeLabel(t *testing.T) {
	assert.Equal(t, "Tiny", DeviceTypeLabel(0))
	assert.Equal(t, "Tiny 4K", DeviceTypeLabel(1))
	assert.Equal(t, "Meet", DeviceTypeLabel(2))
	assert.Equal(t, "Meet 4K", DeviceTypeLabel(3))
	assert.Equal(t, "Unknown (4)", DeviceTypeLabel(4))
	assert.Equal(t, "Tail2", DeviceTypeLabel(5))
}

func TestProjectConnectedResp(t *testing.T) {
	p := newProjector()

	out, err := p.project(osc.NewMessage(AddressConnectedResp), false)
	require.NoError(t, err)

	assert.True(t, out.connected)
	require.Len(t, out.followUps, 1)
	assert.Equal(t, AddressGetDeviceInfo, out.followUps[0].Address)
	assert.Equal(t, []interface{}{int32(0)}, out.followUps[0].Arguments)
}

func TestProjectHandshakeAddressIsNotAReply(t *testing.T) {
	p := newProjector()

	out, err := p.project(osc.NewMessage(AddressConnected, int32(0)), false)
	require.NoError(t, err)
	assert.False(t, out.connected)
	assert.Empty(t, out.followUps)
}

func TestProjectSingleDeviceInfo(t *testing.T) {
	p := newProjector()
	msg := osc.NewMessage(AddressDeviceInfo, int32(1), "Tail Air", int32(1), "ignored")

	out, err := p.project(msg, false)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"device_name": "Tail Air"}, out.values)
	assert.Equal(t, DefinitionsFor(1), out.definitions)

	out, err = p.project(msg, false)
	require.NoError(t, err)
	assert.Nil(t, out.definitions, "unchanged device count keeps the definitions")
}

func TestProjectMultiDeviceInfo(t *testing.T) {
	p := newProjector()
	msg := osc.NewMessage(AddressDeviceInfo,
		int32(1), "A", int32(1), "B", int32(0), "C", int32(0), "D",
		int32(1), int32(0), int32(2))

	out, err := p.project(msg, true)
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"device1_connected":  "Connected",
		"device1_name":       "A",
		"device2_connected":  "Connected",
		"device2_name":       "B",
		"device3_connected":  "Disconnected",
		"device3_name":       "C",
		"device4_connected":  "Disconnected",
		"device4_name":       "D",
		"selected_index":     1,
		"selected_state":     "Sleep",
		"selected_type":      "Meet",
		"selected_name":      "B",
		"selected_connected": "Connected",
	}, out.values)
	assert.Equal(t, DefinitionsFor(4), out.definitions)
}

func TestProjectDeviceInfoErrors(t *testing.T) {
	pairs := []interface{}{int32(1), "A", int32(1), "B", int32(0), "C", int32(0), "D"}

	tests := []struct {
		name string
		args []interface{}
	}{
		{"missing pairs", []interface{}{int32(1), "A"}},
		{"missing selected index", pairs},
		{"selected index out of range", append(append([]interface{}{}, pairs...), int32(4), int32(1), int32(0))},
		{"name is not a string", []interface{}{int32(1), int32(7), int32(1), "B", int32(0), "C", int32(0), "D", int32(0), int32(1), int32(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProjector()
			out, err := p.project(osc.NewMessage(AddressDeviceInfo, tt.args...), true)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))
			assert.Nil(t, out.values)
			assert.Nil(t, out.definitions)
		})
	}
}

func TestProjectFailedDeviceInfoKeepsDeviceCount(t *testing.T) {
	p := newProjector()

	_, err := p.project(osc.NewMessage(AddressDeviceInfo), false)
	require.Error(t, err)

	out, err := p.project(osc.NewMessage(AddressDeviceInfo, int32(1), "Tail 2"), false)
	require.NoError(t, err)
	assert.NotNil(t, out.definitions)
}

func TestProjectZoomInfo(t *testing.T) {
	p := newProjector()

	out, err := p.project(osc.NewMessage(AddressZoomInfo, int32(55), int32(7)), false)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"zoom": 55, "fov": "Unknown (7)"}, out.values)

	_, err = p.project(osc.NewMessage(AddressZoomInfo, int32(55)), false)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestProjectGimbalPos(t *testing.T) {
	p := newProjector()

	out, err := p.project(osc.NewMessage(AddressGimbalPosInfo, float32(-12.5), int32(40), float32(0)), false)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"gimbal_pitch": -12.5, "gimbal_yaw": 40}, out.values)

	_, err = p.project(osc.NewMessage(AddressGimbalPosInfo, "up", "left"), false)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestProjectUnknownAddress(t *testing.T) {
	p := newProjector()

	out, err := p.project(osc.NewMessage("/OBSBOT/WebCam/General/SomethingElse", int32(1)), false)
	require.NoError(t, err)
	assert.Equal(t, projection{}, out)
}

func TestArgIntAcceptsBooleans(t *testing.T) {
	v, err := argInt([]interface{}{true}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = argInt([]interface{}{float32(2.9)}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
