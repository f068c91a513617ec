package obsbot

import (
	"fmt"
	"sync"
)

// maxDevices is the number of cameras a DeviceInfo reply describes.
const maxDevices = 4

// VariableDefinition names one state variable exposed to the host.
type VariableDefinition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefinitionsFor returns the variables that exist when deviceCount devices
// are known. More than one device exposes per-device and selected-device
// variables, exactly one exposes only its name.
func DefinitionsFor(deviceCount int) []VariableDefinition {
	var defs []VariableDefinition

	switch {
	case deviceCount > 1:
		for i := 1; i <= deviceCount; i++ {
			defs = append(defs,
				VariableDefinition{ID: fmt.Sprintf("device%d_connected", i), Name: fmt.Sprintf("Device %d Connected", i)},
				VariableDefinition{ID: fmt.Sprintf("device%d_name", i), Name: fmt.Sprintf("Device %d Name", i)},
			)
		}
		defs = append(defs,
			VariableDefinition{ID: "selected_index", Name: "Selected Device Index"},
			VariableDefinition{ID: "selected_state", Name: "Selected Device Run State"},
			VariableDefinition{ID: "selected_type", Name: "Selected Device Type"},
			VariableDefinition{ID: "selected_name", Name: "Selected Device Name"},
			VariableDefinition{ID: "selected_connected", Name: "Selected Device Connected"},
		)
	case deviceCount == 1:
		defs = append(defs, VariableDefinition{ID: "device_name", Name: "Device Name"})
	}

	return append(defs,
		VariableDefinition{ID: "zoom", Name: "Zoom Level"},
		VariableDefinition{ID: "fov", Name: "Field of View"},
		VariableDefinition{ID: "gimbal_pitch", Name: "Gimbal Pitch"},
		VariableDefinition{ID: "gimbal_yaw", Name: "Gimbal Yaw"},
	)
}

// State holds the last known value of every variable. Writes come only from
// the instance loop; reads may come from any goroutine.
type State struct {
	mu     sync.RWMutex
	values map[string]interface{}
	defs   []VariableDefinition
}

func newState() *State {
	return &State{
		values: make(map[string]interface{}),
		defs:   DefinitionsFor(0),
	}
}

// Get returns the value of one variable.
func (s *State) Get(name string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Values returns a copy of all variables.
func (s *State) Values() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Definitions returns the current variable definitions.
func (s *State) Definitions() []VariableDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]VariableDefinition(nil), s.defs...)
}

// apply merges values in one step so readers never see half an update.
func (s *State) apply(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
}

func (s *State) setDefinitions(defs []VariableDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = defs
}
