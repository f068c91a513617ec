package obsbot

// Status is the connection status shown by the host.
type Status string

const (
	StatusConnecting        Status = "connecting"
	StatusOK                Status = "ok"
	StatusConnectionFailure Status = "connection_failure"
	StatusDisconnected      Status = "disconnected"
)

// Observer receives everything an Instance reports to its host. Calls are
// made from the instance loop and must not block.
type Observer interface {
	StatusChanged(status Status, message string)
	VariablesChanged(values map[string]interface{})
	DefinitionsChanged(defs []VariableDefinition)
}

type nopObserver struct{}

func (nopObserver) StatusChanged(Status, string)            {}
func (nopObserver) VariablesChanged(map[string]interface{}) {}
func (nopObserver) DefinitionsChanged([]VariableDefinition) {}
