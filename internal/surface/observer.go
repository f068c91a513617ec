package surface

import (
	"github.com/showcontroller/obsbot-osc/internal/pubsub"
	"github.com/showcontroller/obsbot-osc/obsbot"
)

// StatusEvent is published on pubsub.TopicStatus.
type StatusEvent struct {
	Status  obsbot.Status `json:"status"`
	Message string        `json:"message,omitempty"`
}

// Publisher is an obsbot.Observer that republishes every report on ps.
type Publisher struct {
	ps *pubsub.PubSub
}

// NewPublisher returns a Publisher for ps.
func NewPublisher(ps *pubsub.PubSub) *Publisher {
	return &Publisher{ps: ps}
}

func (p *Publisher) StatusChanged(status obsbot.Status, message string) {
	p.ps.Publish(pubsub.TopicStatus, StatusEvent{Status: status, Message: message})
}

func (p *Publisher) VariablesChanged(values map[string]interface{}) {
	p.ps.Publish(pubsub.TopicVariables, values)
}

func (p *Publisher) DefinitionsChanged(defs []obsbot.VariableDefinition) {
	p.ps.Publish(pubsub.TopicDefinitions, defs)
}
