// Package obsbot controls OBSBOT cameras and the OBSBOT Center app over OSC.
//
// An Instance owns the connection configuration, the single socket to the
// device and the device state. All of them are mutated by one event loop
// (Run); Open, Send and Close only queue work for it and return at once.
package obsbot

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/showcontroller/obsbot-osc/osc"
)

// eventQueueSize bounds the work queued ahead of the loop.
const eventQueueSize = 256

type event interface{}

type openEvent struct{ cfg Config }

type sendEvent struct {
	address string
	args    []interface{}
	host    string
}

type closeEvent struct{ ack chan struct{} }

type readyEvent struct{ gen uint64 }

type failEvent struct {
	gen uint64
	err error
}

type messageEvent struct {
	gen uint64
	msg *osc.Message
}

// Options configures New.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
}

// Instance is one controlled OBSBOT target.
type Instance struct {
	logger   *slog.Logger
	observer Observer
	open     opener

	events chan event
	done   chan struct{}

	// owned by the loop
	cfg    Config
	socket Socket
	gen    uint64
	proj   *projector

	state *State

	mu        sync.RWMutex
	status    Status
	statusMsg string
}

// New returns an Instance. Nothing happens on the network until Run is
// started and Open is called.
func New(opts Options) *Instance {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Instance{
		logger:   logger.With("component", "obsbot"),
		observer: observer,
		open:     openSocket,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		proj:     newProjector(),
		state:    newState(),
		status:   StatusDisconnected,
	}
}

// Run processes events until ctx is cancelled, then closes the socket. It
// must be called exactly once.
func (in *Instance) Run(ctx context.Context) error {
	defer close(in.done)

	for {
		select {
		case <-ctx.Done():
			in.closeSocket()
			return nil
		case ev := <-in.events:
			in.handle(ev)
		}
	}
}

// Open replaces the configuration and (re)opens the socket. Any previous
// socket is closed first.
func (in *Instance) Open(cfg Config) {
	in.post(openEvent{cfg: cfg})
}

// Send queues an OSC command for the device. Failures are logged and never
// returned: a button press must not take the host down. host optionally
// overrides the UDP destination address.
func (in *Instance) Send(address string, args []interface{}, host ...string) {
	ev := sendEvent{address: address, args: append([]interface{}(nil), args...)}
	if len(host) > 0 {
		ev.host = host[0]
	}
	in.post(ev)
}

// Close closes the socket and waits until the loop has done so.
func (in *Instance) Close() {
	ack := make(chan struct{})
	in.post(closeEvent{ack: ack})
	select {
	case <-ack:
	case <-in.done:
	}
}

// Status returns the current status and its message.
func (in *Instance) Status() (Status, string) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.status, in.statusMsg
}

// State returns the device state.
func (in *Instance) State() *State {
	return in.state
}

func (in *Instance) post(ev event) {
	select {
	case in.events <- ev:
	case <-in.done:
		in.logger.Debug("instance stopped, dropping event")
	}
}

func (in *Instance) handle(ev event) {
	switch e := ev.(type) {
	case openEvent:
		in.handleOpen(e.cfg)
	case sendEvent:
		in.send(e.address, e.args, e.host)
	case closeEvent:
		in.closeSocket()
		in.setStatus(StatusDisconnected, "")
		close(e.ack)
	case readyEvent:
		in.handleReady(e.gen)
	case failEvent:
		in.handleFail(e.gen, e.err)
	case messageEvent:
		in.handleMessage(e.gen, e.msg)
	}
}

func (in *Instance) handleOpen(cfg Config) {
	in.closeSocket()

	in.cfg = cfg
	in.gen++
	in.proj = newProjector()

	if cfg.Verbose {
		in.logger.Debug("connecting to OBSBOT",
			"addr", cfg.Addr(),
			"transport", strings.ToUpper(string(cfg.Transport)))
	}
	in.setStatus(StatusConnecting, "")

	if err := cfg.Validate(); err != nil {
		in.logger.Error("cannot open socket", "error", err)
		in.setStatus(StatusConnectionFailure, err.Error())
		return
	}

	s, err := in.open(cfg, link{gen: in.gen, post: in.post}, in.logger)
	if err != nil {
		in.reportFailure(err)
		return
	}
	in.socket = s
}

// closeSocket drops the current socket. A failing close is only logged so
// that reconfiguration always goes on to open the next one.
func (in *Instance) closeSocket() {
	if in.socket == nil {
		return
	}
	if err := in.socket.Close(); err != nil {
		in.logger.Warn("failed to close previous socket", "error", err)
	}
	in.socket = nil
}

func (in *Instance) handleReady(gen uint64) {
	if gen != in.gen || in.socket == nil {
		return
	}

	switch in.cfg.Transport {
	case ProtocolTCP:
		in.logger.Info("TCP connection established", "addr", in.cfg.Addr())
		in.setStatus(StatusOK, "")
	default:
		// UDP has no connection; the device is reachable once it answers.
		in.logger.Info("UDP socket listening", "port", in.cfg.ListenPort)
	}

	in.send(AddressConnected, []interface{}{int32(0)}, "")
}

func (in *Instance) handleFail(gen uint64, err error) {
	if gen != in.gen {
		in.logger.Debug("ignoring error of a replaced socket", "error", err)
		return
	}
	in.reportFailure(err)
}

func (in *Instance) reportFailure(err error) {
	reason, known := describeError(err)
	if known {
		in.logger.Error("connection failure", "reason", reason, "error", err)
	} else {
		in.logger.Error("connection failure", "error", err)
	}
	in.setStatus(StatusConnectionFailure, reason)
}

func (in *Instance) handleMessage(gen uint64, msg *osc.Message) {
	if gen != in.gen || in.socket == nil {
		return
	}

	if in.cfg.Verbose {
		in.logger.Debug("processing message", "message", msg.String())
	}

	p, err := in.proj.project(msg, in.cfg.IsCenter())
	if err != nil {
		in.logger.Debug("failed to decode message", "error", err)
		return
	}

	if p.connected {
		in.logger.Info("connected to OBSBOT device successfully")
		in.setStatus(StatusOK, "")
	}
	if p.definitions != nil {
		in.state.setDefinitions(p.definitions)
		in.observer.DefinitionsChanged(p.definitions)
	}
	if len(p.values) > 0 {
		in.state.apply(p.values)
		in.observer.VariablesChanged(p.values)
	}
	for _, m := range p.followUps {
		in.send(m.Address, m.Arguments, "")
	}
}

// send frames and transmits one command. Center targets get the zero-based
// device index prepended to every command but the handshake.
func (in *Instance) send(address string, args []interface{}, host string) {
	if in.socket == nil {
		in.logger.Error("OSC socket is not open, cannot send command", "address", address)
		return
	}

	msg := osc.NewMessage(address)
	for _, a := range args {
		msg.Append(normalizeArg(a))
	}
	if in.cfg.IsCenter() && address != AddressConnected {
		msg.Prepend(int32(in.cfg.Device - 1))
	}

	if err := in.socket.Send(msg, host); err != nil {
		in.logger.Error("failed to send OSC", "address", address, "error", err)
		return
	}

	if in.cfg.Verbose {
		dst := in.cfg.Addr()
		if host != "" {
			dst = host
		}
		in.logger.Debug("sent",
			"message", msg.String(),
			"transport", strings.ToUpper(string(in.cfg.Transport)),
			"to", dst)
	}
}

func (in *Instance) setStatus(s Status, msg string) {
	in.mu.Lock()
	changed := in.status != s || in.statusMsg != msg
	in.status, in.statusMsg = s, msg
	in.mu.Unlock()

	if changed {
		in.observer.StatusChanged(s, msg)
	}
}

// normalizeArg turns plain Go ints into OSC int32 arguments.
func normalizeArg(a interface{}) interface{} {
	switch t := a.(type) {
	case int:
		return int32(t)
	case uint8:
		return int32(t)
	default:
		return a
	}
}
