package osc

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Dispatcher is the interface for an OSC message dispatcher. A dispatcher is
// responsible for dispatching received OSC packets.
type Dispatcher interface {
	Dispatch(packet Packet)
}

// Handler is the interface every handler for an OSC message implements.
type Handler interface {
	HandleMessage(msg *Message)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(msg *Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg *Message) {
	f(msg)
}

type route struct {
	pattern string
	exp     *regexp.Regexp
	handler Handler
}

// StandardDispatcher routes messages to handlers by address pattern.
// Handlers run in registration order on the caller's goroutine; only bundles
// with a future time tag are deferred.
type StandardDispatcher struct {
	routes []route
}

// NewStandardDispatcher returns a StandardDispatcher without handlers.
func NewStandardDispatcher() *StandardDispatcher {
	return &StandardDispatcher{}
}

// AddMsgHandler registers handler for the address pattern. The pattern may
// use the OSC wildcards '*', '?', '[]' and '{,}'.
func (d *StandardDispatcher) AddMsgHandler(pattern string, handler HandlerFunc) error {
	if strings.ContainsAny(pattern, "# ") {
		return errors.New("osc: address pattern may not contain '#' or ' '")
	}

	for _, r := range d.routes {
		if r.pattern == pattern {
			return errors.New("osc: address pattern exists already")
		}
	}

	exp, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	d.routes = append(d.routes, route{pattern: pattern, exp: exp, handler: handler})
	return nil
}

// Dispatch implements Dispatcher. Messages are handled synchronously.
// Bundles whose time tag lies in the future are handled once it is reached.
func (d *StandardDispatcher) Dispatch(packet Packet) {
	switch t := packet.(type) {
	case *Message:
		d.dispatchMessage(t)

	case *Bundle:
		wait := t.Timetag.ExpiresIn()
		if wait == 0 {
			for _, m := range Messages(t) {
				d.dispatchMessage(m)
			}
			return
		}
		time.AfterFunc(wait, func() {
			for _, m := range Messages(t) {
				d.dispatchMessage(m)
			}
		})
	}
}

// Match reports whether the address matches any registered pattern.
func (d *StandardDispatcher) Match(address string) bool {
	for _, r := range d.routes {
		if r.exp.MatchString(address) {
			return true
		}
	}
	return false
}

func (d *StandardDispatcher) dispatchMessage(msg *Message) {
	for _, r := range d.routes {
		if r.exp.MatchString(msg.Address) {
			r.handler.HandleMessage(msg)
		}
	}
}

// compilePattern compiles an anchored regular expression for the given
// address pattern.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")

	inGroup, inBracket := false, false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			sb.WriteString("[^/]*")
		case '?':
			sb.WriteString("[^/]")
		case '[':
			inBracket = true
			sb.WriteByte('[')
			if i+1 < len(pattern) && pattern[i+1] == '!' {
				sb.WriteByte('^')
				i++
			}
		case ']':
			inBracket = false
			sb.WriteByte(']')
		case '-':
			if inBracket {
				sb.WriteByte('-')
			} else {
				sb.WriteString("\\-")
			}
		case '{':
			inGroup = true
			sb.WriteString("(?:")
		case '}':
			inGroup = false
			sb.WriteByte(')')
		case ',':
			if inGroup {
				sb.WriteByte('|')
			} else {
				sb.WriteByte(',')
			}
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	// A lone "*" matches every address.
	if pattern == "*" {
		return regexp.Compile("^.*$")
	}

	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
