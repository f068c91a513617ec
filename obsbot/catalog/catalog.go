// Package catalog holds the actions and presets each OBSBOT model supports
// and turns an action with its options into the OSC commands to send.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

var (
	// ErrUnknownModel is returned for a model id the catalog does not list.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownAction is returned for an action the model does not support.
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnknownPreset is returned for a preset the model does not support.
	ErrUnknownPreset = errors.New("unknown preset")

	// ErrInvalidOption is returned when an option value cannot be used.
	ErrInvalidOption = errors.New("invalid option")
)

// Model is one selectable device model.
type Model struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// Choice is one allowed value of a dropdown option.
type Choice struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// Option is a user-settable parameter of an action.
type Option struct {
	ID      string      `yaml:"id" json:"id"`
	Label   string      `yaml:"label" json:"label"`
	Default interface{} `yaml:"default" json:"default"`
	Min     *int        `yaml:"min,omitempty" json:"min,omitempty"`
	Max     *int        `yaml:"max,omitempty" json:"max,omitempty"`
	Choices []Choice    `yaml:"choices,omitempty" json:"choices,omitempty"`
}

// Condition gates a command or an argument on the value of an option.
type Condition struct {
	Option string   `yaml:"option" json:"option"`
	In     []string `yaml:"in,omitempty" json:"in,omitempty"`
	NotIn  []string `yaml:"not_in,omitempty" json:"not_in,omitempty"`
}

// Arg is the recipe of one integer argument: either an option value plus
// Offset, or the literal Value.
type Arg struct {
	Option string     `yaml:"option,omitempty" json:"option,omitempty"`
	Offset int        `yaml:"offset,omitempty" json:"offset,omitempty"`
	Value  *int       `yaml:"value,omitempty" json:"value,omitempty"`
	When   *Condition `yaml:"when,omitempty" json:"when,omitempty"`
}

// Step is one OSC command an action sends.
type Step struct {
	Address string     `yaml:"address" json:"address"`
	Args    []Arg      `yaml:"args,omitempty" json:"args,omitempty"`
	When    *Condition `yaml:"when,omitempty" json:"when,omitempty"`
}

// Action is a user-facing command. An action without models applies to
// every model.
type Action struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Models   []string `yaml:"models,omitempty" json:"-"`
	Options  []Option `yaml:"options,omitempty" json:"options,omitempty"`
	Commands []Step   `yaml:"commands" json:"-"`
}

// Invocation is an action with options, as referenced by a preset.
type Invocation struct {
	Action  string                 `yaml:"action" json:"action"`
	Options map[string]interface{} `yaml:"options,omitempty" json:"options,omitempty"`
}

// Preset is a button: Down runs on press, Up on release.
type Preset struct {
	ID       string       `yaml:"id" json:"id"`
	Name     string       `yaml:"name" json:"name"`
	Category string       `yaml:"category" json:"category"`
	Down     []Invocation `yaml:"down" json:"down"`
	Up       []Invocation `yaml:"up,omitempty" json:"up,omitempty"`
}

// Command is one OSC message ready for obsbot.Instance.Send.
type Command struct {
	Address string        `json:"address"`
	Args    []interface{} `json:"args"`
}

// Catalog is the full table of models, actions and presets.
type Catalog struct {
	Models  []Model  `yaml:"models"`
	Actions []Action `yaml:"actions"`
	Presets []Preset `yaml:"presets"`
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Load(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog: %v", err))
	}
	return c
})

// Default returns the embedded catalog.
func Default() *Catalog {
	return defaultCatalog()
}

// Load parses and checks a catalog.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// check rejects recipes that reference options their action does not
// declare, and actions listed twice for one model.
func (c *Catalog) check() error {
	seen := make(map[string]bool)
	for _, a := range c.Actions {
		for _, m := range c.modelsOf(a) {
			key := m + "/" + a.ID
			if seen[key] {
				return fmt.Errorf("action %s defined twice for %s", a.ID, m)
			}
			seen[key] = true
		}

		for _, s := range a.Commands {
			if s.When != nil && !a.hasOption(s.When.Option) {
				return fmt.Errorf("action %s: condition on undeclared option %q", a.ID, s.When.Option)
			}
			for _, arg := range s.Args {
				if arg.Value == nil && !a.hasOption(arg.Option) {
					return fmt.Errorf("action %s: argument uses undeclared option %q", a.ID, arg.Option)
				}
				if arg.When != nil && !a.hasOption(arg.When.Option) {
					return fmt.Errorf("action %s: condition on undeclared option %q", a.ID, arg.When.Option)
				}
			}
		}
	}
	return nil
}

func (c *Catalog) modelsOf(a Action) []string {
	if len(a.Models) > 0 {
		return a.Models
	}
	ids := make([]string, len(c.Models))
	for i, m := range c.Models {
		ids[i] = m.ID
	}
	return ids
}

// Model returns the model with the given id.
func (c *Catalog) Model(id string) (Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ActionsFor returns the actions model supports, in catalog order.
func (c *Catalog) ActionsFor(model string) ([]Action, error) {
	if _, ok := c.Model(model); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	var out []Action
	for _, a := range c.Actions {
		if a.appliesTo(model) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Action returns one action of model.
func (c *Catalog) Action(model, id string) (Action, error) {
	actions, err := c.ActionsFor(model)
	if err != nil {
		return Action{}, err
	}
	for _, a := range actions {
		if a.ID == id {
			return a, nil
		}
	}
	return Action{}, fmt.Errorf("%w: %s for %s", ErrUnknownAction, id, model)
}

// PresetsFor returns the presets whose every action model supports.
func (c *Catalog) PresetsFor(model string) ([]Preset, error) {
	if _, ok := c.Model(model); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	var out []Preset
	for _, p := range c.Presets {
		if c.presetAppliesTo(p, model) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Preset returns one preset of model.
func (c *Catalog) Preset(model, id string) (Preset, error) {
	presets, err := c.PresetsFor(model)
	if err != nil {
		return Preset{}, err
	}
	for _, p := range presets {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %s for %s", ErrUnknownPreset, id, model)
}

func (c *Catalog) presetAppliesTo(p Preset, model string) bool {
	for _, steps := range [][]Invocation{p.Down, p.Up} {
		for _, inv := range steps {
			if _, err := c.Action(model, inv.Action); err != nil {
				return false
			}
		}
	}
	return true
}

// Build returns the commands of one action. Options missing from options
// take their defaults.
func (c *Catalog) Build(model, actionID string, options map[string]interface{}) ([]Command, error) {
	a, err := c.Action(model, actionID)
	if err != nil {
		return nil, err
	}
	return a.Build(options)
}

// BuildPreset returns the commands of the down or up steps of a preset.
func (c *Catalog) BuildPreset(model, presetID string, down bool) ([]Command, error) {
	p, err := c.Preset(model, presetID)
	if err != nil {
		return nil, err
	}

	steps := p.Up
	if down {
		steps = p.Down
	}

	var out []Command
	for _, inv := range steps {
		cmds, err := c.Build(model, inv.Action, inv.Options)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", presetID, err)
		}
		out = append(out, cmds...)
	}
	return out, nil
}

func (a Action) appliesTo(model string) bool {
	if len(a.Models) == 0 {
		return true
	}
	for _, m := range a.Models {
		if m == model {
			return true
		}
	}
	return false
}

func (a Action) hasOption(id string) bool {
	_, ok := a.option(id)
	return ok
}

func (a Action) option(id string) (Option, bool) {
	for _, o := range a.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Build resolves the action's recipes against options.
func (a Action) Build(options map[string]interface{}) ([]Command, error) {
	values := make(map[string]string, len(a.Options))
	for _, o := range a.Options {
		v, ok := options[o.ID]
		if !ok || v == nil {
			v = o.Default
		}
		s, err := o.normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.ID, err)
		}
		values[o.ID] = s
	}

	var out []Command
	for _, step := range a.Commands {
		if !step.When.holds(values) {
			continue
		}

		cmd := Command{Address: step.Address, Args: []interface{}{}}
		for _, arg := range step.Args {
			if !arg.When.holds(values) {
				continue
			}
			if arg.Value != nil {
				cmd.Args = append(cmd.Args, int32(*arg.Value))
				continue
			}
			n, err := toInt(values[arg.Option])
			if err != nil {
				return nil, fmt.Errorf("%s: option %s: %w", a.ID, arg.Option, err)
			}
			cmd.Args = append(cmd.Args, int32(n+arg.Offset))
		}
		out = append(out, cmd)
	}
	return out, nil
}

// normalize checks v against the option and returns its canonical string
// form, which is what conditions and choices compare against.
func (o Option) normalize(v interface{}) (string, error) {
	s, err := optionString(v)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidOption, o.ID, err)
	}

	if len(o.Choices) > 0 {
		for _, c := range o.Choices {
			if c.ID == s {
				return s, nil
			}
		}
		return "", fmt.Errorf("%w: %s: %q is not one of the choices", ErrInvalidOption, o.ID, s)
	}

	if o.Min == nil && o.Max == nil {
		return s, nil
	}
	n, err := toInt(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidOption, o.ID, err)
	}
	if (o.Min != nil && n < *o.Min) || (o.Max != nil && n > *o.Max) {
		return "", fmt.Errorf("%w: %s: %d out of range %s", ErrInvalidOption, o.ID, n, o.rangeString())
	}
	return s, nil
}

func (o Option) rangeString() string {
	lo, hi := "", ""
	if o.Min != nil {
		lo = strconv.Itoa(*o.Min)
	}
	if o.Max != nil {
		hi = strconv.Itoa(*o.Max)
	}
	return lo + ".." + hi
}

func (cond *Condition) holds(values map[string]string) bool {
	if cond == nil {
		return true
	}
	v := values[cond.Option]
	if len(cond.In) > 0 && !contains(cond.In, v) {
		return false
	}
	return !contains(cond.NotIn, v)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// optionString accepts the value shapes options arrive in: YAML and form
// strings, YAML ints and JSON numbers.
func optionString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.Itoa(int(t)), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("unsupported value type %T", v)
}

// toInt truncates like the device firmware expects: "12.5" is 12.
func toInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return int(f), nil
}
