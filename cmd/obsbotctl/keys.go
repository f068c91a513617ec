package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/eiannone/keyboard"

	"github.com/showcontroller/obsbot-osc/obsbot/catalog"
)

// actionRunner runs catalog actions against the instance.
type actionRunner interface {
	RunAction(id string, options map[string]interface{}) error
}

// runKeys reads keys from the terminal and runs the bound invocations until
// ESC or Ctrl-C is pressed.
func runKeys(r actionRunner, bindings map[string]catalog.Invocation) error {
	if err := keyboard.Open(); err != nil {
		return err
	}
	defer keyboard.Close()

	printBindings(bindings)

	for {
		char, key, err := keyboard.GetKey()
		if err != nil {
			return err
		}

		switch key {
		case keyboard.KeyEsc, keyboard.KeyCtrlC:
			return nil
		case keyboard.KeySpace:
			char = ' '
		}

		inv, ok := bindings[string(char)]
		if !ok {
			continue
		}
		if err := r.RunAction(inv.Action, inv.Options); err != nil {
			slog.Warn("key action failed", "key", string(char), "action", inv.Action, "error", err)
		}
	}
}

func printBindings(bindings map[string]catalog.Invocation) {
	keys := make([]string, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// raw mode: lines need an explicit carriage return
	fmt.Print("Press ESC to quit\r\n")
	for _, k := range keys {
		fmt.Printf("  %q  %s\r\n", k, bindings[k].Action)
	}
}
