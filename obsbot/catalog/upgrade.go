package catalog

// upgrades rewrite the options of invocations saved by older releases. They
// run in order and each reports whether it changed anything.
var upgrades = []func(inv *Invocation) bool{
	// The Tiny AI mode action gained a camera option with Tiny 3 support.
	// Saved invocations predate Tiny 3 and keep driving a Tiny 2.
	func(inv *Invocation) bool {
		if inv.Action != "OBSBOT_CENTER_TINY_aiMode" {
			return false
		}
		if _, ok := inv.Options["camera"]; ok {
			return false
		}
		if inv.Options == nil {
			inv.Options = make(map[string]interface{})
		}
		inv.Options["camera"] = "tiny2"
		return true
	},
}

// Upgrade brings saved invocations up to date in place and reports whether
// any of them changed.
func Upgrade(invs []Invocation) bool {
	changed := false
	for i := range invs {
		for _, up := range upgrades {
			if up(&invs[i]) {
				changed = true
			}
		}
	}
	return changed
}
