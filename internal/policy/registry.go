package policy

// Registry of named policies. Course snapshots may reference a policy by
// name instead of carrying inline cutoffs.
var registry = map[string]Policy{}

// Register binds a policy to a name like "letter" or "pass".
func Register(name string, p Policy) { registry[name] = p }

// Lookup returns a registered policy by name.
func Lookup(name string) (Policy, bool) { p, ok := registry[name]; return p, ok }

func init() {
	Register("letter", Policy{Name: "letter", Cutoffs: []Cutoff{
		{Label: "A", Min: 0.9},
		{Label: "B", Min: 0.8},
		{Label: "C", Min: 0.7},
		{Label: "D", Min: 0.6},
	}})
	Register("pass", Policy{Name: "pass", Cutoffs: []Cutoff{
		{Label: "Pass", Min: 0.5},
	}})
}
