package policy

import "fmt"

// Three independent registries, one per category, matching the fact that
// spec.md §4.C's named algorithms are not symmetric across categories
// (see the package doc comment in policy.go for why this departs from
// rclone's single symmetric registry).
var (
	createRegistry = map[string]CreatePolicy{}
	searchRegistry = map[string]SearchPolicy{}
	actionRegistry = map[string]ActionPolicy{}
)

func registerCreate(p CreatePolicy) { createRegistry[p.Name()] = p }
func registerSearch(p SearchPolicy) { searchRegistry[p.Name()] = p }
func registerAction(p ActionPolicy) { actionRegistry[p.Name()] = p }

// GetCreate looks up a create policy by name.
func GetCreate(name string) (CreatePolicy, error) {
	p, ok := createRegistry[name]
	if !ok {
		return nil, fmt.Errorf("policy: unknown create policy %q", name)
	}
	return p, nil
}

// GetSearch looks up a search policy by name.
func GetSearch(name string) (SearchPolicy, error) {
	p, ok := searchRegistry[name]
	if !ok {
		return nil, fmt.Errorf("policy: unknown search policy %q", name)
	}
	return p, nil
}

// GetAction looks up an action policy by name.
func GetAction(name string) (ActionPolicy, error) {
	p, ok := actionRegistry[name]
	if !ok {
		return nil, fmt.Errorf("policy: unknown action policy %q", name)
	}
	return p, nil
}

// CreateNames returns the registered create-policy names.
func CreateNames() []string {
	return []string{"ff", "mfs", "lfs", "lus", "rand", "pfrd", "epff", "epmfs", "eplfs"}
}

// SearchNames returns the registered search-policy names.
func SearchNames() []string { return []string{"ff", "all", "newest"} }

// ActionNames returns the registered action-policy names.
func ActionNames() []string { return []string{"all", "epall", "epff"} }
