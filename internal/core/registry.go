package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrRuleNotFound is returned when a binding names a rule nobody registered.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleNotCallable is returned when a registered rule has no validate entry point.
	ErrRuleNotCallable = errors.New("rule has no validator")
)

// ParamType is the expected type of a rule parameter.
type ParamType string

const (
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamString  ParamType = "string"
)

// ParamSpec declares one parameter a rule accepts besides the value under test.
type ParamSpec struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Optional bool      `json:"optional,omitempty"`
}

// Params is the parameter bundle of a rule binding.
type Params map[string]any

// Float returns a numeric parameter.
func (p Params) Float(name string) (float64, bool) {
	return toFloat(p[name])
}

// Int returns an integral parameter that fits in an int.
func (p Params) Int(name string) (int, bool) {
	return toInt(p[name])
}

// String returns a string parameter.
func (p Params) String(name string) (string, bool) {
	s, ok := p[name].(string)
	return s, ok
}

// toInt accepts integral numbers in the int range. float64(math.MaxInt)
// rounds up to 2^63, so the upper bound is exclusive.
func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || f < math.MinInt || f >= float64(math.MaxInt) {
		return 0, false
	}
	return int(f), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Outcome is the result of evaluating a rule against one cell.
type Outcome struct {
	Valid   bool
	Message string
}

// Pass is the valid outcome.
func Pass() Outcome { return Outcome{Valid: true} }

// Fail is an invalid outcome with the rule's own explanation.
func Fail(format string, args ...any) Outcome {
	return Outcome{Message: fmt.Sprintf(format, args...)}
}

// ValidateFunc evaluates a rule against a cell value.
type ValidateFunc func(value Cell, params Params) Outcome

// Rule is a statically registered validation rule.
type Rule struct {
	Name        string
	Description string
	Params      []ParamSpec
	Aliases     []string
	Validate    ValidateFunc
}

// RequiredParams returns the names of the non-optional parameters.
func (r Rule) RequiredParams() []string {
	var names []string
	for _, p := range r.Params {
		if !p.Optional {
			names = append(names, p.Name)
		}
	}
	return names
}

// CheckParams returns the required parameters absent from params and the
// supplied parameters whose type does not match the declaration.
func (r Rule) CheckParams(params Params) (missing, invalid []string) {
	for _, ps := range r.Params {
		v, ok := params[ps.Name]
		if !ok || v == nil {
			if !ps.Optional {
				missing = append(missing, ps.Name)
			}
			continue
		}
		if !paramMatches(ps.Type, v) {
			invalid = append(invalid, ps.Name)
		}
	}
	return missing, invalid
}

func paramMatches(t ParamType, v any) bool {
	switch t {
	case ParamNumber:
		_, ok := toFloat(v)
		return ok
	case ParamInteger:
		_, ok := toInt(v)
		return ok
	case ParamString:
		_, ok := v.(string)
		return ok
	default:
		return true
	}
}

// RuleRegistry maps rule names to validators. It is populated at process
// start and read concurrently afterwards.
type RuleRegistry struct {
	mu      sync.RWMutex
	rules   map[string]Rule
	aliases map[string]string
}

// NewRuleRegistry returns an empty registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		rules:   make(map[string]Rule),
		aliases: make(map[string]string),
	}
}

// DefaultRules holds the built-in rules registered by package rules.
var DefaultRules = NewRuleRegistry()

// RegisterRule adds a rule to DefaultRules.
// Panics if the name or one of its aliases is already taken.
func RegisterRule(r Rule) {
	DefaultRules.Register(r)
}

// Register adds a rule to the registry.
// Panics if the name or one of its aliases is already taken.
func (reg *RuleRegistry) Register(r Rule) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	name := normalizeName(r.Name)
	if name == "" {
		panic("rule registered without a name")
	}
	if reg.taken(name) {
		panic(fmt.Sprintf("rule already registered: %s", name))
	}
	r.Name = name
	reg.rules[name] = r

	for _, a := range r.Aliases {
		a = normalizeName(a)
		if reg.taken(a) {
			panic(fmt.Sprintf("rule alias already registered: %s", a))
		}
		reg.aliases[a] = name
	}
}

func (reg *RuleRegistry) taken(name string) bool {
	if _, ok := reg.rules[name]; ok {
		return true
	}
	_, ok := reg.aliases[name]
	return ok
}

// Resolve returns the rule registered under name or one of its aliases.
func (reg *RuleRegistry) Resolve(name string) (Rule, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	key := normalizeName(name)
	if canonical, ok := reg.aliases[key]; ok {
		key = canonical
	}

	r, ok := reg.rules[key]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrRuleNotFound, name)
	}
	if r.Validate == nil {
		return Rule{}, fmt.Errorf("%w: %q", ErrRuleNotCallable, name)
	}
	return r, nil
}

// RequiredParams returns the required parameter names of the named rule.
func (reg *RuleRegistry) RequiredParams(name string) ([]string, error) {
	r, err := reg.Resolve(name)
	if err != nil {
		return nil, err
	}
	return r.RequiredParams(), nil
}

// Has reports whether name resolves to a registered rule.
func (reg *RuleRegistry) Has(name string) bool {
	_, err := reg.Resolve(name)
	return err == nil
}

// All returns the registered rules sorted by name.
func (reg *RuleRegistry) All() []Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	result := make([]Rule, 0, len(reg.rules))
	for _, r := range reg.rules {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Definitions returns the catalog rows describing the registered rules.
func (reg *RuleRegistry) Definitions() []RuleDefinition {
	rules := reg.All()
	defs := make([]RuleDefinition, len(rules))
	for i, r := range rules {
		desc := r.Description
		if req := r.RequiredParams(); len(req) > 0 {
			desc = fmt.Sprintf("%s (params: %s)", desc, strings.Join(req, ", "))
		}
		defs[i] = RuleDefinition{Name: r.Name, Description: desc}
	}
	return defs
}

// Count returns the number of registered rules, aliases excluded.
func (reg *RuleRegistry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rules)
}
