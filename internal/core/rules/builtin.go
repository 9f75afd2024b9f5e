// Package rules registers the built-in validation rules with the core registry.
// Import this package (usually blank) to make the rules resolvable.
package rules

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/validata/internal/core"
)

// Now is the clock used by date rules.
var Now = time.Now

func init() {
	Register(core.DefaultRules)
}

// Register adds every built-in rule to reg.
func Register(reg *core.RuleRegistry) {
	for _, r := range Builtin() {
		reg.Register(r)
	}
}

// Builtin returns the shipped rule set.
func Builtin() []core.Rule {
	return []core.Rule{
		{
			Name:        "not-empty",
			Description: "The value must be present and not blank",
			Aliases:     []string{"no_vacio"},
			Validate:    notEmpty,
		},
		{
			Name:        "positive-number",
			Description: "The value must be a number greater than zero",
			Aliases:     []string{"positivo"},
			Validate:    greaterThanZero,
		},
		{
			Name:        "greater-than-zero",
			Description: "The value must be greater than zero",
			Aliases:     []string{"mayor_a_cero"},
			Validate:    greaterThanZero,
		},
		{
			Name:        "value-in-range",
			Description: "The value must be a number between min and max, inclusive",
			Aliases:     []string{"rango"},
			Params: []core.ParamSpec{
				{Name: "min", Type: core.ParamNumber},
				{Name: "max", Type: core.ParamNumber},
			},
			Validate: valueInRange,
		},
		{
			Name:        "min-length",
			Description: "The value must have at least min characters",
			Aliases:     []string{"longitud_minima"},
			Params:      []core.ParamSpec{{Name: "min", Type: core.ParamInteger}},
			Validate:    minLength,
		},
		{
			Name:        "max-length",
			Description: "The value must have at most max characters",
			Aliases:     []string{"longitud_maxima"},
			Params:      []core.ParamSpec{{Name: "max", Type: core.ParamInteger}},
			Validate:    maxLength,
		},
		{
			Name:        "date-not-in-future",
			Description: "The value must be a YYYY-MM-DD date not later than today",
			Aliases:     []string{"no_futuro"},
			Validate:    dateNotInFuture,
		},
	}
}

// Missing cells pass every rule except not-empty.

func notEmpty(v core.Cell, _ core.Params) core.Outcome {
	if v.IsMissing() || strings.TrimSpace(v.String()) == "" {
		return core.Fail("value is empty")
	}
	return core.Pass()
}

func greaterThanZero(v core.Cell, _ core.Params) core.Outcome {
	if v.IsMissing() {
		return core.Pass()
	}
	f, ok := v.Float()
	if !ok {
		return core.Fail("%q is not a number", v.String())
	}
	if f <= 0 {
		return core.Fail("%s must be greater than zero", v.String())
	}
	return core.Pass()
}

func valueInRange(v core.Cell, p core.Params) core.Outcome {
	if v.IsMissing() {
		return core.Pass()
	}
	f, ok := v.Float()
	if !ok {
		return core.Fail("%q is not a number", v.String())
	}
	lo, _ := p.Float("min")
	hi, _ := p.Float("max")
	if f < lo || f > hi {
		return core.Fail("%s is outside [%v, %v]", v.String(), lo, hi)
	}
	return core.Pass()
}

func minLength(v core.Cell, p core.Params) core.Outcome {
	min, _ := p.Int("min")
	if v.IsMissing() {
		if min > 0 {
			return core.Fail("value is missing; minimum length is %d", min)
		}
		return core.Pass()
	}
	if n := utf8.RuneCountInString(v.String()); n < min {
		return core.Fail("length %d is below the minimum of %d", n, min)
	}
	return core.Pass()
}

func maxLength(v core.Cell, p core.Params) core.Outcome {
	if v.IsMissing() {
		return core.Pass()
	}
	max, _ := p.Int("max")
	if n := utf8.RuneCountInString(v.String()); n > max {
		return core.Fail("length %d exceeds the maximum of %d", n, max)
	}
	return core.Pass()
}

func dateNotInFuture(v core.Cell, _ core.Params) core.Outcome {
	if v.IsMissing() {
		return core.Pass()
	}
	d, err := core.ParseDate(v.String())
	if err != nil {
		return core.Fail("%v", err)
	}
	now := Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if d.After(today) {
		return core.Fail("%s is in the future", d.Format(core.DateLayout))
	}
	return core.Pass()
}
