package core

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what happens to a project when its ingestion aborts.
type FailurePolicy string

const (
	// PolicyDestructive deletes the project (schema and bindings included)
	// after an aborted ingestion. Request-shape rejections never delete. In
	// reuse-existing mode only data and configuration aborts delete; parse and
	// storage failures leave the project and its table intact.
	PolicyDestructive FailurePolicy = "destructive"

	// PolicyRetain never deletes; the caller can fix data or rules and retry.
	PolicyRetain FailurePolicy = "retain"
)

// ParseFailurePolicy parses a policy name. Empty means PolicyDestructive.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyDestructive:
		return PolicyDestructive, nil
	case PolicyRetain:
		return PolicyRetain, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want destructive or retain)", s)
	}
}

// DeletesProject reports whether an abort of kind in mode deletes the project.
func (p FailurePolicy) DeletesProject(kind DiagnosticKind, mode IngestMode) bool {
	if p == PolicyRetain || kind == KindRequest {
		return false
	}
	if mode == ModeReuseExisting {
		switch kind {
		case KindSchemaMismatch, KindRuleConfiguration, KindRowErrors:
			return true
		default:
			return false
		}
	}
	return true
}
