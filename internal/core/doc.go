// Package core provides the business logic for validated dataset ingestion.
//
// This package holds all domain logic independent of any transport. It can
// be used by the web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around a few collaborators, leaf first:
//
//   - Rule Registry: named validators registered at init time, each with a
//     declared parameter schema. See [RuleRegistry] and [RegisterRule].
//   - Schema Matcher: exact set equality between declared and uploaded
//     columns. See [MatchSchema].
//   - Row Validator: evaluates every binding on every row and collects every
//     failure. See [RowValidator].
//   - Table Provisioner: derives the storage table from the schema and
//     creates or purges it. See [Provisioner].
//   - Ingestion: [Service.Ingest] sequences the above inside one transaction.
//
// # Rule Registry
//
// Built-in rules live in package rules and register themselves:
//
//	core.RegisterRule(core.Rule{
//	    Name:   "value-in-range",
//	    Params: []core.ParamSpec{{Name: "min", Type: core.ParamNumber}, {Name: "max", Type: core.ParamNumber}},
//	    Validate: validateRange,
//	})
//
// # Ingestion
//
// An ingestion either commits every row or none. When it aborts, the
// configured [FailurePolicy] decides whether the project is deleted. The
// default, [PolicyDestructive], deletes it after nearly every failure so the
// caller must declare it again.
//
// # Error Handling
//
// Aborts are reported as [*Diagnostic] values. Other errors are mapped to
// user-friendly messages with [MapError]; each category has a code for
// support reference (DB, VAL, FILE, UPL, RULE, PRJ).
package core
