// Package privacy provides column-level access modes and the rule policies
// that decide them at compile time.
package privacy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AccessMode is the access a caller has to a table or column.
type AccessMode uint8

// Access modes, ordered from weakest to strongest.
const (
	// None denies any access.
	None AccessMode = iota
	// ReadOnly allows reading.
	ReadOnly
	// Full allows reading and writing.
	Full
)

// String returns the string representation of the mode.
func (m AccessMode) String() string {
	switch m {
	case None:
		return "none"
	case ReadOnly:
		return "read-only"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("AccessMode(%d)", uint8(m))
	}
}

// Satisfies reports whether m grants at least the required access. Full
// requires write permission; ReadOnly requires at least read permission.
func (m AccessMode) Satisfies(required AccessMode) bool {
	return m >= required
}

// Min returns the weaker of two modes.
func Min(a, b AccessMode) AccessMode {
	if a < b {
		return a
	}
	return b
}

// ParseAccessMode parses a mode name as returned by String.
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "deny":
		return None, nil
	case "read-only", "readonly", "read":
		return ReadOnly, nil
	case "full", "write":
		return Full, nil
	}
	return None, fmt.Errorf("privacy: unknown access mode %q", s)
}

// MarshalYAML implements yaml.Marshaler.
func (m AccessMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *AccessMode) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseAccessMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Permissions is the permission source consumed by the compiler's
// validator. An empty column asks for the table-level mode.
type Permissions interface {
	AccessMode(table, column string) AccessMode
}

// PermissionsFunc type is an adapter to allow the use of ordinary functions
// as Permissions.
type PermissionsFunc func(table, column string) AccessMode

// AccessMode returns f(table, column).
func (f PermissionsFunc) AccessMode(table, column string) AccessMode {
	return f(table, column)
}

// AllowAll grants Full access to everything.
var AllowAll Permissions = PermissionsFunc(func(string, string) AccessMode { return Full })

// Policy decision sentinel errors.
//
// Rules return one of these to tell the policy how evaluation proceeds. Use
// errors.Is() to check for these values:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow terminates evaluation with Full access.
	Allow = errors.New("veloxql/privacy: allow rule")

	// AllowRead terminates evaluation with ReadOnly access.
	AllowRead = errors.New("veloxql/privacy: allow read rule")

	// Deny terminates evaluation with no access.
	Deny = errors.New("veloxql/privacy: deny rule")

	// Skip continues evaluation with the next rule in the chain.
	Skip = errors.New("veloxql/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// AllowReadf returns a formatted wrapped AllowRead decision.
func AllowReadf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, AllowRead)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// decisionMode maps a decision to an access mode. The second value is false
// for Skip, nil and errors that are not decisions.
func decisionMode(decision error) (AccessMode, bool) {
	switch {
	case decision == nil, errors.Is(decision, Skip):
		return None, false
	case errors.Is(decision, Deny):
		return None, true
	case errors.Is(decision, AllowRead):
		return ReadOnly, true
	case errors.Is(decision, Allow):
		return Full, true
	}
	return None, false
}

// Target identifies what access is evaluated for. Column is empty for
// table-level evaluation.
type Target struct {
	Table  string
	Column string
}

// String returns the target as table or table.column.
func (t Target) String() string {
	if t.Column == "" {
		return t.Table
	}
	return t.Table + "." + t.Column
}

// Rule decides the access mode of a target by returning a decision.
type Rule interface {
	EvalAccess(context.Context, Target) error
}

// RuleFunc type is an adapter which allows the use of ordinary functions as
// rules.
type RuleFunc func(context.Context, Target) error

// EvalAccess returns f(ctx, t).
func (f RuleFunc) EvalAccess(ctx context.Context, t Target) error {
	return f(ctx, t)
}

// AlwaysAllowRule returns a rule that always grants Full access.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always denies access.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// AlwaysReadOnlyRule returns a rule that always grants ReadOnly access.
func AlwaysReadOnlyRule() Rule {
	return fixedDecision{AllowRead}
}

// ContextRule creates a rule from a context evaluation function. Returning
// nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ Target) error {
		return eval(ctx)
	})
}

// OnTable evaluates the given rule only for targets of the given table.
func OnTable(table string, rule Rule) Rule {
	return RuleFunc(func(ctx context.Context, t Target) error {
		if t.Table == table {
			return rule.EvalAccess(ctx, t)
		}
		return Skip
	})
}

// OnColumn evaluates the given rule only for the given column.
func OnColumn(table, column string, rule Rule) Rule {
	return RuleFunc(func(ctx context.Context, t Target) error {
		if t.Table == table && t.Column == column {
			return rule.EvalAccess(ctx, t)
		}
		return Skip
	})
}

// Policy is an ordered list of rules. The first rule returning a decision
// other than Skip decides; if every rule skips, access is Full.
type Policy []Rule

// Eval evaluates the policy for a target. Errors that are not decisions are
// returned together with None.
func (p Policy) Eval(ctx context.Context, t Target) (AccessMode, error) {
	if decision, ok := DecisionFromContext(ctx); ok {
		mode, _ := decisionMode(decision)
		return mode, nil
	}
	for _, rule := range p {
		decision := rule.EvalAccess(ctx, t)
		if mode, ok := decisionMode(decision); ok {
			return mode, nil
		}
		if decision != nil && !errors.Is(decision, Skip) {
			return None, fmt.Errorf("privacy: evaluating %s: %w", t, decision)
		}
	}
	return Full, nil
}

// Permissions binds the policy to a context. Evaluation errors fail closed
// and report None.
func (p Policy) Permissions(ctx context.Context) Permissions {
	return PermissionsFunc(func(table, column string) AccessMode {
		mode, err := p.Eval(ctx, Target{Table: table, Column: column})
		if err != nil {
			return None
		}
		return mode
	})
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it. The decision overrides every policy
// evaluated with the returned context.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalAccess(context.Context, Target) error {
	return f.decision
}
