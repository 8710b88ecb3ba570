package access

import (
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/date"
)

// userTemplatePrefix marks expected values resolved against the subject's
// own attributes at evaluation time, e.g. "@user.department".
const userTemplatePrefix = "@user."

// ConditionResult is the outcome of evaluating a permission's condition list
type ConditionResult struct {
	Passed bool
	Failed []PermissionCondition
}

// EvaluateConditions applies AND semantics across the condition list. An
// empty list always passes. Evaluation never returns an error: a condition
// that cannot be decided fails closed.
func EvaluateConditions(conds []PermissionCondition, ctx *AuthorizationContext, subject *Subject) ConditionResult {
	res := ConditionResult{Passed: true}
	for _, c := range conds {
		if !evaluateCondition(c, ctx, subject) {
			res.Passed = false
			res.Failed = append(res.Failed, c)
		}
	}
	return res
}

func evaluateCondition(c PermissionCondition, ctx *AuthorizationContext, subject *Subject) bool {
	actual := contextValue(ctx, c.Field)
	expected := resolveExpected(c.Value, subject)

	// Missing data decides nothing. An absent context field or an
	// unresolvable template fails the condition for every operator,
	// not_equals included.
	if actual == nil || expected == nil {
		return false
	}

	switch c.Operator {
	case OpEquals:
		return valuesEqual(actual, expected)
	case OpNotEquals:
		return !valuesEqual(actual, expected)
	case OpIn:
		return inSet(actual, expected)
	case OpNotIn:
		set, ok := asSlice(expected)
		if !ok {
			return false
		}
		for _, item := range set {
			if valuesEqual(actual, item) {
				return false
			}
		}
		return true
	case OpGreaterThan:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp > 0
	case OpGreaterOrEqual:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp >= 0
	case OpLessThan:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp < 0
	case OpLessOrEqual:
		cmp, ok := compareOrdered(actual, expected)
		return ok && cmp <= 0
	case OpContains:
		return strings.Contains(stringify(actual), stringify(expected))
	case OpNotContains:
		return !strings.Contains(stringify(actual), stringify(expected))
	}
	// unknown operator: fail closed
	return false
}

// contextValue resolves the condition field against the fixed field
// dictionary, falling back to the context attribute bag.
func contextValue(ctx *AuthorizationContext, field string) any {
	switch field {
	case "department":
		if ctx.Department != "" {
			return ctx.Department
		}
	case "ownerId":
		if ctx.OwnerID != "" {
			return ctx.OwnerID
		}
	case "assignedTo":
		if ctx.AssignedTo != "" {
			return ctx.AssignedTo
		}
	case "type":
		if ctx.Type != "" {
			return ctx.Type
		}
	case "userId":
		if ctx.UserID != "" {
			return ctx.UserID
		}
	}
	if ctx.Attrs != nil {
		if v, ok := ctx.Attrs[field]; ok {
			return v
		}
	}
	return nil
}

// resolveExpected substitutes "@user.<attr>" templates against the subject.
// Slices are resolved element-wise so set operators accept templates too.
func resolveExpected(v any, subject *Subject) any {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, userTemplatePrefix) {
			if subject == nil {
				return nil
			}
			attr, ok := subject.Attribute(val[len(userTemplatePrefix):])
			if !ok {
				return nil
			}
			return attr
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveExpected(item, subject)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveExpected(item, subject)
		}
		return out
	}
	return v
}

func asSlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func inSet(actual, expected any) bool {
	set, ok := asSlice(expected)
	if !ok {
		return false
	}
	for _, item := range set {
		if valuesEqual(actual, item) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as == bs
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareOrdered orders two values when both are numeric, both are
// timestamps, or both are strings. Anything else is incomparable.
func compareOrdered(a, b any) (int, bool) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			}
			return 0, true
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		// timestamps in contexts and config arrive as strings; date.Parse
		// accepts RFC3339 plus the usual loose formats
		if !looksLikeTimestamp(t) {
			return time.Time{}, false
		}
		parsed, err := date.Parse(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// looksLikeTimestamp filters out plain words before handing the string to
// the flexible date parser, which is permissive about bare numbers.
func looksLikeTimestamp(s string) bool {
	if len(s) < 8 {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 6 && strings.ContainsAny(s, "-:/")
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
