package access

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseCondition parses the compact condition syntax used in config files
// into a PermissionCondition. The grammar is deliberately small:
//
//	<field> <op> <value>
//
// where op is one of ==, !=, >, >=, <, <=, in, not in, contains,
// not contains; value is a quoted string, a number, a "@user.<attr>"
// template, or a [a, b, c] list for the set operators.
func ParseCondition(s string) (PermissionCondition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PermissionCondition{}, fmt.Errorf("empty condition")
	}

	m := conditionRe.FindStringSubmatch(s)
	if m == nil {
		return PermissionCondition{}, fmt.Errorf("unsupported condition syntax: %s", s)
	}
	field := m[1]
	opToken := strings.ToLower(strings.Join(strings.Fields(m[2]), " "))
	rawValue := strings.TrimSpace(m[3])

	op, ok := operatorTokens[opToken]
	if !ok {
		return PermissionCondition{}, fmt.Errorf("unknown operator %q in condition: %s", opToken, s)
	}

	value, err := parseConditionValue(rawValue)
	if err != nil {
		return PermissionCondition{}, fmt.Errorf("condition %q: %w", s, err)
	}
	if op == OpIn || op == OpNotIn {
		if _, isList := value.([]any); !isList {
			return PermissionCondition{}, fmt.Errorf("operator %q needs a [list] value: %s", opToken, s)
		}
	}
	return PermissionCondition{Field: field, Operator: op, Value: value}, nil
}

var conditionRe = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9_.]*)\s+(==|!=|>=|<=|>|<|not\s+in|in|not\s+contains|contains)\s+(.+)$`)

var operatorTokens = map[string]ConditionOperator{
	"==":           OpEquals,
	"!=":           OpNotEquals,
	"in":           OpIn,
	"not in":       OpNotIn,
	">":            OpGreaterThan,
	">=":           OpGreaterOrEqual,
	"<":            OpLessThan,
	"<=":           OpLessOrEqual,
	"contains":     OpContains,
	"not contains": OpNotContains,
}

func parseConditionValue(raw string) (any, error) {
	if strings.HasPrefix(raw, "[") {
		if !strings.HasSuffix(raw, "]") {
			return nil, fmt.Errorf("unterminated list: %s", raw)
		}
		items := splitCSV(raw[1 : len(raw)-1])
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := parseScalar(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return parseScalar(raw)
}

func parseScalar(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty value")
	}
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') {
		if raw[len(raw)-1] != raw[0] {
			return nil, fmt.Errorf("unterminated string: %s", raw)
		}
		return raw[1 : len(raw)-1], nil
	}
	if strings.HasPrefix(raw, userTemplatePrefix) {
		return raw, nil
	}
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n, nil
	}
	// bare word: treat as a string literal
	return raw, nil
}

// splitCSV splits list items like `"a", "b"` or `a, b`, trimming quotes
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
