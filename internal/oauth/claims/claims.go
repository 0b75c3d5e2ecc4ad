// Package claims interprets identity gateway userinfo claims.
package claims

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// errorThreshold marks numeric claim values that carry an error code rather
// than a flag.
const errorThreshold = 10

// Process checks userinfo for each expected claim. Flags set to 1 or "true"
// yield the claim name, other strings yield "claim:value", numeric values of
// errorThreshold or more are returned as errors keyed by claim.
func Process(ctx context.Context, logger *slog.Logger, userinfo map[string]any, expected []string) ([]string, map[string]int) {
	var verified []string
	errs := map[string]int{}

	for _, claim := range expected {
		if claim == "" {
			continue
		}
		value, ok := userinfo[claim]
		if !ok || isEmpty(value) {
			logger.WarnContext(ctx, "userinfo did not contain claim", "claim", claim)
		}

		if n, isInt := asInt(value); isInt {
			switch {
			case n == 1:
				verified = append(verified, claim)
			case n >= errorThreshold:
				errs[claim] = n
			}
			continue
		}
		if s, isString := value.(string); isString {
			switch strings.ToLower(s) {
			case "true":
				verified = append(verified, claim)
			case "false":
			default:
				verified = append(verified, claim+":"+s)
			}
		}
	}
	return verified, errs
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	}
	return false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == math.Trunc(t) {
			return int(t), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Result is the parsed form of a verified claims string such as
// "fire email_verified email:ada@example.com".
type Result struct {
	names  map[string]bool
	values map[string]string
}

func Parse(verified string) Result {
	r := Result{names: map[string]bool{}, values: map[string]string{}}
	for _, field := range strings.Fields(verified) {
		name, value, found := strings.Cut(field, ":")
		r.names[name] = true
		if found {
			r.values[name] = value
		}
	}
	return r
}

// Has reports whether the claim was verified, with or without a value.
func (r Result) Has(claim string) bool {
	return r.names[claim]
}

func (r Result) Get(claim string) string {
	return r.values[claim]
}

func (r Result) Empty() bool {
	return len(r.names) == 0
}
