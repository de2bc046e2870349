package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// jqFilters is a set of compiled jq expressions that must all be truthy
// for a value to match.
type jqFilters []*gojq.Code

func compileFilters(exprs []string) (jqFilters, error) {
	filters := make(jqFilters, 0, len(exprs))
	for _, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
		filters = append(filters, code)
	}
	return filters, nil
}

// Match reports whether every filter yields a truthy first result for v.
// v is round-tripped through JSON so struct values see their wire field
// names.
func (f jqFilters) Match(v interface{}) (bool, error) {
	if len(f) == 0 {
		return true, nil
	}

	input, err := toJQInput(v)
	if err != nil {
		return false, err
	}

	for _, code := range f {
		iter := code.Run(input)
		out, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := out.(error); isErr {
			return false, fmt.Errorf("jq filter error: %w", err)
		}
		if !isTruthy(out) {
			return false, nil
		}
	}
	return true, nil
}

func toJQInput(v interface{}) (interface{}, error) {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case json.RawMessage:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode value for jq: %w", err)
		}
		raw = b
	}

	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("value is not valid JSON: %w", err)
	}
	return out, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
