// Package criteria decides whether a probe result counts as healthy.
package criteria

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"projectmonitor/internal/jsonpath"
	"projectmonitor/internal/models"
)

// Result is the outcome of evaluating a response against success criteria.
type Result struct {
	Up                  bool
	InvalidResponseBody bool
}

// Evaluate checks status and body against c. A nil status (transport failure)
// never matches. A failed body check can only turn Up false.
func Evaluate(c models.HealthCheckSuccessCriteria, status *int, body any) Result {
	var res Result
	if c.SuccessResponseBody != nil && !bodyMatches(*c.SuccessResponseBody, body) {
		res.InvalidResponseBody = true
	}
	res.Up = status != nil && slices.Contains(c.SuccessStatuses, *status) && !res.InvalidResponseBody
	return res
}

func bodyMatches(expected models.SuccessResponseBody, body any) bool {
	switch expected.Type {
	case models.BodyTypeString:
		return stringBodyMatches(expected, body)
	case models.BodyTypeJSON:
		return jsonBodyMatches(expected, body)
	default:
		return false
	}
}

func stringBodyMatches(expected models.SuccessResponseBody, body any) bool {
	s, isString := body.(string)
	if isString && !expected.ResponseBodyContains.IsZero() {
		all := true
		for _, fragment := range expected.ResponseBodyContains.Strings {
			if !strings.Contains(s, fragment) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	if expected.ResponseBodyEquals == nil {
		return false
	}
	return isString && s == *expected.ResponseBodyEquals
}

func jsonBodyMatches(expected models.SuccessResponseBody, body any) bool {
	_, isString := body.(string)
	if !expected.ResponseBodyContains.IsZero() && !isString {
		for _, want := range expected.ResponseBodyContains.Maps {
			got, found := jsonpath.Get(body, want.Property)
			if !found || !equalJSON(got, want.ExpectedValue) {
				return false
			}
		}
		return true
	}
	if expected.ResponseBodyEquals == nil {
		return false
	}
	// The expected document is compared by value, so key order and
	// escaping in the configured text do not matter.
	var want any
	if err := json.Unmarshal([]byte(*expected.ResponseBodyEquals), &want); err != nil {
		return false
	}
	return equalJSON(body, want)
}

// equalJSON compares two values by their JSON encoding, so numbers decoded
// from YAML (int) and JSON (float64) compare equal when they are the same
// number. encoding/json sorts map keys, which keeps objects comparable.
func equalJSON(a, b any) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}
