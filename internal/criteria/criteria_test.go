package criteria

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectmonitor/internal/models"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestEvaluateStatus(t *testing.T) {
	c := models.HealthCheckSuccessCriteria{SuccessStatuses: []int{200, 204}}

	tests := []struct {
		name   string
		status *int
		body   any
		up     bool
	}{
		{"member status", intPtr(200), "ok", true},
		{"second member", intPtr(204), nil, true},
		{"non member", intPtr(500), "ok", false},
		{"nil status", nil, "ok", false},
		{"nil status with json body", nil, map[string]any{"up": true}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := Evaluate(c, test.status, test.body)
			assert.Equal(t, test.up, res.Up)
			assert.False(t, res.InvalidResponseBody)
		})
	}
}

func TestEvaluateStringBody(t *testing.T) {
	tests := []struct {
		name    string
		body    models.SuccessResponseBody
		payload any
		invalid bool
	}{
		{
			name:    "all fragments present",
			body:    models.SuccessResponseBody{Type: "string", ResponseBodyContains: models.ResponseBodyContains{Strings: []string{"up", "running"}}},
			payload: "service is up and running",
		},
		{
			name:    "one fragment missing",
			body:    models.SuccessResponseBody{Type: "string", ResponseBodyContains: models.ResponseBodyContains{Strings: []string{"up", "healthy"}}},
			payload: "service is up and running",
			invalid: true,
		},
		{
			name: "contains fails but equals matches",
			body: models.SuccessResponseBody{
				Type:                 "string",
				ResponseBodyEquals:   strPtr("OK"),
				ResponseBodyContains: models.ResponseBodyContains{Strings: []string{"healthy"}},
			},
			payload: "OK",
		},
		{
			name:    "equals mismatch",
			body:    models.SuccessResponseBody{Type: "string", ResponseBodyEquals: strPtr("OK")},
			payload: "NOT OK",
			invalid: true,
		},
		{
			name:    "non string body",
			body:    models.SuccessResponseBody{Type: "string", ResponseBodyContains: models.ResponseBodyContains{Strings: []string{"ok"}}},
			payload: map[string]any{"ok": true},
			invalid: true,
		},
		{
			name: "empty contains list matches any string",
			body: models.SuccessResponseBody{
				Type:                 "string",
				ResponseBodyEquals:   strPtr("never"),
				ResponseBodyContains: models.ResponseBodyContains{Present: true},
			},
			payload: "whatever",
		},
		{
			name:    "empty contains list still needs a string",
			body:    models.SuccessResponseBody{Type: "string", ResponseBodyContains: models.ResponseBodyContains{Present: true}},
			payload: map[string]any{"ok": true},
			invalid: true,
		},
		{
			name:    "nothing configured",
			body:    models.SuccessResponseBody{Type: "string"},
			payload: "anything",
			invalid: true,
		},
		{
			name:    "unknown type",
			body:    models.SuccessResponseBody{Type: "xml", ResponseBodyEquals: strPtr("<ok/>")},
			payload: "<ok/>",
			invalid: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			body := test.body
			c := models.HealthCheckSuccessCriteria{SuccessStatuses: []int{200}, SuccessResponseBody: &body}
			res := Evaluate(c, intPtr(200), test.payload)
			assert.Equal(t, test.invalid, res.InvalidResponseBody)
			assert.Equal(t, !test.invalid, res.Up)
		})
	}
}

func TestEvaluateJSONContainsIsConjunction(t *testing.T) {
	payload := map[string]any{
		"status": "UP",
		"details": map[string]any{
			"db":      map[string]any{"status": "UP", "connections": float64(4)},
			"version": "1.2.3",
		},
	}

	tests := []struct {
		name    string
		maps    []models.JSONContainsMap
		invalid bool
	}{
		{
			name: "all entries match",
			maps: []models.JSONContainsMap{
				{Property: "status", ExpectedValue: "UP"},
				{Property: "details.db.status", ExpectedValue: "UP"},
				{Property: "details.db.connections", ExpectedValue: 4},
			},
		},
		{
			name: "one entry differs",
			maps: []models.JSONContainsMap{
				{Property: "status", ExpectedValue: "UP"},
				{Property: "details.version", ExpectedValue: "2.0.0"},
			},
			invalid: true,
		},
		{
			name: "missing intermediate key",
			maps: []models.JSONContainsMap{
				{Property: "details.cache.status", ExpectedValue: "UP"},
			},
			invalid: true,
		},
		{
			name: "object expectation",
			maps: []models.JSONContainsMap{
				{Property: "details.db", ExpectedValue: map[string]any{"connections": 4, "status": "UP"}},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := models.HealthCheckSuccessCriteria{
				SuccessStatuses: []int{200},
				SuccessResponseBody: &models.SuccessResponseBody{
					Type:                 "json",
					ResponseBodyContains: models.ResponseBodyContains{Maps: test.maps},
				},
			}
			res := Evaluate(c, intPtr(200), payload)
			assert.Equal(t, test.invalid, res.InvalidResponseBody)
			assert.Equal(t, !test.invalid, res.Up)
		})
	}
}

func TestEvaluateJSONEquals(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		response string
		invalid  bool
	}{
		{name: "sorted keys", expected: `{"a":1,"b":"two"}`, response: `{"a":1,"b":"two"}`},
		{name: "keys in server order", expected: `{"status":"ok","db":"up"}`, response: `{"status":"ok","db":"up"}`},
		{name: "html characters", expected: `{"msg":"a&b <c>"}`, response: `{"msg":"a&b <c>"}`},
		{name: "whitespace in expectation", expected: "{ \"status\": \"ok\",\n \"db\": \"up\" }", response: `{"status":"ok","db":"up"}`},
		{name: "array body", expected: `[1,"x",null]`, response: `[1, "x", null]`},
		{name: "different value", expected: `{"a":1}`, response: `{"a":2}`, invalid: true},
		{name: "extra property", expected: `{"a":1}`, response: `{"a":1,"b":2}`, invalid: true},
		{name: "expectation is not json", expected: `status ok`, response: `{"status":"ok"}`, invalid: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := models.HealthCheckSuccessCriteria{
				SuccessStatuses: []int{200},
				SuccessResponseBody: &models.SuccessResponseBody{
					Type:               "json",
					ResponseBodyEquals: strPtr(test.expected),
				},
			}
			var body any
			require.NoError(t, json.Unmarshal([]byte(test.response), &body))

			res := Evaluate(c, intPtr(200), body)
			assert.Equal(t, test.invalid, res.InvalidResponseBody)
			assert.Equal(t, !test.invalid, res.Up)
		})
	}
}

func TestEvaluateJSONEmptyContainsList(t *testing.T) {
	var body models.SuccessResponseBody
	require.NoError(t, json.Unmarshal([]byte(`{"type":"json","responseBodyContains":[],"responseBodyEquals":"{}"}`), &body))
	require.True(t, body.ResponseBodyContains.Present)

	c := models.HealthCheckSuccessCriteria{SuccessStatuses: []int{200}, SuccessResponseBody: &body}

	assert.True(t, Evaluate(c, intPtr(200), map[string]any{"anything": true}).Up)
	// A string body skips the list and falls back to equals.
	assert.False(t, Evaluate(c, intPtr(200), "plain").Up)
}

func TestEvaluateJSONContainsOnStringBodyFallsBackToEquals(t *testing.T) {
	c := models.HealthCheckSuccessCriteria{
		SuccessStatuses: []int{200},
		SuccessResponseBody: &models.SuccessResponseBody{
			Type:                 "json",
			ResponseBodyEquals:   strPtr(`"pong"`),
			ResponseBodyContains: models.ResponseBodyContains{Maps: []models.JSONContainsMap{{Property: "status", ExpectedValue: "UP"}}},
		},
	}

	assert.True(t, Evaluate(c, intPtr(200), "pong").Up)
	assert.False(t, Evaluate(c, intPtr(200), "ping").Up)
}

func TestEvaluateBodyCannotRescueBadStatus(t *testing.T) {
	c := models.HealthCheckSuccessCriteria{
		SuccessStatuses:     []int{200},
		SuccessResponseBody: &models.SuccessResponseBody{Type: "string", ResponseBodyEquals: strPtr("OK")},
	}

	res := Evaluate(c, intPtr(503), "OK")
	assert.False(t, res.Up)
	assert.False(t, res.InvalidResponseBody)

	res = Evaluate(c, nil, "OK")
	assert.False(t, res.Up)
}
