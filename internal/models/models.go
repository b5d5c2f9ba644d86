package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Supported health check HTTP methods.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
	MethodPut  = "PUT"
)

// Response body match types.
const (
	BodyTypeString = "string"
	BodyTypeJSON   = "json"
)

// TokenTypeBearer is the only supported general token type.
const TokenTypeBearer = "Bearer"

// Project is a monitored unit with its own health checks and dependent projects.
type Project struct {
	Name           string        `yaml:"name" json:"name"`
	Description    string        `yaml:"description,omitempty" json:"description,omitempty"`
	AppType        string        `yaml:"appType,omitempty" json:"appType,omitempty"`
	UIPath         string        `yaml:"uiPath,omitempty" json:"uiPath,omitempty"`
	RepoPath       string        `yaml:"repoPath,omitempty" json:"repoPath,omitempty"`
	DocsPath       string        `yaml:"docsPath,omitempty" json:"docsPath,omitempty"`
	DeploymentPath string        `yaml:"deploymentPath,omitempty" json:"deploymentPath,omitempty"`
	HealthChecks   []HealthCheck `yaml:"healthChecks,omitempty" json:"healthChecks,omitempty"`
	Dependencies   []Project     `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// HealthCheck is the single-check form accepted from older clients.
	// It is folded into HealthChecks when a config is normalised.
	HealthCheck *HealthCheck `yaml:"healthCheck,omitempty" json:"healthCheck,omitempty"`
}

// HealthCheck is one HTTP probe configuration with a success criterion.
type HealthCheck struct {
	Path            string                     `yaml:"path" json:"path"`
	Method          string                     `yaml:"method,omitempty" json:"method,omitempty"`
	RequestBody     any                        `yaml:"requestBody,omitempty" json:"requestBody,omitempty"`
	Headers         map[string]string          `yaml:"headers,omitempty" json:"headers,omitempty"`
	SuccessCriteria HealthCheckSuccessCriteria `yaml:"successCriteria" json:"successCriteria"`
	Name            string                     `yaml:"name,omitempty" json:"name,omitempty"`
	UseGeneralToken bool                       `yaml:"useGeneralToken,omitempty" json:"useGeneralToken,omitempty"`

	// SuccessStatuses is the legacy top-level status list.
	SuccessStatuses []int `yaml:"successStatuses,omitempty" json:"successStatuses,omitempty"`
}

// HealthCheckSuccessCriteria decides whether a probe result counts as healthy.
type HealthCheckSuccessCriteria struct {
	SuccessStatuses     []int                `yaml:"successStatuses" json:"successStatuses"`
	SuccessResponseBody *SuccessResponseBody `yaml:"successResponseBody,omitempty" json:"successResponseBody,omitempty"`
}

// SuccessResponseBody configures optional body matching.
type SuccessResponseBody struct {
	Type                 string               `yaml:"type" json:"type"`
	ResponseBodyEquals   *string              `yaml:"responseBodyEquals,omitempty" json:"responseBodyEquals,omitempty"`
	ResponseBodyContains ResponseBodyContains `yaml:"responseBodyContains,omitempty" json:"responseBodyContains,omitempty"`
}

// JSONContainsMap expects the value at a dotted property path to equal ExpectedValue.
type JSONContainsMap struct {
	Property      string `yaml:"property" json:"property"`
	ExpectedValue any    `yaml:"expectedValue" json:"expectedValue"`
}

// ResponseBodyContains holds either substrings (string bodies) or
// property expectations (json bodies). The wire form is a single array.
// Present is set when the array was given, even if it is empty; an empty
// array matches any body of the right kind.
type ResponseBodyContains struct {
	Strings []string
	Maps    []JSONContainsMap
	Present bool
}

// IsZero reports whether nothing was configured.
func (c ResponseBodyContains) IsZero() bool {
	return !c.Present && len(c.Strings) == 0 && len(c.Maps) == 0
}

// MarshalJSON writes whichever form is populated.
func (c ResponseBodyContains) MarshalJSON() ([]byte, error) {
	if len(c.Maps) > 0 {
		return json.Marshal(c.Maps)
	}
	if len(c.Strings) > 0 {
		return json.Marshal(c.Strings)
	}
	if c.Present {
		return []byte("[]"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts an array of strings or an array of property maps.
func (c *ResponseBodyContains) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("responseBodyContains must be an array: %w", err)
	}
	*c = ResponseBodyContains{Present: items != nil}
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			c.Strings = append(c.Strings, s)
			continue
		}
		var m JSONContainsMap
		if err := json.Unmarshal(item, &m); err != nil {
			return fmt.Errorf("responseBodyContains[%d]: %w", i, err)
		}
		c.Maps = append(c.Maps, m)
	}
	if len(c.Strings) > 0 && len(c.Maps) > 0 {
		return errors.New("responseBodyContains mixes strings and property maps")
	}
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (c ResponseBodyContains) MarshalYAML() (any, error) {
	if len(c.Maps) > 0 {
		return c.Maps, nil
	}
	if len(c.Strings) == 0 && c.Present {
		return []string{}, nil
	}
	return c.Strings, nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (c *ResponseBodyContains) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("responseBodyContains must be a sequence (line %d)", value.Line)
	}
	*c = ResponseBodyContains{Present: true}
	for i, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			c.Strings = append(c.Strings, item.Value)
		case yaml.MappingNode:
			var m JSONContainsMap
			if err := item.Decode(&m); err != nil {
				return fmt.Errorf("responseBodyContains[%d]: %w", i, err)
			}
			c.Maps = append(c.Maps, m)
		default:
			return fmt.Errorf("responseBodyContains[%d]: unsupported node", i)
		}
	}
	if len(c.Strings) > 0 && len(c.Maps) > 0 {
		return errors.New("responseBodyContains mixes strings and property maps")
	}
	return nil
}

// HTTPConfig is the request shape shared by login calls.
type HTTPConfig struct {
	Path        string            `yaml:"path" json:"path"`
	Method      string            `yaml:"method,omitempty" json:"method,omitempty"`
	RequestBody any               `yaml:"requestBody,omitempty" json:"requestBody,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// LoginForToken describes the call that yields the general token.
// An empty TokenLocationInResponse means the whole body is the token.
type LoginForToken struct {
	HTTPConfig              `yaml:",inline"`
	TokenType               string `yaml:"tokenType,omitempty" json:"tokenType,omitempty"`
	TokenLocationInResponse string `yaml:"tokenLocationInResponse,omitempty" json:"tokenLocationInResponse,omitempty"`
}

// MonitorConfig is the payload that starts a monitoring session.
// IntervalLength is expressed in seconds.
type MonitorConfig struct {
	Projects       []Project      `yaml:"projects" json:"projects"`
	IntervalLength int            `yaml:"intervalLength" json:"intervalLength"`
	LoginForToken  *LoginForToken `yaml:"loginForToken,omitempty" json:"loginForToken,omitempty"`
}

// HealthCheckStatus is the immutable result of one executed check.
type HealthCheckStatus struct {
	ResponseBody        any                        `json:"responseBody"`
	Status              *int                       `json:"status"`
	Path                string                     `json:"path"`
	Method              string                     `json:"method"`
	Timestamp           string                     `json:"timestamp"`
	Up                  bool                       `json:"up"`
	ProjectName         string                     `json:"projectName"`
	Warning             *bool                      `json:"warning"`
	InvalidResponseBody bool                       `json:"invalidResponseBody"`
	SuccessCriteria     HealthCheckSuccessCriteria `json:"successCriteria"`
	HealthCheckName     string                     `json:"healthCheckName,omitempty"`
}

// ProjectStatus is one node of a StatusOverview.
type ProjectStatus struct {
	Statuses     []HealthCheckStatus `json:"statuses"`
	Up           bool                `json:"up"`
	Warning      bool                `json:"warning"`
	Dependencies StatusOverview      `json:"dependencies,omitempty"`
}

// StatusOverview maps project names to their status, mirroring the project tree.
type StatusOverview map[string]ProjectStatus
