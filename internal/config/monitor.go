package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"projectmonitor/internal/models"
	"projectmonitor/internal/tree"
)

// ErrInvalidMonitorConfig wraps every monitor config validation failure.
var ErrInvalidMonitorConfig = errors.New("invalid monitor config")

// ParseMonitorConfig decodes a JSON monitor payload, normalises legacy
// fields and validates it. A payload that is itself a JSON string holding
// the config is unwrapped first.
func ParseMonitorConfig(data []byte) (models.MonitorConfig, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return models.MonitorConfig{}, fmt.Errorf("%w: %w", ErrInvalidMonitorConfig, err)
		}
		data = []byte(inner)
	}

	var cfg models.MonitorConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.MonitorConfig{}, fmt.Errorf("%w: %w", ErrInvalidMonitorConfig, err)
	}
	return finish(cfg)
}

// LoadMonitorFile reads a monitor config from a .json, .yaml or .yml file.
func LoadMonitorFile(path string) (models.MonitorConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.MonitorConfig{}, fmt.Errorf("read monitor config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseMonitorConfig(content)
	default:
		var cfg models.MonitorConfig
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return models.MonitorConfig{}, fmt.Errorf("%w: %w", ErrInvalidMonitorConfig, err)
		}
		return finish(cfg)
	}
}

func finish(cfg models.MonitorConfig) (models.MonitorConfig, error) {
	Normalize(&cfg)
	if err := ValidateMonitorConfig(cfg); err != nil {
		return models.MonitorConfig{}, err
	}
	return cfg, nil
}

// Normalize folds legacy fields into their current form: a project's single
// healthCheck joins healthChecks and a check's top-level successStatuses
// becomes its success criteria. Methods are upper-cased and default to GET.
func Normalize(cfg *models.MonitorConfig) {
	normalizeProjects(cfg.Projects)
	if login := cfg.LoginForToken; login != nil {
		login.Method = normalizeMethod(login.Method)
		if login.TokenType == "" {
			login.TokenType = models.TokenTypeBearer
		}
	}
}

func normalizeProjects(projects []models.Project) {
	for i := range projects {
		p := &projects[i]
		if p.HealthCheck != nil {
			p.HealthChecks = append([]models.HealthCheck{*p.HealthCheck}, p.HealthChecks...)
			p.HealthCheck = nil
		}
		for j := range p.HealthChecks {
			hc := &p.HealthChecks[j]
			hc.Method = normalizeMethod(hc.Method)
			if len(hc.SuccessCriteria.SuccessStatuses) == 0 && len(hc.SuccessStatuses) > 0 {
				hc.SuccessCriteria.SuccessStatuses = hc.SuccessStatuses
			}
			hc.SuccessStatuses = nil
		}
		normalizeProjects(p.Dependencies)
	}
}

func normalizeMethod(method string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return models.MethodGet
	}
	return method
}

// ValidateMonitorConfig reports every problem found in cfg. Project names
// must be unique across the whole tree. The interval is checked by the
// scheduler against its own minimum.
func ValidateMonitorConfig(cfg models.MonitorConfig) error {
	var result *multierror.Error

	if len(cfg.Projects) == 0 {
		result = multierror.Append(result, errors.New("projects: at least one project is required"))
	}
	validateProjects(cfg.Projects, "projects", &result)
	if _, err := tree.NewIndex(cfg.Projects); err != nil {
		result = multierror.Append(result, err)
	}
	if login := cfg.LoginForToken; login != nil {
		if login.Path == "" {
			result = multierror.Append(result, errors.New("loginForToken.path: required"))
		}
		if !validMethod(login.Method) {
			result = multierror.Append(result, fmt.Errorf("loginForToken.method: unsupported method %q", login.Method))
		}
		if login.TokenType != models.TokenTypeBearer {
			result = multierror.Append(result, fmt.Errorf("loginForToken.tokenType: unsupported token type %q", login.TokenType))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMonitorConfig, err)
	}
	return nil
}

func validateProjects(projects []models.Project, prefix string, result **multierror.Error) {
	for i, p := range projects {
		where := fmt.Sprintf("%s[%d]", prefix, i)
		if strings.TrimSpace(p.Name) == "" {
			*result = multierror.Append(*result, fmt.Errorf("%s.name: required", where))
		}
		for j, hc := range p.HealthChecks {
			validateHealthCheck(hc, fmt.Sprintf("%s.healthChecks[%d]", where, j), result)
		}
		validateProjects(p.Dependencies, where+".dependencies", result)
	}
}

func validateHealthCheck(hc models.HealthCheck, where string, result **multierror.Error) {
	if strings.TrimSpace(hc.Path) == "" {
		*result = multierror.Append(*result, fmt.Errorf("%s.path: required", where))
	}
	if !validMethod(hc.Method) {
		*result = multierror.Append(*result, fmt.Errorf("%s.method: unsupported method %q", where, hc.Method))
	}
	if len(hc.SuccessCriteria.SuccessStatuses) == 0 {
		*result = multierror.Append(*result, fmt.Errorf("%s.successCriteria.successStatuses: at least one status is required", where))
	}
	if body := hc.SuccessCriteria.SuccessResponseBody; body != nil {
		switch body.Type {
		case models.BodyTypeString:
			if len(body.ResponseBodyContains.Maps) > 0 {
				*result = multierror.Append(*result, fmt.Errorf("%s.successCriteria.successResponseBody.responseBodyContains: string bodies take strings", where))
			}
		case models.BodyTypeJSON:
			if len(body.ResponseBodyContains.Strings) > 0 {
				*result = multierror.Append(*result, fmt.Errorf("%s.successCriteria.successResponseBody.responseBodyContains: json bodies take property maps", where))
			}
			for k, m := range body.ResponseBodyContains.Maps {
				if m.Property == "" {
					*result = multierror.Append(*result, fmt.Errorf("%s.successCriteria.successResponseBody.responseBodyContains[%d].property: required", where, k))
				}
			}
		default:
			*result = multierror.Append(*result, fmt.Errorf("%s.successCriteria.successResponseBody.type: must be %q or %q", where, models.BodyTypeString, models.BodyTypeJSON))
		}
		if body.ResponseBodyEquals == nil && body.ResponseBodyContains.IsZero() {
			*result = multierror.Append(*result, fmt.Errorf("%s.successCriteria.successResponseBody: responseBodyEquals or responseBodyContains is required", where))
		}
	}
}

func validMethod(method string) bool {
	switch method {
	case models.MethodGet, models.MethodPost, models.MethodPut:
		return true
	default:
		return false
	}
}
