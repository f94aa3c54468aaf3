package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/bicmine/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextMine - mine needs a commit source and an output path
	ValidationContextMine ValidationContext = "mine"
	// ValidationContextQuery - resolve and path only need a commit source
	ValidationContextQuery ValidationContext = "query"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	return sb.String()
}

// Err returns the result as a configuration error, or nil when valid
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(strings.TrimSpace(vr.Error()))
}

// Validate checks the configuration of a full mining run
func (c *Config) Validate() error {
	return c.ValidateFor(ValidationContextMine).Err()
}

// ValidateFor validates configuration for the given context
func (c *Config) ValidateFor(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateSource(result)
	if ctx == ValidationContextMine {
		if c.Output == "" {
			result.AddError("output path is required")
		}
		c.validateSinks(result)
	}
	c.validateIndex(result)
	c.validatePath(result)
	if c.Limit < 0 {
		result.AddError("limit must not be negative (got %d)", c.Limit)
	}
	return result
}

func (c *Config) validateSource(result *ValidationResult) {
	if c.Input == "" && c.Repo == "" {
		result.AddError("either input or repo is required")
		return
	}
	if c.Input != "" && c.Repo != "" {
		result.AddWarning("both input and repo set; reading repo %s", c.Repo)
	}
}

func (c *Config) validateIndex(result *ValidationResult) {
	switch c.Index.Ambiguity {
	case "", "last-wins", "reject":
	default:
		result.AddError("index.ambiguity must be last-wins or reject (got %q)", c.Index.Ambiguity)
	}
	for _, tier := range c.Index.Tiers {
		if tier < 5 || tier > 9 {
			result.AddError("index.tiers entries must be between 5 and 9 (got %d)", tier)
		}
	}
}

func (c *Config) validatePath(result *ValidationResult) {
	if c.Path.MaxHops < 0 {
		result.AddError("path.max_hops must not be negative (got %d)", c.Path.MaxHops)
	}
	if c.Path.MaxFrontier < 0 {
		result.AddError("path.max_frontier must not be negative (got %d)", c.Path.MaxFrontier)
	}
}

func (c *Config) validateSinks(result *ValidationResult) {
	sql := c.Sinks.SQL
	if sql.Enabled() {
		switch sql.Driver {
		case "sqlite3", "postgres":
		default:
			result.AddError("sinks.sql.driver must be sqlite3 or postgres (got %q)", sql.Driver)
		}
	}

	neo := c.Sinks.Neo4j
	if neo.Enabled() {
		u, err := url.Parse(neo.URI)
		if err != nil {
			result.AddError("sinks.neo4j.uri is invalid: %v", err)
		} else if !strings.HasPrefix(u.Scheme, "bolt") && !strings.HasPrefix(u.Scheme, "neo4j") {
			result.AddError("sinks.neo4j.uri must use bolt:// or neo4j:// (got %s)", neo.URI)
		}
		if neo.Password == "" {
			result.AddWarning("sinks.neo4j.password is empty")
		}
	}

	for name, size := range map[string]int{
		"sinks.sql.batch_size":   sql.BatchSize,
		"sinks.bolt.batch_size":  c.Sinks.Bolt.BatchSize,
		"sinks.neo4j.batch_size": neo.BatchSize,
	} {
		if size < 0 {
			result.AddError("%s must not be negative (got %d)", name, size)
		}
	}
}
