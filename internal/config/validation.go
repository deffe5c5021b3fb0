package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/expr-lang/expr"
	"github.com/goccy/go-yaml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/pipeline.schema.json
var pipelineSchema []byte

// Validate performs comprehensive structural validation of a pipeline.
// Returns an error describing all validation failures found.
//
// A pipeline with zero stages is valid: an empty gate evaluates to a
// vacuous pass, which is an intentional degenerate configuration.
func Validate(pipeline *Pipeline) error {
	var errors []string

	if err := validateMetadata(pipeline.Metadata); err != nil {
		errors = append(errors, err.Error())
	}

	if err := validateStages(pipeline.Stages); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("pipeline validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ValidateDocument validates raw pipeline YAML against the embedded JSON
// Schema. Use this for pre-flight validation before decoding: schema errors
// point at the document, not at half-decoded structs.
func ValidateDocument(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("pipeline.schema.json", bytes.NewReader(pipelineSchema)); err != nil {
		return fmt.Errorf("failed to add pipeline schema resource: %w", err)
	}

	schema, err := compiler.Compile("pipeline.schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile pipeline schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return formatSchemaValidationError(validationErr)
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// validateMetadata validates pipeline metadata fields.
func validateMetadata(meta PipelineMetadata) error {
	var errors []string

	if meta.Name == "" {
		errors = append(errors, "pipeline name is required")
	}

	if meta.Version == "" {
		errors = append(errors, "pipeline version is required")
	} else if _, err := semver.NewVersion(meta.Version); err != nil {
		errors = append(errors, fmt.Sprintf("pipeline version %q is not valid semver: %v", meta.Version, err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("pipeline metadata: %s", strings.Join(errors, "; "))
	}

	return nil
}

// validateStages validates the stages section.
func validateStages(stages StagesSection) error {
	stageIDs := make(map[string]bool)
	for _, stage := range stages.Items {
		stageIDs[stage.ID] = true
	}

	var errors []string

	seen := make(map[string]bool)
	for i, stage := range stages.Items {
		if err := stage.Validate(); err != nil {
			errors = append(errors, fmt.Sprintf("stage %d: %s", i, err.Error()))
		}

		if seen[stage.ID] {
			errors = append(errors, fmt.Sprintf("duplicate stage ID: %s", stage.ID))
		}
		seen[stage.ID] = true

		for _, dep := range stage.DependsOn {
			if !stageIDs[dep] {
				errors = append(errors, fmt.Sprintf("stage %s depends on non-existent stage %s", stage.ID, dep))
			}
			if dep == stage.ID {
				errors = append(errors, fmt.Sprintf("stage %s depends on itself", stage.ID))
			}
		}

		if err := validateExpectations(stage); err != nil {
			errors = append(errors, fmt.Sprintf("stage %s: %s", stage.ID, err.Error()))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("stages validation:\n    - %s", strings.Join(errors, "\n    - "))
	}

	return nil
}

// validateExpectations compiles each expect expression and the coverage
// pattern so malformed stages fail at load time, not mid-run.
func validateExpectations(stage Stage) error {
	var errors []string

	if stage.CoveragePattern != "" {
		re, err := regexp.Compile(stage.CoveragePattern)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid coverage_pattern: %v", err))
		} else if re.NumSubexp() < 1 {
			errors = append(errors, "coverage_pattern must have a capture group for the metric")
		}
	}

	for j, expectExpr := range stage.Expect {
		if _, err := expr.Compile(expectExpr, expr.AsBool()); err != nil {
			errors = append(errors, fmt.Sprintf("expect %d: %v", j, err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}

// formatSchemaValidationError formats a JSON Schema validation error into a readable message.
func formatSchemaValidationError(err *jsonschema.ValidationError) error {
	var messages []string

	var collectErrors func(*jsonschema.ValidationError)
	collectErrors = func(e *jsonschema.ValidationError) {
		if e.Message != "" {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
		}

		for _, cause := range e.Causes {
			collectErrors(cause)
		}
	}

	collectErrors(err)

	if len(messages) == 0 {
		return fmt.Errorf("validation failed")
	}

	return fmt.Errorf("schema validation failed:\n    - %s", strings.Join(messages, "\n    - "))
}
