package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/pipegate-dev/pipegate/internal/engine"
	"github.com/pipegate-dev/pipegate/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureResult() *engine.RunResult {
	coverage := 87.5
	result := engine.NewRunResult("service-ci", "1.0.0")
	result.AddStageOutcome(engine.StageOutcome{
		Index:    0,
		ID:       "backend",
		Name:     "Backend tests",
		Kind:     "test",
		Required: true,
		Status:   values.StatusSuccess,
		Attempts: 1,
		Coverage: &coverage,
		Duration: 1200 * time.Millisecond,
	})
	result.AddStageOutcome(engine.StageOutcome{
		Index:    1,
		ID:       "security",
		Name:     "Security scan",
		Kind:     "scan",
		Required: true,
		Status:   values.StatusFailure,
		ExitCode: 1,
		Attempts: 2,
		Output:   "found 3 critical vulnerabilities",
		Message:  "tool exited with code 1",
		Duration: 800 * time.Millisecond,
	})
	result.AddStageOutcome(engine.StageOutcome{
		Index:      2,
		ID:         "docs",
		Name:       "Docs build",
		Kind:       "build",
		Required:   false,
		Status:     values.StatusSkipped,
		SkipReason: "excluded by --exclude-stage",
	})
	result.Finalize()
	result.Gate = gate.Evaluate(result.StageResults(), gate.Policy{})
	return result
}

func Test_NewFormatter(t *testing.T) {
	var buf bytes.Buffer

	for _, format := range SupportedFormats() {
		t.Run(format, func(t *testing.T) {
			formatter, err := NewFormatter(format, &buf, Options{})
			require.NoError(t, err)
			assert.NotNil(t, formatter)
		})
	}
}

func Test_NewFormatter_Unknown(t *testing.T) {
	var buf bytes.Buffer

	_, err := NewFormatter("pdf", &buf, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func Test_TableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter(&buf).Format(fixtureResult()))

	out := buf.String()
	assert.Contains(t, out, "Pipeline: service-ci (v1.0.0)")
	assert.Contains(t, out, "✓ backend: Backend tests")
	assert.Contains(t, out, "✗ security: Security scan")
	assert.Contains(t, out, "Coverage: 87.5%")
	assert.Contains(t, out, "Overall: FAIL (blocked by: security)")
}

func Test_TableFormatter_EmptyRun(t *testing.T) {
	result := engine.NewRunResult("empty", "1.0.0")
	result.Finalize()
	result.Gate = gate.Evaluate(nil, gate.Policy{})

	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter(&buf).Format(result))

	assert.Contains(t, buf.String(), "No stages executed.")
	assert.Contains(t, buf.String(), "Overall: PASS")
}

func Test_MarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(fixtureResult()))

	out := buf.String()
	assert.Contains(t, out, "## Quality Gate: ❌ FAIL")
	assert.Contains(t, out, "| security | ✗ failure | yes |")
	assert.Contains(t, out, "**Pipeline:** service-ci (v1.0.0)")
	assert.Contains(t, out, "found 3 critical vulnerabilities")
}

func Test_JSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf, true).Format(fixtureResult()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "service-ci", decoded["pipeline_name"])

	gateSection, ok := decoded["gate"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "fail", gateSection["overall"])
}

func Test_JSONFormatter_Compact(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf, false).Format(fixtureResult()))

	// Compact output is a single line plus trailing newline
	trimmed := strings.TrimRight(buf.String(), "\n")
	assert.NotContains(t, trimmed, "\n")
}

func Test_YAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter(&buf).Format(fixtureResult()))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "service-ci", decoded["pipeline_name"])
}

func Test_JUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJUnitFormatter(&buf).Format(fixtureResult()))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))

	require.Len(t, suites.TestSuites, 1)
	suite := suites.TestSuites[0]
	assert.Equal(t, "service-ci", suite.Name)
	assert.Equal(t, 3, suite.Tests)
	assert.Equal(t, 1, suite.Failures)
	assert.Equal(t, 1, suite.Skipped)

	require.Len(t, suite.TestCases, 3)
	assert.Nil(t, suite.TestCases[0].Failure)
	require.NotNil(t, suite.TestCases[1].Failure)
	assert.Equal(t, "tool exited with code 1", suite.TestCases[1].Failure.Message)
	require.NotNil(t, suite.TestCases[2].Skipped)
}

func Test_JUnitFormatter_CancelledMapsToError(t *testing.T) {
	result := engine.NewRunResult("p", "1.0.0")
	result.AddStageOutcome(engine.StageOutcome{
		ID: "slow", Name: "Slow", Status: values.StatusCancelled, Message: "stage timed out after 1s",
	})
	result.Finalize()
	result.Gate = gate.Evaluate(result.StageResults(), gate.Policy{})

	var buf bytes.Buffer
	require.NoError(t, NewJUnitFormatter(&buf).Format(result))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	require.NotNil(t, suites.TestSuites[0].TestCases[0].Error)
}

func Test_SARIFFormatter(t *testing.T) {
	var buf bytes.Buffer
	formatter := NewSARIFFormatter(&buf, "pipeline.yaml", "1.2.3")
	require.NoError(t, formatter.Format(fixtureResult()))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	runs, ok := doc["runs"].([]interface{})
	require.True(t, ok)
	require.Len(t, runs, 1)

	run := runs[0].(map[string]interface{})
	results, ok := run["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 3)

	// Blocking stage surfaces as an error-level result
	security := results[1].(map[string]interface{})
	assert.Equal(t, "security", security["ruleId"])
	assert.Equal(t, "error", security["level"])
	assert.Equal(t, "fail", security["kind"])

	// Passing stage is a note
	backend := results[0].(map[string]interface{})
	assert.Equal(t, "note", backend["level"])
}
