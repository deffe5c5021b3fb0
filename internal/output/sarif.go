package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/owenrumney/go-sarif/v3/pkg/report/v210/sarif"
	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/pipegate-dev/pipegate/internal/engine"
)

// SARIFFormatter formats run results as SARIF 2.1.0 JSON.
// It maps pipeline stages to SARIF rules and stage outcomes to results,
// so code-scanning dashboards can ingest gate failures.
type SARIFFormatter struct {
	writer       io.Writer
	pipelinePath string
	toolVersion  string
}

// NewSARIFFormatter creates a new SARIF formatter.
// pipelinePath points at the pipeline definition and becomes the
// location of every result.
func NewSARIFFormatter(writer io.Writer, pipelinePath, toolVersion string) *SARIFFormatter {
	return &SARIFFormatter{
		writer:       writer,
		pipelinePath: pipelinePath,
		toolVersion:  toolVersion,
	}
}

// Format writes the run result as SARIF 2.1.0 JSON.
func (f *SARIFFormatter) Format(result *engine.RunResult) error {
	report := sarif.NewReport()

	run := sarif.NewRunWithInformationURI("pipegate", "https://github.com/pipegate-dev/pipegate")
	if f.toolVersion != "" {
		run.Tool.Driver.Version = &f.toolVersion
	}

	f.addRules(run, result)
	f.addResults(run, result)
	f.addInvocation(run, result)

	props := sarif.NewPropertyBag()
	props.Add("summary", result.Summary)
	props.Add("gateVerdict", string(result.Gate.Overall))
	props.Add("blocking", result.Gate.Blocking)
	run.WithProperties(props)

	report.AddRun(run)

	if err := report.Write(f.writer); err != nil {
		return fmt.Errorf("failed to write SARIF output: %w", err)
	}

	_, err := f.writer.Write([]byte("\n"))
	return err
}

// addRules converts stages to SARIF rules.
func (f *SARIFFormatter) addRules(run *sarif.Run, result *engine.RunResult) {
	for _, outcome := range result.Stages {
		rule := sarif.NewReportingDescriptor().WithID(outcome.ID)
		rule.WithName(outcome.Name)
		rule.WithShortDescription(&sarif.MultiformatMessageString{
			Text: ptrString(outcome.Name),
		})

		props := sarif.NewPropertyBag()
		props.Add("kind", outcome.Kind)
		props.Add("required", outcome.Required)
		rule.WithProperties(props)

		run.Tool.Driver.AddRule(rule)
	}
}

// addResults converts stage outcomes to SARIF results.
func (f *SARIFFormatter) addResults(run *sarif.Run, result *engine.RunResult) {
	for _, outcome := range result.Stages {
		r := sarif.NewRuleResult(outcome.ID)
		r.Level = f.mapStatusToLevel(outcome, result.Gate.Blocks(outcome.ID))
		r.Kind = f.mapStatusToKind(outcome.Status)
		r.Message = sarif.NewTextMessage(f.resultMessage(outcome))

		if loc := f.pipelineLocation(); loc != nil {
			r.Locations = []*sarif.Location{loc}
		}

		props := sarif.NewPropertyBag()
		props.Add("duration_ms", outcome.Duration.Milliseconds())
		props.Add("exit_code", outcome.ExitCode)
		props.Add("attempts", outcome.Attempts)
		if outcome.Coverage != nil {
			props.Add("coverage", *outcome.Coverage)
		}
		if outcome.SkipReason != "" {
			props.Add("skipReason", outcome.SkipReason)
		}
		r.WithProperties(props)

		run.AddResult(r)
	}
}

// mapStatusToLevel converts a stage outcome to a SARIF level. Blocking
// stages are errors; a failed optional stage only warrants a warning.
func (f *SARIFFormatter) mapStatusToLevel(outcome engine.StageOutcome, blocking bool) string {
	switch outcome.Status {
	case values.StatusSuccess:
		return "note"
	case values.StatusFailure, values.StatusCancelled:
		if blocking {
			return "error"
		}
		return "warning"
	case values.StatusSkipped:
		return "none"
	default:
		return "warning"
	}
}

// mapStatusToKind converts a stage status to a SARIF kind.
func (f *SARIFFormatter) mapStatusToKind(status values.Status) string {
	switch status {
	case values.StatusSuccess:
		return "pass"
	case values.StatusFailure, values.StatusCancelled:
		return "fail"
	case values.StatusSkipped:
		return "notApplicable"
	default:
		return "fail"
	}
}

// resultMessage picks the stage message or generates a default.
func (f *SARIFFormatter) resultMessage(outcome engine.StageOutcome) string {
	if outcome.Message != "" {
		return outcome.Message
	}
	switch outcome.Status {
	case values.StatusSuccess:
		return fmt.Sprintf("Stage %s succeeded", outcome.ID)
	case values.StatusFailure:
		return fmt.Sprintf("Stage %s failed", outcome.ID)
	case values.StatusCancelled:
		return fmt.Sprintf("Stage %s was cancelled", outcome.ID)
	case values.StatusSkipped:
		return fmt.Sprintf("Stage %s was skipped", outcome.ID)
	default:
		return fmt.Sprintf("Stage %s completed with status %s", outcome.ID, outcome.Status)
	}
}

// pipelineLocation builds a location pointing at the pipeline definition.
func (f *SARIFFormatter) pipelineLocation() *sarif.Location {
	if f.pipelinePath == "" {
		return nil
	}

	pLoc := sarif.NewPhysicalLocation().
		WithArtifactLocation(sarif.NewArtifactLocation().WithURI(filepath.ToSlash(f.pipelinePath)))
	return sarif.NewLocation().WithPhysicalLocation(pLoc)
}

// addInvocation adds run metadata to the SARIF run.
func (f *SARIFFormatter) addInvocation(run *sarif.Run, result *engine.RunResult) {
	invocation := sarif.NewInvocation()

	invocation.ExecutionSuccessful = ptrBool(!result.Gate.Overall.IsBlocking())

	startTime := result.StartTime.UTC().Format("2006-01-02T15:04:05.000Z")
	endTime := result.EndTime.UTC().Format("2006-01-02T15:04:05.000Z")
	invocation.StartTimeUtc = &startTime
	invocation.EndTimeUtc = &endTime

	if hostname, err := os.Hostname(); err == nil {
		invocation.Machine = &hostname
	}

	props := sarif.NewPropertyBag()
	props.Add("pipelineName", result.PipelineName)
	props.Add("pipelineVersion", result.PipelineVersion)
	props.Add("runId", result.RunID.String())
	invocation.WithProperties(props)

	run.AddInvocation(invocation)
}

func ptrString(s string) *string {
	return &s
}

func ptrBool(b bool) *bool {
	return &b
}
