package output

import (
	"encoding/xml"
	"io"

	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/pipegate-dev/pipegate/internal/engine"
)

// JUnitFormatter formats run results as JUnit XML so CI servers can
// render stage outcomes as test results.
type JUnitFormatter struct {
	writer io.Writer
}

// NewJUnitFormatter creates a new JUnit formatter.
func NewJUnitFormatter(w io.Writer) *JUnitFormatter {
	return &JUnitFormatter{
		writer: w,
	}
}

// JUnitTestSuites JUnit XML structures
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Content string `xml:",chardata"`
}

type JUnitError struct {
	Message string `xml:"message,attr"`
	Content string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// Format writes the run result as JUnit XML. Failed stages map to
// failures, cancelled stages to errors, skipped stages to skips.
func (f *JUnitFormatter) Format(result *engine.RunResult) error {
	suite := JUnitTestSuite{
		Name:     result.PipelineName,
		Tests:    result.Summary.TotalStages,
		Failures: result.Summary.FailedStages,
		Errors:   result.Summary.CancelledStages,
		Skipped:  result.Summary.SkippedStages,
		Time:     result.Duration.Seconds(),
	}

	for _, outcome := range result.Stages {
		c := JUnitTestCase{
			Name:      outcome.ID,
			ClassName: outcome.Name,
			Time:      outcome.Duration.Seconds(),
		}

		switch outcome.Status {
		case values.StatusFailure:
			c.Failure = &JUnitFailure{
				Message: outcome.Message,
				Content: outcome.Output,
			}
		case values.StatusCancelled:
			c.Error = &JUnitError{
				Message: outcome.Message,
				Content: outcome.Output,
			}
		case values.StatusSkipped:
			c.Skipped = &JUnitSkipped{
				Message: outcome.SkipReason,
			}
		}

		suite.TestCases = append(suite.TestCases, c)
	}

	suites := JUnitTestSuites{
		Name:       "Pipegate Run",
		Tests:      result.Summary.TotalStages,
		Failures:   result.Summary.FailedStages,
		Errors:     result.Summary.CancelledStages,
		Time:       result.Duration.Seconds(),
		TestSuites: []JUnitTestSuite{suite},
	}

	_, err := f.writer.Write([]byte(xml.Header))
	if err != nil {
		return err
	}

	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(suites); err != nil {
		return err
	}

	_, err = f.writer.Write([]byte("\n"))
	return err
}
