package core

import (
	"time"
)

// TestResult captures the outcome of one registered test
type TestResult struct {
	// Identity
	Name   string `json:"name"`
	Source string `json:"source,omitempty"` // Script file for scripted tests

	// Status
	Status   TestStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// Debug Artifacts
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SuiteResult captures the outcome of a whole registry run
type SuiteResult struct {
	// Identity
	Name   string `json:"name"`
	RunID  string `json:"runId"`
	Device string `json:"device,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Tests []TestResult `json:"tests"`

	// Summary
	TotalTests   int `json:"totalTests"`
	PassedTests  int `json:"passedTests"`
	FailedTests  int `json:"failedTests"`
	SkippedTests int `json:"skippedTests"`
}

// ComputeSummary calculates test counts from the Tests slice
func (s *SuiteResult) ComputeSummary() {
	s.TotalTests = len(s.Tests)
	s.PassedTests = 0
	s.FailedTests = 0
	s.SkippedTests = 0

	for _, t := range s.Tests {
		switch t.Status {
		case StatusPassed:
			s.PassedTests++
		case StatusFailed, StatusErrored:
			s.FailedTests++
		case StatusSkipped:
			s.SkippedTests++
		}
	}
}

// Success returns true if at least one test ran and none failed
func (s *SuiteResult) Success() bool {
	ran := 0
	for _, t := range s.Tests {
		switch t.Status {
		case StatusSkipped:
			continue
		case StatusPassed:
			ran++
		default:
			return false
		}
	}
	return ran > 0
}
