package datamodel

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the final result of a single test execution. The set is closed:
// anything other than passed, failed or skipped is rejected on validation.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomePassed, OutcomeFailed, OutcomeSkipped:
		return true
	}
	return false
}

// TestIdentity identifies one logical test stably across runs. Fingerprint is
// a pure function of (FullyQualifiedName, ParameterHash); recomputing it for
// identical inputs always yields the identical value.
type TestIdentity struct {
	Fingerprint        string  `json:"fingerprint"`
	FullyQualifiedName string  `json:"fullyQualifiedName"`
	Namespace          string  `json:"namespace"`
	ClassName          string  `json:"className"`
	MethodName         string  `json:"methodName"`
	DisplayName        string  `json:"displayName"`
	ParameterHash      *string `json:"parameterHash,omitempty"`
}

// Metadata carries caller-supplied grouping information for an execution.
type Metadata struct {
	Categories  []string          `json:"categories,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Description string            `json:"description,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// RetryMetadata describes how a framework-level retry mechanism treated an
// execution. It is produced by framework adapters and consumed opaquely here.
type RetryMetadata struct {
	MechanismName string            `json:"mechanismName"`
	MaxRetries    int               `json:"maxRetries"`
	AttemptNumber int               `json:"attemptNumber"`
	PassedOnRetry bool              `json:"passedOnRetry"`
	Additional    map[string]string `json:"additional,omitempty"`
}

func (r *RetryMetadata) Validate() error {
	if r.AttemptNumber < 1 {
		return fmt.Errorf("attempt number must be >= 1, got %d", r.AttemptNumber)
	}
	if r.AttemptNumber == 1 && r.PassedOnRetry {
		return errors.New("passedOnRetry cannot be true on the first attempt")
	}
	return nil
}

// TestExecution is one completed test run. It is created once at test
// completion and never mutated afterwards: the collector owns it until it is
// drained, then the upload pipeline owns it.
type TestExecution struct {
	ExecutionID  string         `json:"executionId"`
	Identity     TestIdentity   `json:"identity"`
	DisplayName  string         `json:"displayName,omitempty"`
	Outcome      Outcome        `json:"outcome"`
	DurationMs   int64          `json:"durationMs"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   time.Time      `json:"finishedAt"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	StackTrace   string         `json:"stackTrace,omitempty"`
	Retry        *RetryMetadata `json:"retry,omitempty"`
	Metadata     *Metadata      `json:"metadata,omitempty"`
}

// NewTestExecution creates an execution record with a fresh opaque id and the
// duration derived from the start/finish timestamps.
func NewTestExecution(identity TestIdentity, outcome Outcome, startedAt time.Time, finishedAt time.Time) *TestExecution {
	return &TestExecution{
		ExecutionID: uuid.NewString(),
		Identity:    identity,
		DisplayName: identity.DisplayName,
		Outcome:     outcome,
		DurationMs:  finishedAt.Sub(startedAt).Milliseconds(),
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	}
}

func (e *TestExecution) Validate() error {
	if e.ExecutionID == "" {
		return errors.New("execution id is empty")
	}
	if e.Identity.Fingerprint == "" {
		return errors.New("identity fingerprint is empty")
	}
	if !e.Outcome.Valid() {
		return fmt.Errorf("unknown outcome %q", e.Outcome)
	}
	if e.FinishedAt.Before(e.StartedAt) {
		return fmt.Errorf("finishedAt %s is before startedAt %s", e.FinishedAt, e.StartedAt)
	}
	if e.Retry != nil {
		if err := e.Retry.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Batch is an ordered, immutable sequence of executions captured at one drain
// point. The collector copies records in, so a batch is never aliased by the
// record buffer.
type Batch []TestExecution

// UploadResult reports the outcome of delivering one batch.
type UploadResult struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// OfflineEntry is a batch that exhausted its upload retries, persisted for
// later replay together with its bookkeeping.
type OfflineEntry struct {
	Batch     Batch     `json:"batch"`
	CreatedAt time.Time `json:"createdAt"`
	Attempts  int       `json:"attempts"`
}
