package datamodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryMetadataValidate(t *testing.T) {
	valid := []RetryMetadata{
		{MechanismName: "xunit-retry", MaxRetries: 3, AttemptNumber: 1, PassedOnRetry: false},
		{MechanismName: "xunit-retry", MaxRetries: 3, AttemptNumber: 2, PassedOnRetry: true},
		{MechanismName: "nunit-retry", MaxRetries: 1, AttemptNumber: 2, PassedOnRetry: false},
	}
	for _, rm := range valid {
		rm := rm
		assert.NoError(t, rm.Validate(), "%+v should be valid", rm)
	}

	invalid := []RetryMetadata{
		{AttemptNumber: 0},
		{AttemptNumber: -1},
		// First attempt can never have passed "on retry".
		{AttemptNumber: 1, PassedOnRetry: true},
	}
	for _, rm := range invalid {
		rm := rm
		assert.Error(t, rm.Validate(), "%+v should be invalid", rm)
	}
}

func TestExecutionValidate(t *testing.T) {
	started := time.Now()
	exec := NewTestExecution(TestIdentity{
		Fingerprint:        "0123456789abcdef0123456789abcdef",
		FullyQualifiedName: "MyNamespace.MyClass.MyTest",
		Namespace:          "MyNamespace",
		ClassName:          "MyClass",
		MethodName:         "MyTest",
		DisplayName:        "MyTest",
	}, OutcomePassed, started, started.Add(12*time.Millisecond))

	assert.NoError(t, exec.Validate())
	assert.NotEmpty(t, exec.ExecutionID)
	assert.Equal(t, int64(12), exec.DurationMs)
	assert.Equal(t, "MyTest", exec.DisplayName)

	bad := *exec
	bad.Outcome = Outcome("exploded")
	assert.Error(t, bad.Validate())

	bad = *exec
	bad.FinishedAt = started.Add(-time.Second)
	assert.Error(t, bad.Validate())

	bad = *exec
	bad.Identity.Fingerprint = ""
	assert.Error(t, bad.Validate())
}

func TestNewTestExecutionUniqueIDs(t *testing.T) {
	now := time.Now()
	identity := TestIdentity{Fingerprint: "ff", FullyQualifiedName: "A.B.C"}
	a := NewTestExecution(identity, OutcomeFailed, now, now)
	b := NewTestExecution(identity, OutcomeFailed, now, now)
	assert.NotEqual(t, a.ExecutionID, b.ExecutionID)
}
