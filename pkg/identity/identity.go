// Package identity derives stable fingerprints and structured identities for
// tests, so the same logical test can be recognized across many runs.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/xping-dev/sdk-go/internal"
	"github.com/xping-dev/sdk-go/pkg/datamodel"
)

const separator = "."

var (
	ErrEmptyName   = errors.New("fully qualified name is empty")
	ErrEmptyModule = errors.New("module name is empty")
	ErrMalformed   = errors.New("fully qualified name is malformed")
)

// Generating an identity sits on the test-execution hot path, so resolved
// identities are memoized. Keys are stable strings, entries are small.
var identityCache = cache.New(30*time.Minute, 10*time.Minute)

// Generate derives the structured identity of a test from its fully qualified
// name and module. The name is split on dots: the last segment is the method
// name, the one before it the class name, everything preceding them the
// namespace. Names with fewer than three segments are rejected.
//
// A nil parameters slice means the test is not parameterized. A non-nil slice
// (even an empty one) marks a parameterized test and changes the fingerprint,
// so data-row variants of the same method never collide with the bare method.
func Generate(fullyQualifiedName string, module string, parameters []any, displayName string) (datamodel.TestIdentity, error) {
	if strings.TrimSpace(fullyQualifiedName) == "" {
		return datamodel.TestIdentity{}, ErrEmptyName
	}
	if strings.TrimSpace(module) == "" {
		return datamodel.TestIdentity{}, ErrEmptyModule
	}

	var paramHash *string
	if parameters != nil {
		h := GenerateParameterHash(parameters)
		paramHash = &h
	}

	cacheKey := cacheKeyFor(fullyQualifiedName, module, paramHash, displayName)
	if cached, found := identityCache.Get(cacheKey); found {
		return cached.(datamodel.TestIdentity), nil
	}

	segments := strings.Split(fullyQualifiedName, separator)
	if len(segments) < 3 {
		return datamodel.TestIdentity{}, fmt.Errorf(
			"%w: %q has %d segments, expected at least namespace.class.method",
			ErrMalformed, fullyQualifiedName, len(segments))
	}

	methodName := segments[len(segments)-1]
	className := segments[len(segments)-2]
	namespace := strings.Join(segments[:len(segments)-2], separator)

	name := displayName
	if name == "" {
		if paramHash == nil {
			name = methodName
		} else {
			name = methodName + "(" + *paramHash + ")"
		}
	}

	id := datamodel.TestIdentity{
		Fingerprint:        GenerateTestFingerprint(fullyQualifiedName, paramHash),
		FullyQualifiedName: fullyQualifiedName,
		Namespace:          namespace,
		ClassName:          className,
		MethodName:         methodName,
		DisplayName:        name,
		ParameterHash:      paramHash,
	}
	identityCache.SetDefault(cacheKey, id)
	return id, nil
}

// GenerateTestFingerprint returns the deterministic 32 character lowercase hex
// digest identifying a test. A present parameter hash always changes the
// digest, even when the hash itself is the empty string, so parameterized and
// non-parameterized variants never collide.
func GenerateTestFingerprint(fullyQualifiedName string, parameterHash *string) string {
	if parameterHash == nil {
		return internal.HexDigest([]byte(fullyQualifiedName))
	}
	return internal.HexDigest([]byte(fullyQualifiedName), []byte("|"), []byte(*parameterHash))
}

// GenerateParameterHash canonicalizes a parameter list into a single
// culture-invariant string: elements joined with commas, nil rendered as
// "null", nested slices wrapped in square brackets. An empty list yields "".
func GenerateParameterHash(parameters []any) string {
	if len(parameters) == 0 {
		return ""
	}
	parts := make([]string, 0, len(parameters))
	for _, p := range parameters {
		parts = append(parts, formatParameter(p))
	}
	return strings.Join(parts, ",")
}

// GenerateErrorMessageHash digests a failure message so recurring identical
// failures can be grouped across runs. Empty or whitespace-only input yields
// "". The raw text is hashed as-is, without normalization.
func GenerateErrorMessageHash(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return internal.HexDigest([]byte(text))
}

// GenerateStackTraceHash digests a stack trace, with the same blank-input
// semantics as GenerateErrorMessageHash.
func GenerateStackTraceHash(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return internal.HexDigest([]byte(text))
}

func cacheKeyFor(fullyQualifiedName string, module string, paramHash *string, displayName string) string {
	var sb strings.Builder
	sb.WriteString(fullyQualifiedName)
	sb.WriteByte(0)
	sb.WriteString(module)
	sb.WriteByte(0)
	if paramHash != nil {
		sb.WriteByte(1)
		sb.WriteString(*paramHash)
	}
	sb.WriteByte(0)
	sb.WriteString(displayName)
	return sb.String()
}

func formatParameter(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case []any:
		inner := make([]string, 0, len(t))
		for _, e := range t {
			inner = append(inner, formatParameter(e))
		}
		return "[" + strings.Join(inner, ",") + "]"
	case fmt.Stringer:
		return t.String()
	default:
		// Integers and everything else format identically regardless of
		// locale.
		return fmt.Sprintf("%v", t)
	}
}
