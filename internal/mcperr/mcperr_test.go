package mcperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_ExtractsCodeFromWrappedError(t *testing.T) {
	base := New(ParseError, "malformed JSON")
	wrapped := errors.New("outer: " + base.Error())
	assert.Equal(t, Internal, CodeOf(wrapped), "a plain error with no *Error in its chain should report Internal")
	assert.Equal(t, ParseError, CodeOf(base))
	assert.Equal(t, ParseError, CodeOf(fmt.Errorf("outer: %w", base)))
}

func TestWrap_PreservesCauseViaUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(StartupTimeout, cause, "server did not become ready")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StartupTimeout, CodeOf(err))
}

func TestWithPathAndSuggestion_DoNotMutateOriginal(t *testing.T) {
	base := New(PatternUnknown, "unknown pattern")
	withPath := base.WithPath("$.tools[0].name")
	withSuggestion := withPath.WithSuggestion("did you mean: type?")

	assert.Empty(t, base.Path)
	assert.Empty(t, base.Suggestion)
	assert.Equal(t, "$.tools[0].name", withPath.Path)
	assert.Equal(t, "did you mean: type?", withSuggestion.Suggestion)
}
