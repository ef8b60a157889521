package form

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(s string) string { return s }

func TestField_RequiredAndOptions(t *testing.T) {
	f := Select("difficulty", "Difficulty", "", []string{"Easy", "Average", "Hard"}, identity)
	f.Required = true

	var errs Errors
	f.Validate(&errs)
	require.Len(t, errs, 1)
	assert.Equal(t, "difficulty", errs[0].Field)

	errs = nil
	f.Set("Impossible").Validate(&errs)
	assert.True(t, errs.Has("difficulty"))

	errs = nil
	f.Set("Hard").Validate(&errs)
	assert.True(t, errs.Empty())
}

func TestField_OptionalZeroIsValid(t *testing.T) {
	f := Field[int]{Name: "count", Label: "Count"}

	var errs Errors
	f.Validate(&errs)
	assert.NoError(t, errs.Err())
}

func TestErrors_MapAndError(t *testing.T) {
	var errs Errors
	errs.Require("title", "Title", "  ")
	errs.Add("title", "Title is too long")
	errs.Add("duration", "Duration must be positive")

	m := errs.Map()
	assert.Len(t, m["title"], 2)
	assert.Len(t, m["duration"], 1)

	var target Errors
	require.True(t, errors.As(errs.Err(), &target))
	assert.Contains(t, errs.Error(), "duration: Duration must be positive")
}
