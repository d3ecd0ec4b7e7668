package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProjectCode_Valid(t *testing.T) {
	for _, code := range []string{"CAP-001", "CAP001", "AB12", "REFINE-12345"} {
		assert.NoError(t, ValidateProjectCode(code), "should accept %q", code)
	}
}

func TestValidateProjectCode_Invalid(t *testing.T) {
	for _, code := range []string{"", "cap-001", "A-01", "CAP-1", "CAP-123456", "PROJECTX-01", "CAP--01"} {
		err := ValidateProjectCode(code)
		require.Error(t, err, "should reject %q", code)
		assert.True(t, IsValidation(err))
	}
}

func TestNewProject(t *testing.T) {
	p, err := NewProject("id", " cap-001 ", "Refinery upgrade", "eur", nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, "CAP-001", p.Code)
	assert.Equal(t, "EUR", p.Currency)
	assert.True(t, p.IsActive)

	_, err = NewProject("id", "CAP-001", "", "EUR", nil, testNow)
	assert.True(t, IsValidation(err))
	_, err = NewProject("id", "CAP-001", "X", "EURO", nil, testNow)
	assert.True(t, IsValidation(err))
}

func TestErrorFormatAndKind(t *testing.T) {
	err := invalidStateErr("budget", "b-1", "draft", "approve", "only budgets under review can be approved")
	assert.Equal(t, "budget b-1: approve (state draft): only budgets under review can be approved", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrValidation))

	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "b-1", de.ID)

	nf := NotFoundErr("wbs node", "n-9")
	assert.Equal(t, "wbs node n-9: not found", nf.Error())
	assert.True(t, IsNotFound(nf))
}
