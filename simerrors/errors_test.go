package simerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedNames(t *testing.T) {
	err := fmt.Errorf("section .text: frep at 0x80000010: %w", ErrFrepNested)
	assert.True(t, errors.Is(err, ErrFrepNested))
	assert.Equal(t, "FrepNested", GetErrorName(err))
	assert.Equal(t, "F1", GetErrorCode(err))
	assert.Equal(t, "F1_FrepNested", GetErrorCodeWithName(err))
	assert.Equal(t, "FREP inside the body of another FREP.", GetErrorDesc(err))
}

func TestForeignErrors(t *testing.T) {
	assert.Equal(t, "No Error", GetErrorName(nil))
	assert.Equal(t, "plain", GetErrorName(errors.New("plain")))
	assert.Equal(t, "", GetErrorCode(errors.New("plain")))
	assert.Equal(t, []string{"Escape", "IllegalBranch"}, GetErrorNames([]error{ErrEscape, ErrIllegalBranch}))
}
