package baseerror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Hierarchy(t *testing.T) {
	base := New("timed out")
	child := base.New("no response")

	assert.Equal(t, "timed out: no response", child.Error())
	assert.ErrorIs(t, child, base)
	assert.False(t, errors.Is(base, child))
}
