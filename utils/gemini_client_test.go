package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFence(t *testing.T) {
	plain := `{"conceptNameEn":"Party Night"}`

	assert.Equal(t, plain, stripCodeFence(plain))
	assert.Equal(t, plain, stripCodeFence("```json\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFence("```\n"+plain+"\n```"))
	assert.Equal(t, plain, stripCodeFence("  \n"+plain+"\n  "))
}
