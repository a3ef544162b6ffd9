package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredential_MasksValue(t *testing.T) {
	credential := NewCredential(StepAPIKeyName, "sk-secret-value", "env")

	assert.Equal(t, "sk-s", credential.Prefix())
	assert.Equal(t, "Bearer sk-secret-value", credential.BearerToken())
	assert.NotContains(t, credential.String(), "secret")
	assert.NotContains(t, fmt.Sprintf("%v", credential), "secret")
	assert.NotContains(t, fmt.Sprintf("%#v", credential), "secret")
	assert.Equal(t, "env", credential.Source())
}

func TestCredential_ShortAndEmpty(t *testing.T) {
	assert.Equal(t, "abc", NewCredential("K", "abc", "env").Prefix())

	empty := NewCredential("K", "", "")
	assert.True(t, empty.IsZero())
	assert.Contains(t, empty.String(), "<empty>")
}
