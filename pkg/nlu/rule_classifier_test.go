package nlu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleClassifier_KnownKeywords(t *testing.T) {
	c := NewRuleClassifier()

	result, err := c.Classify(context.Background(), "I'd like to schedule a meeting for tomorrow")
	require.NoError(t, err)
	assert.Equal(t, IntentScheduling, result.Intent)
	assert.Equal(t, MethodRule, result.Method)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestRuleClassifier_NoHitsIsUnknown(t *testing.T) {
	c := NewRuleClassifier()

	result, err := c.Classify(context.Background(), "xyzzy plugh qwerty")
	require.NoError(t, err)
	assert.Equal(t, IntentUnknown, result.Intent)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestRuleClassifier_AlwaysExtractsEntities(t *testing.T) {
	c := NewRuleClassifier()

	result, err := c.Classify(context.Background(), "meu email é joao@example.com")
	require.NoError(t, err)
	assert.Contains(t, result.Entities.Emails, "joao@example.com")
}
