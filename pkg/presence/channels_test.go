package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelNames_AreNamespacedAndDistinct(t *testing.T) {
	assert.Equal(t, "conversation:u1:u2", ConversationChannel("u1:u2"))
	assert.Equal(t, "user:u1", UserChannel("u1"))
	assert.Equal(t, "agent-panel:u1:legal", AgentPanelChannel("u1", "legal"))
	assert.NotEqual(t, ConversationChannel("x"), UserChannel("x"))
	assert.Equal(t, "handover-queue", HandoverQueueChannel)
}
