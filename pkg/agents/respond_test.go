package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnichat/relay/pkg/domain"
)

func TestToolSpecs_OnlyIncludesAgentsGrantedTools(t *testing.T) {
	concierge := domain.AgentDefinition{Key: "concierge"}
	assert.Empty(t, toolSpecs(concierge))

	sdr := domain.AgentDefinition{Key: "sdr", AllowedTools: []domain.Tool{domain.ToolScheduleMeeting, domain.ToolFetchAvailability}}
	specs := toolSpecs(sdr)
	assert.Len(t, specs, 2)

	names := map[string]bool{}
	for _, s := range specs {
		names[s.Name] = true
	}
	assert.True(t, names[string(domain.ToolScheduleMeeting)])
	assert.True(t, names[string(domain.ToolFetchAvailability)])
}
