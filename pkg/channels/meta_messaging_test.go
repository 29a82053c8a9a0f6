package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetaWebhook_SkipsReceiptsWithoutMessageID(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"messaging": [
				{"sender": {"id": "u1"}, "message": {}},
				{"sender": {"id": "u1"}, "message": {"mid": "m1", "text": "hey"}}
			]
		}]
	}`)

	inbound, err := parseMetaWebhook("instagram", body)
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	assert.Equal(t, "m1", inbound[0].ChannelMessageID)
	assert.Equal(t, "hey", inbound[0].Text)
	assert.Equal(t, "instagram", inbound[0].Channel)
}

func TestParseInstagramWebhook_AndParseMessengerWebhook_TagCorrectChannel(t *testing.T) {
	body := []byte(`{"entry":[{"messaging":[{"sender":{"id":"u1"},"message":{"mid":"m1","text":"hi"}}]}]}`)

	ig, err := ParseInstagramWebhook(body)
	require.NoError(t, err)
	require.Len(t, ig, 1)
	assert.Equal(t, "instagram", ig[0].Channel)

	fb, err := ParseMessengerWebhook(body)
	require.NoError(t, err)
	require.Len(t, fb, 1)
	assert.Equal(t, "messenger", fb[0].Channel)
}
