package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name      string
	sentText  string
	returnID  string
	returnErr error
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) Send(_ context.Context, _ string, text string) (string, error) {
	s.sentText = text
	return s.returnID, s.returnErr
}

func TestDispatcher_RoutesToRegisteredAdapter(t *testing.T) {
	wa := &stubAdapter{name: "whatsapp", returnID: "id-1"}
	ig := &stubAdapter{name: "instagram", returnID: "id-2"}
	d := NewDispatcher(wa, ig)

	id, err := d.Send(context.Background(), "instagram", "user-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "id-2", id)
	assert.Equal(t, "hello", ig.sentText)
	assert.Empty(t, wa.sentText)
}

func TestDispatcher_UnknownChannelErrors(t *testing.T) {
	d := NewDispatcher(&stubAdapter{name: "whatsapp"})

	_, err := d.Send(context.Background(), "telegram", "user-1", "hello")
	assert.Error(t, err)
}
