package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/relay/pkg/handover"
	"github.com/omnichat/relay/pkg/store"
)

func TestRunner_RegisterUploadExpiry_RejectsBadSchedule(t *testing.T) {
	r := NewRunner()
	err := r.RegisterUploadExpiry("not-a-cron-expression", (*store.UploadRepo)(nil))
	assert.Error(t, err)
}

func TestRunner_RegisterHandoverSLA_NilNotifierIsNoop(t *testing.T) {
	r := NewRunner()
	err := r.RegisterHandoverSLA("*/5 * * * *", (*handover.Service)(nil), nil)
	require.NoError(t, err)
}

func TestRunner_StartStop(t *testing.T) {
	r := NewRunner()
	require.NoError(t, r.RegisterUploadExpiry("*/5 * * * *", (*store.UploadRepo)(nil)))
	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}
