package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(zap.NewNop(), 0)
	err := s.Add("cleanup", "not a cron", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestAddAcceptsDescriptors(t *testing.T) {
	s := New(nil, 0)
	require.NoError(t, s.Add("cleanup", "@hourly", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("nightly", "0 3 * * *", func(context.Context) error { return nil }))
	s.Start()
	s.Stop(context.Background())
	require.Len(t, s.cron.Entries(), 2)
}
