package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationListGetDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.ingestDOCX(t, "alice", aliceCV...)
	bob := env.ingestDOCX(t, "bob", "Bob Jones is a data engineer who writes Python and SQL.")

	chat := env.chat()
	_, err := chat.Ask(ctx, alice.ID, "Where does she live?")
	require.NoError(t, err)
	_, err = chat.Ask(ctx, bob.ID, "What does he write?")
	require.NoError(t, err)

	svc := NewConversationService(env.exchanges)
	all, err := svc.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forBob, err := svc.List(ctx, &bob.ID)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Equal(t, "What does he write?", forBob[0].Question)

	require.NoError(t, svc.Delete(ctx, forBob[0].ID))
	_, err = svc.Get(ctx, forBob[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, forBob[0].ID), ErrNotFound)
}
