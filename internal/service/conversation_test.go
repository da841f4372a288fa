package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentchat-ai/conversation-service/internal/model"
	"github.com/agentchat-ai/conversation-service/internal/store"
	"github.com/agentchat-ai/conversation-service/pkg/logger"
)

type recordingEvictor struct {
	forgotten []string
}

func (r *recordingEvictor) Forget(threadID string) {
	r.forgotten = append(r.forgotten, threadID)
}

func newConversationService(evictor StateEvictor) (*ConversationService, store.Store) {
	st := store.NewMemoryStore(nil)
	return NewConversationService(st, evictor, nil, logger.NewNop()), st
}

func seedConversations(t *testing.T, st store.Store, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		conv, err := st.Create(context.Background(), "")
		require.NoError(t, err)
		_, err = st.AppendMessage(context.Background(), conv.ThreadID, strings.Repeat("long message content ", 10), model.SenderUser)
		require.NoError(t, err)
		ids = append(ids, conv.ThreadID)
	}
	return ids
}

func TestListPaginationMetadata(t *testing.T) {
	svc, st := newConversationService(nil)
	seedConversations(t, st, 5)

	summaries, pagination, err := svc.List(context.Background(), 1, 2)
	require.NoError(t, err)

	assert.Len(t, summaries, 2)
	assert.Equal(t, 1, pagination.Current)
	assert.Equal(t, 3, pagination.Total)
	assert.Equal(t, 2, pagination.Count)
	assert.Equal(t, 5, pagination.TotalRecords)

	// Last page holds the remainder.
	summaries, pagination, err = svc.List(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, 1, pagination.Count)
}

func TestListCapsOversizedLimitInMetadata(t *testing.T) {
	svc, st := newConversationService(nil)
	for i := 0; i < maxPageSize+1; i++ {
		_, err := st.Create(context.Background(), "")
		require.NoError(t, err)
	}

	summaries, pagination, err := svc.List(context.Background(), 1, 200)
	require.NoError(t, err)

	// The store caps page size at 100; the metadata must reflect the
	// applied limit, not the requested one.
	assert.Len(t, summaries, maxPageSize)
	assert.Equal(t, maxPageSize, pagination.Count)
	assert.Equal(t, 2, pagination.Total)
	assert.Equal(t, maxPageSize+1, pagination.TotalRecords)
}

func TestListTruncatesPreview(t *testing.T) {
	svc, st := newConversationService(nil)
	seedConversations(t, st, 1)

	summaries, _, err := svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].LastMessage)

	preview := summaries[0].LastMessage.Content
	assert.Equal(t, listPreviewLength+len("..."), len(preview))
	assert.True(t, strings.HasSuffix(preview, "..."))
}

func TestSearchUsesLongerPreview(t *testing.T) {
	svc, st := newConversationService(nil)
	seedConversations(t, st, 1)

	summaries, pagination, err := svc.Search(context.Background(), "long message", 1, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, pagination.TotalRecords)

	preview := summaries[0].LastMessage.Content
	assert.Equal(t, searchPreviewLength+len("..."), len(preview))
}

func TestDeleteEvictsResponderState(t *testing.T) {
	evictor := &recordingEvictor{}
	svc, st := newConversationService(evictor)
	ids := seedConversations(t, st, 1)

	require.NoError(t, svc.Delete(context.Background(), ids[0]))
	assert.Equal(t, []string{ids[0]}, evictor.forgotten)

	err := svc.Delete(context.Background(), ids[0])
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, evictor.forgotten, 1)
}

func TestCreateAndRename(t *testing.T) {
	svc, _ := newConversationService(nil)

	conv, err := svc.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, conv.Title)

	renamed, err := svc.Rename(context.Background(), conv.ThreadID, "Fresh Name")
	require.NoError(t, err)
	assert.Equal(t, "Fresh Name", renamed.Title)
}
