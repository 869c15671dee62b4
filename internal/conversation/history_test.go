package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_History_Bound(t *testing.T) {
	h := NewHistory(nil)
	for i := 0; i < 25; i++ {
		h.Add(NewMessage(RoleUser, fmt.Sprintf("message %d", i)))
	}

	require.Equal(t, MaxHistory, h.Len())
	msgs := h.Messages()
	assert.Equal(t, "message 5", msgs[0].Content, "oldest five were dropped")
	assert.Equal(t, "message 24", msgs[len(msgs)-1].Content)
}

func Test_History_LoadTrimsToBound(t *testing.T) {
	initial := make([]Message, 0, 30)
	for i := 0; i < 30; i++ {
		initial = append(initial, NewMessage(RoleUser, fmt.Sprintf("m%d", i)))
	}

	h := NewHistory(initial)
	require.Equal(t, MaxHistory, h.Len())
	assert.Equal(t, "m10", h.Messages()[0].Content)
}

func Test_History_Clear(t *testing.T) {
	h := NewHistory(nil)
	h.Add(NewMessage(RoleUser, "hi"))
	h.Clear()
	assert.Zero(t, h.Len())
	assert.Empty(t, h.Messages())
}

func Test_History_APITurns(t *testing.T) {
	h := NewHistory(nil)
	h.Add(NewMessage(RoleUser, "What's JKH trading at?"))
	h.Add(NewMessage(RoleAssistant, "JKH is at 150.50."))

	turns := h.APITurns()
	require.Len(t, turns, 2)
	assert.Equal(t, Turn{Role: "user", Text: "What's JKH trading at?"}, turns[0])
	assert.Equal(t, Turn{Role: "model", Text: "JKH is at 150.50."}, turns[1])
}

func Test_NewMessage_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		m := NewMessage(RoleUser, "x")
		require.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}
