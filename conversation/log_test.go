package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLog_OrderIsInsertionOrder(t *testing.T) {
	var l Log
	base := time.Unix(1000, 0)

	// Timestamps deliberately run backwards
	for i, id := range []string{"a", "b", "c"} {
		l.Append(Message{ID: id, Timestamp: base.Add(-time.Duration(i) * time.Hour)})
	}

	var ids []string
	for _, m := range l.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestLog_ReplaceAllAndClear(t *testing.T) {
	var l Log
	l.Append(Message{ID: "old"})

	fresh := []Message{{ID: "x"}, {ID: "y"}}
	l.ReplaceAll(fresh)
	fresh[0].ID = "mutated"

	msgs := l.Messages()
	assert.Len(t, msgs, 2)
	assert.Equal(t, "x", msgs[0].ID, "log keeps its own copy")

	l.Clear()
	assert.Equal(t, 0, l.Len())
	_, ok := l.Last()
	assert.False(t, ok)
}

func TestLog_LastReply(t *testing.T) {
	var l Log
	l.Append(Message{ID: "1", Role: RoleAI})
	l.Append(Message{ID: "2", Role: RoleUser})
	l.Append(Message{ID: "3", Role: RoleSystem})

	m, ok := l.LastReply()
	assert.True(t, ok)
	assert.Equal(t, "1", m.ID)
}

type listOnly struct {
	fakeBackend
	sessions []Session
}

func (l *listOnly) ListSessions(ctx context.Context, identity string) []Session {
	return l.sessions
}

func TestDirectory(t *testing.T) {
	var d Directory
	b := &listOnly{sessions: []Session{{ID: "S1"}, {ID: "S2"}, {ID: "S3"}}}

	assert.Len(t, d.Refresh(context.Background(), b, "UID_1"), 3)

	assert.True(t, d.Remove("S2"))
	assert.False(t, d.Remove("S2"))
	assert.Equal(t, []Session{{ID: "S1"}, {ID: "S3"}}, d.List())

	// Refresh is last-write-wins, the removed entry comes back
	b.sessions = []Session{{ID: "S2"}}
	assert.Equal(t, []Session{{ID: "S2"}}, d.Refresh(context.Background(), b, "UID_1"))
}
