package conversation

// Log is the ordered message sequence of the active session. Insertion order
// is the only ordering; timestamps are informational.
type Log struct {
	msgs []Message
}

func (l *Log) Append(m Message) {
	l.msgs = append(l.msgs, m)
}

// ReplaceAll swaps in a loaded session history.
func (l *Log) ReplaceAll(msgs []Message) {
	l.msgs = append([]Message(nil), msgs...)
}

func (l *Log) Clear() {
	l.msgs = nil
}

func (l *Log) Len() int {
	return len(l.msgs)
}

// Messages returns a copy in insertion order.
func (l *Log) Messages() []Message {
	return append([]Message(nil), l.msgs...)
}

func (l *Log) Last() (Message, bool) {
	if len(l.msgs) == 0 {
		return Message{}, false
	}
	return l.msgs[len(l.msgs)-1], true
}

// LastReply returns the most recent ai message.
func (l *Log) LastReply() (Message, bool) {
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].Role == RoleAI {
			return l.msgs[i], true
		}
	}
	return Message{}, false
}
