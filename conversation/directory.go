package conversation

import "context"

// Session is a directory entry. UpdatedAt is unix millis as sent by the backend.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Preview   string `json:"preview"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Directory caches the sessions visible to the current identity.
type Directory struct {
	sessions []Session
}

// Refresh fetches the full list and replaces the cache wholesale.
func (d *Directory) Refresh(ctx context.Context, b Backend, identity string) []Session {
	d.Replace(b.ListSessions(ctx, identity))
	return d.List()
}

func (d *Directory) Replace(sessions []Session) {
	d.sessions = append([]Session(nil), sessions...)
}

// Remove drops id from the local cache only. The backend is not told.
func (d *Directory) Remove(id string) bool {
	n := 0
	removed := false
	for _, s := range d.sessions {
		if s.ID == id {
			removed = true
			continue
		}
		d.sessions[n] = s
		n++
	}
	d.sessions = d.sessions[:n]
	return removed
}

func (d *Directory) List() []Session {
	return append([]Session(nil), d.sessions...)
}
