// Package polls holds the poll session domain: the shared document model,
// the store contract it is persisted through, and the service that applies
// session rules on top of it.
package polls

// Nomination is a single option proposed by a participant.
type Nomination struct {
	UserID string `json:"userID"`
	Text   string `json:"text"`
}

// Poll is the shared document for one voting session. The store owns the
// canonical copy; everything handed out by Service methods is a snapshot.
type Poll struct {
	ID            string                `json:"id"`
	Topic         string                `json:"topic"`
	VotesPerVoter int                   `json:"votesPerVoter"`
	AdminID       string                `json:"adminID"`
	Participants  map[string]string     `json:"participants"`
	Nominations   map[string]Nomination `json:"nominations"`
	Rankings      map[string][]string   `json:"rankings"`
	HasStarted    bool                  `json:"hasStarted"`
}
