// Package ids generates the identifiers used throughout a poll session.
// Poll codes are short and human-shareable; user and nomination IDs only
// need to be collision-resistant within one poll.
package ids

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const (
	pollAlphabet       = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	nominationAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	PollIDLength       = 6
	NominationIDLength = 8
)

// NewPollID returns a 6 character uppercase code suitable for sharing out of band.
func NewPollID() string {
	return fromAlphabet(pollAlphabet, PollIDLength)
}

// NewUserID returns a unique participant identifier.
func NewUserID() string {
	return uuid.NewString()
}

// NewNominationID returns a short identifier unique within a poll.
func NewNominationID() string {
	return fromAlphabet(nominationAlphabet, NominationIDLength)
}

func fromAlphabet(alphabet string, n int) string {
	buf := make([]byte, n)
	// rand.Read never returns an error on supported platforms
	_, _ = rand.Read(buf)
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}
