package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who wrote a turn.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleBot      Role = "bot"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleBot
}

// VoicePlaceholder is stored as the customer's turn when a voice note could
// not be transcribed.
const VoicePlaceholder = "[voice message]"

// DefaultHistoryLimit bounds how many prior turns feed a prompt.
const DefaultHistoryLimit = 20

// Turn is one immutable message in a conversation transcript.
type Turn struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func validateTurn(role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("conversation: invalid role %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("conversation: empty %s turn", role)
	}
	return nil
}

// reverseTurns flips a newest-first page into chronological order.
func reverseTurns(turns []Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
