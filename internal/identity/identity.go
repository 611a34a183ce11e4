package identity

import (
	"fmt"
	"strings"
)

// Participant identifies a chat user known to the game.
type Participant struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DisplayName formats the participant for result messages.
// Prefers "First Last (@username)", falling back to whichever
// parts are present, and finally to the raw id.
func (p Participant) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	switch {
	case name != "" && p.Username != "":
		return fmt.Sprintf("%s (@%s)", name, p.Username)
	case name != "":
		return name
	case p.Username != "":
		return "@" + p.Username
	default:
		return fmt.Sprintf("player %d", p.ID)
	}
}
