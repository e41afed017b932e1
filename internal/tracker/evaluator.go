package tracker

import (
	"strings"
	"unicode/utf8"

	"github.com/RobinLiu69/MentionDodger/internal/domain"
)

// Evaluator decides whether an inbound message is a qualifying reply to an
// open mention. It is a pure predicate: deadline races belong to the
// scheduler and terminal writes to the ledger, so the evaluator checks
// neither timestamps nor lifecycle state beyond what it is handed.
type Evaluator struct{}

// IsValidResponse reports whether msg resolves mention: same channel, author
// is the mentioned user, and the trimmed content meets the minimum length.
// Length is counted in characters, not bytes, so multibyte replies are
// measured the same as ASCII ones. Callers only evaluate open mentions.
func (Evaluator) IsValidResponse(msg *domain.Message, mention *domain.Mention, minLength int) bool {
	if msg.ChannelID != mention.ChannelID {
		return false
	}
	if msg.AuthorID != mention.MentionedUserID {
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(msg.Content)) < minLength {
		return false
	}
	return true
}
