package domain

// Content-free notices sent in place of a suppressed message.
const (
	BlockedFromServer = "[BLOCKED SPAM - Outgoing from Server]"
	BlockedFromClient = "[BLOCKED SPAM - Outgoing from Client]"

	// Prefixes used for the local rendering of a suppressed message.
	BlockedIncomingPrefix = "[BLOCKED SPAM] "
	BlockedOutgoingPrefix = "[BLOCKED SPAM - Outgoing] "
)

// IsBlockedNotice reports whether text is exactly one of the notices. Anything
// longer may carry content and has to go through classification.
func IsBlockedNotice(text string) bool {
	return text == BlockedFromServer || text == BlockedFromClient
}
