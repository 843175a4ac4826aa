package kafka

const (
	// TopicTicketChanges is the default topic for ticket row changes.
	TopicTicketChanges = "ticket.changes"

	HeaderOccurredAt = "occurred_at"
)
