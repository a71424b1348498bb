package events

// Topic constants for domain events emitted by the platform.
const (
	TopicInvoiceIssued = "invoice.issued"
	TopicStockDepleted = "stock.depleted"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicInvoiceIssued,
		TopicStockDepleted,
	}
}
