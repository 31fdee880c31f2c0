// Package event fans out typed events from a single producer to any number
// of subscribers without letting a slow subscriber stall the producer.
package event

import "time"

// Event is implemented by values that carry a type name and an occurrence
// time. Bus uses Type for metrics and type-filtered subscriptions.
type Event interface {
	Type() string
	Timestamp() time.Time
}
