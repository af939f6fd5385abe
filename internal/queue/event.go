// Package queue defines message payloads exchanged over the message broker.
package queue

// NotifyQueueName is the durable queue violation notices are published to.
const NotifyQueueName = "violation.notify"

// ViolationNotice is published after a forfeiture commits, once per
// penalised participant.  It carries everything the mail transport needs
// without querying the primary database.
type ViolationNotice struct {
	PersonID        uint64 `json:"person_id"`
	Severity        int    `json:"severity"`
	Penalty         string `json:"penalty"`
	ReservationCode string `json:"reservation_code"`
	WindowEnd       string `json:"window_end"`
	Reason          string `json:"reason"`
	IssuedAt        string `json:"issued_at"`
}
