package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationType описывает тип доменного уведомления.
type NotificationType string

const (
	NotificationPurchaseCreated     NotificationType = "purchase.created"
	NotificationEventCancelled      NotificationType = "event.cancelled"
	NotificationAttendanceConfirmed NotificationType = "attendance.confirmed"
	NotificationAttendanceCancelled NotificationType = "attendance.cancelled"
)

// Notification описывает доменное уведомление, публикуемое после фиксации транзакции.
type Notification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	OccurredAt time.Time        `json:"occurredAt"`
	UserID     int64            `json:"userId"`
	EventID    int64            `json:"eventId"`
	Quantity   int              `json:"quantity,omitempty"`
	Amount     decimal.Decimal  `json:"amount"`
	Refunds    []Refund         `json:"refunds,omitempty"`
}
