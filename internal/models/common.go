package models

import (
	"time"
)

// Notification is an outbox row consumed by the external dispatcher
type Notification struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	Title            string     `gorm:"not null" json:"title"`
	Message          string     `gorm:"type:text;not null" json:"message"`
	NotificationType *string    `gorm:"index" json:"notification_type"`
	EntityID         *uint      `json:"entity_id,omitempty"`
	ReadAt           *time.Time `gorm:"index" json:"read_at"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// Notification type constants
const (
	NotificationTypeFortnightPaid      = "fortnight_paid"
	NotificationTypeAdjustmentSubmit   = "adjustment_submitted"
	NotificationTypeAdjustmentApproved = "adjustment_approved"
	NotificationTypeAdjustmentRejected = "adjustment_rejected"
	NotificationTypeAdjustmentPaid     = "adjustment_paid"
	NotificationTypeItemsAging         = "items_aging"
	NotificationTypePaymentRetained    = "payment_retained"
	NotificationTypePaymentReleased    = "payment_released"
	NotificationTypeSystemError        = "system_error"
)

// IsRead returns true if notification has been read
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// MarkAsRead marks the notification as read
func (n *Notification) MarkAsRead() {
	now := time.Now()
	n.ReadAt = &now
}

// NotificationResponse is the JSON response format
type NotificationResponse struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType *string    `json:"notification_type"`
	EntityID         *uint      `json:"entity_id,omitempty"`
	Read             bool       `json:"read"`
	ReadAt           *time.Time `json:"read_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ToResponse converts Notification to NotificationResponse
func (n *Notification) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:               n.ID,
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: n.NotificationType,
		EntityID:         n.EntityID,
		Read:             n.IsRead(),
		ReadAt:           n.ReadAt,
		CreatedAt:        n.CreatedAt,
	}
}

// User roles carried in identity claims
const (
	RoleMaster = "master"
	RoleBroker = "broker"
)
