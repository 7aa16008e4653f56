package domain

import (
	"strings"
	"time"
)

// Notification is a push message that was sent to a user and can be marked read
type Notification struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	UserID    string     `json:"user_id" gorm:"index;not null"`
	Title     string     `json:"title" gorm:"not null"`
	Body      string     `json:"body"`
	Link      string     `json:"link,omitempty"`
	IsRead    bool       `json:"is_read" gorm:"default:false;index"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Payload keys carried in the push data map
const (
	DataKeyLink           = "link"
	DataKeyNotificationID = "notificationId"
	// Older senders put the deep link in click_action.
	DataKeyClickAction = "click_action"
)

// NotificationAction is the untrusted payload of a tapped notification
type NotificationAction struct {
	Link           string `json:"link,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
}

// ActionFromData extracts the action fields from an opaque push payload.
// Missing keys yield empty fields; nothing is validated here.
func ActionFromData(data map[string]string) NotificationAction {
	if data == nil {
		return NotificationAction{}
	}
	link := data[DataKeyLink]
	if strings.TrimSpace(link) == "" {
		link = data[DataKeyClickAction]
	}
	return NotificationAction{
		Link:           link,
		NotificationID: strings.TrimSpace(data[DataKeyNotificationID]),
	}
}

// DestinationKind tells the navigation host how to open a destination
type DestinationKind string

const (
	DestinationHome     DestinationKind = "home"
	DestinationExternal DestinationKind = "external"
	DestinationAppRoute DestinationKind = "app_route"
)

// Destination is where a tapped notification leads
type Destination struct {
	Kind   DestinationKind `json:"kind"`
	Target string          `json:"target"`
}

func HomeDestination(route string) Destination {
	return Destination{Kind: DestinationHome, Target: route}
}

func ExternalDestination(url string) Destination {
	return Destination{Kind: DestinationExternal, Target: url}
}

func AppRouteDestination(route string) Destination {
	return Destination{Kind: DestinationAppRoute, Target: route}
}
