package entities

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationInvitation         NotificationType = "invitation"
	NotificationInvitationAccepted NotificationType = "invitation_accepted"
	NotificationCardMoved          NotificationType = "card_moved"
	NotificationCardAssigned       NotificationType = "card_assigned"
	NotificationDueDate            NotificationType = "due_date"
	NotificationMemberRemoved      NotificationType = "member_removed"
)

// Notification is a per-user inbox entry.
type Notification struct {
	ID          uuid.UUID        `json:"id" db:"id" bson:"_id"`
	UserID      uuid.UUID        `json:"userId" db:"user_id" bson:"user_id"`
	Title       string           `json:"title" db:"title" bson:"title"`
	Description string           `json:"description" db:"description" bson:"description"`
	Type        NotificationType `json:"type" db:"type" bson:"type"`
	TargetID    string           `json:"targetId" db:"target_id" bson:"target_id"`
	Read        bool             `json:"read" db:"read" bson:"read"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at" bson:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at" bson:"updated_at"`
}

type ActivityType string

const (
	ActivityBoardCreated       ActivityType = "board_created"
	ActivityBoardUpdated       ActivityType = "board_updated"
	ActivityBoardDeleted       ActivityType = "board_deleted"
	ActivityColumnAdded        ActivityType = "column_added"
	ActivityColumnUpdated      ActivityType = "column_updated"
	ActivityColumnDeleted      ActivityType = "column_deleted"
	ActivityColumnMoved        ActivityType = "column_moved"
	ActivityCardAdded          ActivityType = "card_added"
	ActivityCardUpdated        ActivityType = "card_updated"
	ActivityCardDeleted        ActivityType = "card_deleted"
	ActivityCardMoved          ActivityType = "card_moved"
	ActivityMemberInvited      ActivityType = "member_invited"
	ActivityMemberJoined       ActivityType = "member_joined"
	ActivityMemberRemoved      ActivityType = "member_removed"
	ActivityMemberRoleChanged  ActivityType = "member_role_changed"
	ActivityInvitationRejected ActivityType = "invitation_rejected"
)

// Activity is an append-only audit entry.
type Activity struct {
	ID          uuid.UUID    `json:"id" db:"id" bson:"_id"`
	UserID      uuid.UUID    `json:"userId" db:"user_id" bson:"user_id"`
	UserName    string       `json:"userName" db:"user_name" bson:"user_name"`
	Type        ActivityType `json:"type" db:"type" bson:"type"`
	BoardID     uuid.UUID    `json:"boardId" db:"board_id" bson:"board_id"`
	BoardTitle  string       `json:"boardTitle" db:"board_title" bson:"board_title"`
	Description string       `json:"description" db:"description" bson:"description"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at" bson:"created_at"`
}
