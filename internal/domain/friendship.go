package domain

import "time"

const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

type Friendship struct {
	UserID    string
	FriendID  string
	Status    string
	CreatedAt time.Time
}
