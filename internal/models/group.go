package models

import "time"

// Group privacy values.
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

// Group represents a chat group. AdminID is immutable after creation and the
// admin is always a member.
type Group struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	Privacy     string    `db:"privacy" json:"privacy"`
	AdminID     int       `db:"admin_id" json:"admin_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GroupUpdate carries the admin-editable fields; nil means unchanged.
type GroupUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Privacy     *string `json:"privacy"`
}

// GroupDetail is the API view of a group including its member list and the
// current online snapshot.
type GroupDetail struct {
	Group
	Members       []User `json:"members"`
	OnlineMembers []User `json:"online_members"`
}
