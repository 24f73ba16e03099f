package models

// User is the engine's view of an account owned by the external user service.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"profile_picture"`
}
