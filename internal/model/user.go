package model

import "time"

// User is a registered account. PasswordHash carries the bcrypt hash and is
// never serialized; persistence layers that need it on disk map it to their
// own column or field.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"createdAt"`
}
