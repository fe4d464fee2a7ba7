package users

import "time"

// User is the stable identity behind documents and messages. IDs are
// prefixed by provider ("google:<sub>", "guest:<id>"); guests are never
// persisted here.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	PictureURL string    `json:"pictureUrl"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
