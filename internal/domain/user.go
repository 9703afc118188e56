package domain

import "time"

// Roles conocidos por la plataforma.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Avatar referencia una imagen subida al media store.
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       *Avatar   `json:"avatar,omitempty"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsValidRole indica si el rol es uno de los enumerados.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
