package models

// User is the read-only account record owned by the auth layer. The
// engine only consumes it for display metadata and friendship checks.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}
