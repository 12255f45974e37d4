package models

import "time"

const (
	RoleClient = "ROLE_CLIENT"
	RoleAdmin  = "ROLE_ADMIN"
)

type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	BirthDate    string    `json:"birth_date"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
	Password  string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ClientSummary is the owner projection embedded in order responses.
type ClientSummary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
