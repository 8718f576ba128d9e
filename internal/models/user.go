package models

import "time"

// User is a credential record in the auth document store. The email is
// unique; the password field holds a bcrypt hash and never leaves the
// server.
type User struct {
	ID       string    `json:"id" bson:"_id"`
	Email    string    `json:"email" bson:"email"`
	Password string    `json:"-" bson:"password"`
	Created  time.Time `json:"created" bson:"created"`
}

// Credentials is the register/login request payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
