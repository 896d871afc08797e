package models

import "github.com/google/uuid"

type Role struct {
	ID   uuid.UUID
	Name string

	// Permission names granted by the role, deduplicated.
	Permissions []string
}
