package model

import "time"

// Class represents a school class group.
type Class struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	GradeLevel int       `json:"grade_level"`
	Major      string    `json:"major"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateClassRequest is the payload for creating a class.
type CreateClassRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=100"`
	GradeLevel int    `json:"grade_level" binding:"required,min=1,max=12"`
	Major      string `json:"major" binding:"omitempty,max=50"`
}
