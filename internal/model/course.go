package model

import (
	"encoding/json"
	"time"
)

type Lesson struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
	// Duration is in minutes.
	Duration int `json:"duration,omitempty"`
	// OrderIndex is the position within the course, counted from 0.
	OrderIndex int `json:"orderIndex"`
}

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creatorId"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Level       string    `json:"level,omitempty"`
	Lessons     []Lesson  `json:"lessons,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Level       int       `json:"level"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

type Progress struct {
	CourseID         string   `json:"courseId"`
	CompletedLessons []string `json:"completedLessons"`
	Percentage       float64  `json:"percentage"`
}

// Comment is a course discussion entry. The backend embeds the author as
// "User".
type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId,omitempty"`
	User      *User     `json:"User,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Rating struct {
	UserID  string `json:"userId,omitempty"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// Envelope is the backend's generic response shape.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// AuthPayload is returned by the login, register and current-user endpoints.
type AuthPayload struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}
