package models

import "time"

// Lesson represents a readable unit with a declared page count
type Lesson struct {
	ID        string `json:"id"`
	ChapterID string `json:"chapterId"`
	Title     string `json:"title"`
	PageCount int    `json:"pageCount"`
}

// Chapter represents a chapter of a textbook
type Chapter struct {
	ID         string    `json:"id"`
	TextbookID string    `json:"textbookId"`
	Title      string    `json:"title"`
	Position   int       `json:"position"`
	Lessons    []*Lesson `json:"lessons"`
}

// Progress represents the last page a reader reached in a lesson
type Progress struct {
	LessonID  string    `json:"lessonId"`
	Page      int       `json:"page"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProgressFile represents the root structure of progress.json
type ProgressFile struct {
	Lessons map[string]*Progress `json:"lessons"`
}
