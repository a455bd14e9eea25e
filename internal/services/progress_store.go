package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"textbook-reader/internal/logger"
	"textbook-reader/internal/models"
)

// ProgressStore keeps the last page reached per lesson in a JSON file
type ProgressStore struct {
	mu       sync.RWMutex
	filePath string
	data     *models.ProgressFile
	log      *logger.Logger
}

// NewProgressStore creates a new progress store and loads data
func NewProgressStore(dataPath string, log *logger.Logger) (*ProgressStore, error) {
	store := &ProgressStore{
		filePath: filepath.Join(dataPath, "progress.json"),
		data: &models.ProgressFile{
			Lessons: make(map[string]*models.Progress),
		},
		log: logger.OrNop(log),
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return store, nil
}

// Load reads progress.json or keeps the empty structure if the file doesn't exist
func (s *ProgressStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		s.log.Info("Progress file not found, starting empty", "path", s.filePath)
		return nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read progress file: %w", err)
	}

	var file models.ProgressFile
	if err := json.Unmarshal(data, &file); err != nil {
		// Use empty structure instead of failing
		s.log.Warn("Failed to parse progress.json, using empty structure", "error", err)
		return nil
	}
	if file.Lessons == nil {
		file.Lessons = make(map[string]*models.Progress)
	}

	s.data = &file
	s.log.Info("Loaded reading progress", "lessons", len(s.data.Lessons), "path", s.filePath)
	return nil
}

// save atomically writes progress.json (temp file → rename).
// Must be called with lock held
func (s *ProgressStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	tempPath := s.filePath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get returns the saved progress for a lesson
func (s *ProgressStore) Get(lessonID string) (models.Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data.Lessons[lessonID]
	if !ok {
		return models.Progress{}, false
	}
	return *p, true
}

// Save records page as the last page reached in a lesson
func (s *ProgressStore) Save(lessonID string, page int) error {
	if lessonID == "" {
		return fmt.Errorf("lessonId is required")
	}
	if page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", page)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Lessons[lessonID] = &models.Progress{
		LessonID:  lessonID,
		Page:      page,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.save(); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	s.log.Debug("Saved reading progress", "lesson_id", lessonID, "page", page)
	return nil
}
