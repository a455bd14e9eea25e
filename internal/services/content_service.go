package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"textbook-reader/internal/geometry"
	"textbook-reader/internal/logger"
	"textbook-reader/internal/models"
)

// ErrNotFound is returned when a chapter, lesson or page does not exist
var ErrNotFound = errors.New("not found")

// ContentSource is what the reading surface needs from content storage
type ContentSource interface {
	GetPageContent(ctx context.Context, lessonID string, pageNumber int) (models.Page, error)
	GetLesson(ctx context.Context, lessonID string) (*models.Lesson, error)
	GetChapters(ctx context.Context, textbookID string) ([]*models.Chapter, error)
}

// ContentService reads textbook content from SQLite
type ContentService struct {
	database *sql.DB
	log      *logger.Logger
}

// NewContentService creates a new content service
func NewContentService(database *sql.DB, log *logger.Logger) *ContentService {
	return &ContentService{
		database: database,
		log:      logger.OrNop(log),
	}
}

// GetLesson returns a lesson with its declared page count
func (cs *ContentService) GetLesson(ctx context.Context, lessonID string) (*models.Lesson, error) {
	query := `SELECT id, chapter_id, title, page_count FROM lessons WHERE id = ?`

	var lesson models.Lesson
	err := cs.database.QueryRowContext(ctx, query, lessonID).Scan(
		&lesson.ID,
		&lesson.ChapterID,
		&lesson.Title,
		&lesson.PageCount,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lesson %s: %w", lessonID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lesson: %w", err)
	}
	return &lesson, nil
}

// GetChapters returns the chapters of a textbook, each with its lessons
func (cs *ContentService) GetChapters(ctx context.Context, textbookID string) ([]*models.Chapter, error) {
	query := `SELECT c.id, c.textbook_id, c.title, c.position,
		l.id, l.title, l.page_count
		FROM chapters c LEFT JOIN lessons l ON l.chapter_id = c.id
		WHERE c.textbook_id = ?
		ORDER BY c.position, c.id, l.position, l.id`

	rows, err := cs.database.QueryContext(ctx, query, textbookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*models.Chapter
	var current *models.Chapter
	for rows.Next() {
		var ch models.Chapter
		var lessonID, lessonTitle sql.NullString
		var pageCount sql.NullInt64

		if err := rows.Scan(&ch.ID, &ch.TextbookID, &ch.Title, &ch.Position, &lessonID, &lessonTitle, &pageCount); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		if current == nil || current.ID != ch.ID {
			ch.Lessons = []*models.Lesson{}
			current = &ch
			chapters = append(chapters, current)
		}
		if lessonID.Valid {
			current.Lessons = append(current.Lessons, &models.Lesson{
				ID:        lessonID.String,
				ChapterID: ch.ID,
				Title:     lessonTitle.String,
				PageCount: int(pageCount.Int64),
			})
		}
	}
	return chapters, rows.Err()
}

// GetPageContent returns one page with its background and hotspots
func (cs *ContentService) GetPageContent(ctx context.Context, lessonID string, pageNumber int) (models.Page, error) {
	page := models.Page{LessonID: lessonID, Number: pageNumber, Hotspots: []models.Hotspot{}}

	var imageRef string
	var naturalWidth, naturalHeight float64
	err := cs.database.QueryRowContext(ctx,
		`SELECT image_ref, natural_width, natural_height FROM pages WHERE lesson_id = ? AND number = ?`,
		lessonID, pageNumber,
	).Scan(&imageRef, &naturalWidth, &naturalHeight)
	if err == sql.ErrNoRows {
		return models.Page{}, fmt.Errorf("page %s/%d: %w", lessonID, pageNumber, ErrNotFound)
	}
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to query page: %w", err)
	}
	if imageRef != "" {
		page.Background = &models.Background{
			Ref:           imageRef,
			NaturalWidth:  naturalWidth,
			NaturalHeight: naturalHeight,
		}
	}

	rows, err := cs.database.QueryContext(ctx,
		`SELECT id, kind, audio_ref, text, x, y, width, height, padding
		FROM hotspots WHERE lesson_id = ? AND page_number = ? ORDER BY id`,
		lessonID, pageNumber,
	)
	if err != nil {
		return models.Page{}, fmt.Errorf("failed to query hotspots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.Hotspot
		var kind string
		var r geometry.Rect
		if err := rows.Scan(&h.ID, &kind, &h.AudioRef, &h.Text, &r.X, &r.Y, &r.Width, &r.Height, &h.Padding); err != nil {
			return models.Page{}, fmt.Errorf("failed to scan hotspot: %w", err)
		}
		h.Kind = models.ParseHotspotKind(kind)
		h.Origin = r
		page.Hotspots = append(page.Hotspots, h)
	}
	if err := rows.Err(); err != nil {
		return models.Page{}, fmt.Errorf("failed to read hotspots: %w", err)
	}

	cs.log.Debug("Page content loaded", "lesson_id", lessonID, "page", pageNumber, "hotspots", len(page.Hotspots))
	return page, nil
}
