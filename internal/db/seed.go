package db

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"textbook-reader/internal/logger"
	"textbook-reader/internal/models"
)

// SeedFile is the YAML shape of a content import
type SeedFile struct {
	Chapters []SeedChapter `yaml:"chapters"`
}

// SeedChapter is one chapter and its lessons
type SeedChapter struct {
	ID         string       `yaml:"id"`
	TextbookID string       `yaml:"textbookId"`
	Title      string       `yaml:"title"`
	Position   int          `yaml:"position"`
	Lessons    []SeedLesson `yaml:"lessons"`
}

// SeedLesson is one lesson; its pages must be numbered 1..N
type SeedLesson struct {
	ID    string     `yaml:"id"`
	Title string     `yaml:"title"`
	Pages []SeedPage `yaml:"pages"`
}

// SeedPage is one page. A zero number means its position in the list
type SeedPage struct {
	Number        int           `yaml:"number"`
	Image         string        `yaml:"image"`
	NaturalWidth  float64       `yaml:"naturalWidth"`
	NaturalHeight float64       `yaml:"naturalHeight"`
	Hotspots      []SeedHotspot `yaml:"hotspots"`
}

// SeedHotspot is one hotspot; rect is [x, y, width, height] in natural pixels
type SeedHotspot struct {
	ID      string    `yaml:"id"`
	Kind    string    `yaml:"kind"`
	Audio   string    `yaml:"audio"`
	Text    string    `yaml:"text"`
	Rect    []float64 `yaml:"rect"`
	Padding float64   `yaml:"padding"`
}

// LoadSeedFile parses a YAML seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// ImageRefs lists the distinct page images the seed refers to
func (s *SeedFile) ImageRefs() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, ch := range s.Chapters {
		for _, lesson := range ch.Lessons {
			for _, page := range lesson.Pages {
				if page.Image == "" || seen[page.Image] {
					continue
				}
				seen[page.Image] = true
				refs = append(refs, page.Image)
			}
		}
	}
	return refs
}

// Seed upserts every chapter, lesson, page and hotspot in one transaction.
// Pages of a seeded lesson are replaced wholesale.
func Seed(database *sql.DB, seed *SeedFile, log *logger.Logger) error {
	log = logger.OrNop(log)

	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	pages, hotspots := 0, 0
	for ci, ch := range seed.Chapters {
		if ch.ID == "" || ch.TextbookID == "" {
			return fmt.Errorf("chapter %d: id and textbookId are required", ci)
		}
		_, err := tx.Exec(`INSERT INTO chapters (id, textbook_id, title, position) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET textbook_id = excluded.textbook_id, title = excluded.title, position = excluded.position`,
			ch.ID, ch.TextbookID, ch.Title, ch.Position)
		if err != nil {
			return fmt.Errorf("failed to insert chapter %s: %w", ch.ID, err)
		}

		for li, lesson := range ch.Lessons {
			if lesson.ID == "" {
				return fmt.Errorf("chapter %s lesson %d: id is required", ch.ID, li)
			}
			numbers, err := pageNumbers(lesson)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`INSERT INTO lessons (id, chapter_id, title, position, page_count) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET chapter_id = excluded.chapter_id, title = excluded.title,
				position = excluded.position, page_count = excluded.page_count`,
				lesson.ID, ch.ID, lesson.Title, li+1, len(lesson.Pages))
			if err != nil {
				return fmt.Errorf("failed to insert lesson %s: %w", lesson.ID, err)
			}
			if _, err := tx.Exec(`DELETE FROM hotspots WHERE lesson_id = ?`, lesson.ID); err != nil {
				return fmt.Errorf("failed to clear hotspots of %s: %w", lesson.ID, err)
			}
			if _, err := tx.Exec(`DELETE FROM pages WHERE lesson_id = ?`, lesson.ID); err != nil {
				return fmt.Errorf("failed to clear pages of %s: %w", lesson.ID, err)
			}

			for pi, page := range lesson.Pages {
				number := numbers[pi]
				_, err := tx.Exec(`INSERT INTO pages (lesson_id, number, image_ref, natural_width, natural_height) VALUES (?, ?, ?, ?, ?)`,
					lesson.ID, number, page.Image, page.NaturalWidth, page.NaturalHeight)
				if err != nil {
					return fmt.Errorf("failed to insert page %s/%d: %w", lesson.ID, number, err)
				}
				pages++

				for _, h := range page.Hotspots {
					if len(h.Rect) != 4 {
						return fmt.Errorf("hotspot on page %s/%d: rect needs [x, y, width, height]", lesson.ID, number)
					}
					id := h.ID
					if id == "" {
						id = uuid.New().String()
					}
					_, err := tx.Exec(`INSERT INTO hotspots (id, lesson_id, page_number, kind, audio_ref, text, x, y, width, height, padding)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
						id, lesson.ID, number, string(models.ParseHotspotKind(h.Kind)), h.Audio, h.Text,
						h.Rect[0], h.Rect[1], h.Rect[2], h.Rect[3], h.Padding)
					if err != nil {
						return fmt.Errorf("failed to insert hotspot %s: %w", id, err)
					}
					hotspots++
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	log.Info("Content seeded", "chapters", len(seed.Chapters), "pages", pages, "hotspots", hotspots)
	return nil
}

// pageNumbers resolves each page's number and requires the lesson to cover
// exactly 1..N, since page_count drives navigation.
func pageNumbers(lesson SeedLesson) ([]int, error) {
	if len(lesson.Pages) == 0 {
		return nil, fmt.Errorf("lesson %s: at least one page is required", lesson.ID)
	}
	numbers := make([]int, len(lesson.Pages))
	seen := make(map[int]bool, len(lesson.Pages))
	for pi, page := range lesson.Pages {
		number := page.Number
		if number == 0 {
			number = pi + 1
		}
		if number < 1 || number > len(lesson.Pages) {
			return nil, fmt.Errorf("lesson %s: page number %d outside 1..%d", lesson.ID, number, len(lesson.Pages))
		}
		if seen[number] {
			return nil, fmt.Errorf("lesson %s: page number %d used twice", lesson.ID, number)
		}
		seen[number] = true
		numbers[pi] = number
	}
	return numbers, nil
}
