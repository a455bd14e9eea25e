package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"textbook-reader/internal/config"
	"textbook-reader/internal/db"
	"textbook-reader/internal/models"
	"textbook-reader/internal/services"
)

type testServer struct {
	router   *mux.Router
	reader   *services.ReaderService
	progress *services.ProgressStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	database, err := db.Open(filepath.Join(dir, "reader.db"), nil)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	seed := &db.SeedFile{Chapters: []db.SeedChapter{{
		ID:         "ch-animals",
		TextbookID: "tb-1",
		Title:      "Animals",
		Lessons: []db.SeedLesson{{
			ID:    "farm",
			Title: "At the farm",
			Pages: []db.SeedPage{
				{
					Image: "farm/p1.png",
					Hotspots: []db.SeedHotspot{
						{ID: "cow", Kind: "dialogue", Audio: "audio/cow.mp3", Rect: []float64{100, 100, 200, 100}},
					},
				},
				{},
			},
		}},
	}}}
	if err := db.Seed(database, seed, nil); err != nil {
		t.Fatalf("db.Seed: %v", err)
	}

	assets := filepath.Join(dir, "assets")
	if err := os.MkdirAll(filepath.Join(assets, "farm"), 0755); err != nil {
		t.Fatalf("mkdir assets: %v", err)
	}
	f, err := os.Create(filepath.Join(assets, "farm", "p1.png"))
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 800, 600))); err != nil {
		t.Fatalf("encode image: %v", err)
	}
	f.Close()

	progress, err := services.NewProgressStore(filepath.Join(dir, "data"), nil)
	if err != nil {
		t.Fatalf("NewProgressStore: %v", err)
	}
	content := services.NewContentService(database, nil)
	probe := services.NewImageProbe(assets, nil)
	cfg := config.Default().Reader
	cfg.FlipDuration = 0
	reader := services.NewReaderService(content, probe, progress, cfg, nil)
	t.Cleanup(reader.Shutdown)

	router := SetupRoutes(
		NewContentHandler(content, nil),
		NewProgressHandler(progress, nil),
		NewReaderHandler(reader, nil),
		NewStaticHandler(probe.Root()),
	)
	return &testServer{router: router, reader: reader, progress: progress}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestListChapters(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/api/textbooks/tb-1/chapters", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	var chapters []models.Chapter
	if err := json.NewDecoder(rec.Body).Decode(&chapters); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(chapters) != 1 || len(chapters[0].Lessons) != 1 || chapters[0].Lessons[0].PageCount != 2 {
		t.Fatalf("chapters: got=%+v", chapters)
	}

	rec = ts.do(t, "GET", "/api/textbooks/none/chapters", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty textbook: status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestGetLessonAndPage(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, "GET", "/api/lessons/farm", ""); rec.Code != http.StatusOK {
		t.Fatalf("lesson status: want=200 got=%d", rec.Code)
	}
	if rec := ts.do(t, "GET", "/api/lessons/zoo", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown lesson status: want=404 got=%d", rec.Code)
	}

	rec := ts.do(t, "GET", "/api/lessons/farm/pages/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("page status: want=200 got=%d", rec.Code)
	}
	var page models.Page
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Background == nil || page.Background.Ref != "farm/p1.png" || len(page.Hotspots) != 1 {
		t.Fatalf("page: got=%+v", page)
	}

	if rec := ts.do(t, "GET", "/api/lessons/farm/pages/0", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("page 0 status: want=400 got=%d", rec.Code)
	}
	if rec := ts.do(t, "GET", "/api/lessons/farm/pages/7", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing page status: want=404 got=%d", rec.Code)
	}
}

func TestProgressEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/api/progress/farm", "")
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Fatalf("progress before save: got=%s", rec.Body.String())
	}
	if rec := ts.do(t, "PUT", "/api/progress/farm", `{"page":2}`); rec.Code != http.StatusNoContent {
		t.Fatalf("save status: want=204 got=%d", rec.Code)
	}
	if rec := ts.do(t, "PUT", "/api/progress/farm", `{"page":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad page status: want=400 got=%d", rec.Code)
	}
	if rec := ts.do(t, "PUT", "/api/progress/farm", `nope`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status: want=400 got=%d", rec.Code)
	}

	rec = ts.do(t, "GET", "/api/progress/farm", "")
	var got GetProgressResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if !got.Success || got.Page != 2 {
		t.Fatalf("progress: got=%+v", got)
	}
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "GET", "/assets/farm/p1.png", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("asset: status=%d type=%q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestReaderRejectsMissingLesson(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, "GET", "/ws/reader", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("no lessonId: want=400 got=%d", rec.Code)
	}
	if rec := ts.do(t, "GET", "/ws/reader?lessonId=zoo", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown lesson: want=404 got=%d", rec.Code)
	}
}

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestReaderWebSocketSession(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/reader?lessonId=farm"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var info services.SessionInfo
	if err := json.Unmarshal(readUntil(t, conn, services.MsgSession).Data, &info); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if info.Lesson.ID != "farm" || info.Page != 1 {
		t.Fatalf("session: got=%+v", info)
	}
	readUntil(t, conn, services.MsgPage)

	if err := conn.WriteJSON(map[string]interface{}{"type": "resize", "data": map[string]float64{"width": 400}}); err != nil {
		t.Fatalf("write resize: %v", err)
	}
	var layout services.Layout
	if err := json.Unmarshal(readUntil(t, conn, services.MsgLayout).Data, &layout); err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	if layout.Scale != 0.5 || len(layout.Hotspots) != 1 || layout.Hotspots[0].Rect.Width != 100 {
		t.Fatalf("layout: got=%+v", layout)
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "nav", "data": map[string]string{"action": "next"}}); err != nil {
		t.Fatalf("write nav: %v", err)
	}
	readUntil(t, conn, services.MsgPageChanged)
	readUntil(t, conn, services.MsgPage)
	// Progress is written off the session loop
	deadline := time.Now().Add(2 * time.Second)
	for {
		if p, ok := ts.progress.Get("farm"); ok && p.Page == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("progress after nav not saved")
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for ts.reader.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
