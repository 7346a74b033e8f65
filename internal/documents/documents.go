// Package documents lists the reference material the answer function
// retrieves from.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/okayama-voice/opinion-map/internal/db"
	"github.com/okayama-voice/opinion-map/internal/logger"
	"gorm.io/gorm"
)

// NoDocumentsMessage is shown when nothing has been registered yet.
const NoDocumentsMessage = "登録されている資料はまだありません。"

// Document is one retrievable chunk. A source document usually spans
// several rows sharing a title.
type Document struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"index;not null" json:"title"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Document) TableName() string { return "opinion_map.documents" }

// UniqueSortedTitles trims, de-duplicates and sorts titles. Blank titles
// are dropped.
func UniqueSortedTitles(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Store reads document titles.
type Store interface {
	Titles(ctx context.Context) ([]string, error)
}

// GormStore is the Postgres implementation of Store.
type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) Titles(ctx context.Context) ([]string, error) {
	var titles []string
	if err := s.DB.WithContext(ctx).Model(&Document{}).Distinct("title").Order("title ASC").Pluck("title", &titles).Error; err != nil {
		return nil, fmt.Errorf("list document titles: %w", err)
	}
	return UniqueSortedTitles(titles), nil
}

type titlesOut struct {
	Titles  []string `json:"titles"`
	Message string   `json:"message,omitempty"`
}

// TitlesHandler serves the unique document titles in ascending order.
func TitlesHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		titles, err := store.Titles(r.Context())
		if err != nil {
			logger.For("documents").Error("list titles failed", "err", err)
			http.Error(w, "読み込みに失敗しました。", http.StatusInternalServerError)
			return
		}
		out := titlesOut{Titles: titles}
		if len(titles) == 0 {
			out.Message = NoDocumentsMessage
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func Routes(store Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/titles", TitlesHandler(store))
	return r
}

// Init migrates the documents table.
func Init() {
	if err := db.Migrate(db.DB, &Document{}); err != nil {
		log.Fatal("Failed to migrate tables: ", err)
	}
}

// SetupRoutes serves the documents table through the shared connection.
func SetupRoutes() http.Handler {
	return Routes(GormStore{DB: db.DB})
}
