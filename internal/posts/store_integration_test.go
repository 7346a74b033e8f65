package posts_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/okayama-voice/opinion-map/internal/db"
	"github.com/okayama-voice/opinion-map/internal/posts"
	"github.com/okayama-voice/opinion-map/internal/utils"
)

// dbAvailable tracks whether the database connection was established.
var dbAvailable bool

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	if os.Getenv("DATABASE_URL") == "" {
		os.Exit(m.Run())
	}

	db.Connect()
	if err := db.Migrate(db.DB, &posts.Post{}, &posts.Reply{}, &posts.Like{}); err != nil {
		panic(err)
	}
	dbAvailable = true

	os.Exit(m.Run())
}

func createStoredPost(t *testing.T, store posts.GormStore) posts.Post {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
	lat, lng := 34.66, 133.92
	p := posts.Post{
		Lat: &lat, Lng: &lng,
		DisplayName: "integration",
		Content:     "test " + uuid.NewString(),
		Category:    "その他",
		HasRegion:   true,
		CityName:    str("岡山市"),
	}
	if err := store.Create(context.Background(), &p); err != nil {
		t.Fatalf("create post: %v", err)
	}
	t.Cleanup(func() {
		db.DB.Where("post_id = ?", p.ID).Delete(&posts.Like{})
		db.DB.Where("post_id = ?", p.ID).Delete(&posts.Reply{})
		db.DB.Delete(&posts.Post{}, p.ID)
	})
	return p
}

func TestGormStore_LikeOncePerClient(t *testing.T) {
	store := posts.GormStore{DB: db.DB}
	p := createStoredPost(t, store)
	ctx := context.Background()
	hash := utils.HashClientID(uuid.NewString())

	likes, err := store.Like(ctx, p.ID, hash)
	if err != nil || likes != 1 {
		t.Fatalf("first like: likes=%d err=%v", likes, err)
	}
	if _, err := store.Like(ctx, p.ID, hash); !errors.Is(err, posts.ErrAlreadyLiked) {
		t.Errorf("expected ErrAlreadyLiked, got %v", err)
	}
	if liked, _ := store.HasLiked(ctx, p.ID, hash); !liked {
		t.Error("HasLiked should report the recorded like")
	}
	if _, err := store.Like(ctx, -1, hash); !errors.Is(err, posts.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGormStore_RepliesAndCategoryFilter(t *testing.T) {
	store := posts.GormStore{DB: db.DB}
	p := createStoredPost(t, store)
	ctx := context.Background()

	for i, text := range []string{"first", "second"} {
		r := posts.Reply{ID: uuid.New(), PostID: p.ID, DisplayName: "r", Content: text,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second)}
		if err := store.AddReply(ctx, &r); err != nil {
			t.Fatalf("add reply: %v", err)
		}
	}
	replies, err := store.Replies(ctx, p.ID)
	if err != nil || len(replies) != 2 || replies[0].Content != "first" {
		t.Fatalf("unexpected replies %+v (%v)", replies, err)
	}
	got, err := store.Get(ctx, p.ID)
	if err != nil || got.CommentsCount != 2 {
		t.Errorf("expected comments_count 2, got %d (%v)", got.CommentsCount, err)
	}

	list, err := store.List(ctx, []string{"その他", "交通・道路"})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, item := range list {
		found = found || item.ID == p.ID
	}
	if !found {
		t.Error("category filter dropped the post")
	}
}
