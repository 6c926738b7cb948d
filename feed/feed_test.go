package feed

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"solace/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(&models.User{}, &models.Post{}, &models.Hashtag{}, &models.PostHashtag{}, &models.Like{})
	return db
}

func setupTestRouter(feedModule *FeedModule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))
	feedModule.RegisterRoutes(router)
	return router
}

func createTestUser(db *gorm.DB, email string) *models.User {
	user := &models.User{
		Email:        email,
		PasswordHash: "hashedpassword",
		Name:         "Test User",
	}
	db.Create(user)
	return user
}

func createTestPost(db *gorm.DB, userID int, title string, createdAt time.Time) *models.Post {
	post := &models.Post{
		UserID:    userID,
		Title:     title,
		Content:   "Some quiet words.",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	db.Create(post)
	return post
}

func tagPost(t *testing.T, f *FeedModule, postID int, tags ...string) {
	t.Helper()
	err := f.processPostHashtags(postID, tags)
	assert.NoError(t, err)
}

func TestGetFeedPage_NewestFirst(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	user := createTestUser(db, "author@example.com")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	createTestPost(db, user.ID, "oldest", base)
	createTestPost(db, user.ID, "middle", base.Add(time.Hour))
	createTestPost(db, user.ID, "newest", base.Add(2*time.Hour))

	posts, err := f.GetFeedPage(0, 10, nil, 0)

	assert.NoError(t, err)
	assert.Equal(t, 3, len(posts))
	assert.Equal(t, "newest", posts[0].Title)
	assert.Equal(t, "middle", posts[1].Title)
	assert.Equal(t, "oldest", posts[2].Title)
}

func TestGetFeedPage_PagesNeverSkipOrRepeat(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	user := createTestUser(db, "author@example.com")

	// Identical timestamps force the id tie-break to carry the ordering.
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		createTestPost(db, user.ID, "post", stamp)
	}

	seen := make(map[uint]bool)
	total := 0
	lastID := uint(0)

	for offset := 0; ; offset += 10 {
		posts, err := f.GetFeedPage(offset, 10, nil, 0)
		assert.NoError(t, err)

		for _, p := range posts {
			assert.False(t, seen[p.ID], "post %d appeared twice", p.ID)
			seen[p.ID] = true
			if lastID != 0 {
				assert.Less(t, p.ID, lastID)
			}
			lastID = p.ID
		}

		total += len(posts)
		if len(posts) < 10 {
			break
		}
	}

	assert.Equal(t, 25, total)
}

func TestGetFeedPage_TagFilterIsAnd(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	user := createTestUser(db, "author@example.com")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	postA := createTestPost(db, user.ID, "A", base)
	postB := createTestPost(db, user.ID, "B", base.Add(time.Hour))
	tagPost(t, f, int(postA.ID), "힐링", "위로")
	tagPost(t, f, int(postB.ID), "힐링")

	both, err := f.GetFeedPage(0, 10, []string{"힐링", "위로"}, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(both))
	assert.Equal(t, "A", both[0].Title)

	one, err := f.GetFeedPage(0, 10, []string{"힐링"}, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(one))
	assert.Equal(t, "B", one[0].Title) // newest first
	assert.Equal(t, "A", one[1].Title)
}

func TestGetFeedPage_EmptyTable(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)

	posts, err := f.GetFeedPage(0, 10, nil, 0)

	assert.NoError(t, err)
	assert.Empty(t, posts)
}

func TestGetFeedPage_LimitClamped(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	user := createTestUser(db, "author@example.com")

	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		createTestPost(db, user.ID, "post", stamp)
	}

	posts, err := f.GetFeedPage(0, 0, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, DefaultPageSize, len(posts))

	posts, err = f.GetFeedPage(0, 999, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, DefaultPageSize, len(posts))
}

func TestGetFeedPage_Annotations(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	author := createTestUser(db, "author@example.com")
	fan := createTestUser(db, "fan@example.com")

	post := createTestPost(db, author.ID, "liked post", time.Now().UTC())
	tagPost(t, f, int(post.ID), "힐링")
	db.Create(&models.Like{UserID: fan.ID, PostID: int(post.ID), CreatedAt: time.Now().UTC()})

	asFan, err := f.GetFeedPage(0, 10, nil, fan.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, asFan[0].LikeCount)
	assert.True(t, asFan[0].UserLiked)
	assert.Equal(t, []string{"힐링"}, asFan[0].Hashtags)

	asAuthor, err := f.GetFeedPage(0, 10, nil, author.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, asAuthor[0].LikeCount)
	assert.False(t, asAuthor[0].UserLiked)

	anonymous, err := f.GetFeedPage(0, 10, nil, 0)
	assert.NoError(t, err)
	assert.False(t, anonymous[0].UserLiked)
}

func TestParseHashtags(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"힐링, 위로", []string{"힐링", "위로"}},
		{"#go #golang", []string{"go", "golang"}},
		{"a,,b,  ,c", []string{"a", "b", "c"}},
		{"dup dup dup", []string{"dup"}},
		{"Case case", []string{"Case", "case"}},
		{"", nil},
		{"# ,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseHashtags(tt.input))
		})
	}
}

func TestProcessPostHashtags_LazyCreateAndReplace(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	user := createTestUser(db, "author@example.com")
	post := createTestPost(db, user.ID, "tagged", time.Now().UTC())

	tagPost(t, f, int(post.ID), "one", "two", "three")

	var tagCount int64
	db.Model(&models.Hashtag{}).Count(&tagCount)
	assert.Equal(t, int64(3), tagCount)

	// Replacing the set leaves orphaned hashtags in place.
	tagPost(t, f, int(post.ID), "one", "four")

	var links []models.PostHashtag
	db.Where("post_id = ?", post.ID).Find(&links)
	assert.Equal(t, 2, len(links))

	db.Model(&models.Hashtag{}).Count(&tagCount)
	assert.Equal(t, int64(4), tagCount)
}

func TestFeedEndpoint_HasMore(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	router := setupTestRouter(f)
	user := createTestUser(db, "author@example.com")

	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		createTestPost(db, user.ID, "post", stamp)
	}

	req, _ := http.NewRequest("GET", "/api/feed?offset=0&limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hasMore":true`)

	req, _ = http.NewRequest("GET", "/api/feed?offset=10&limit=10", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hasMore":false`)
}

func TestLikeEndpoint_RequiresAuth(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	router := setupTestRouter(f)
	user := createTestUser(db, "author@example.com")
	post := createTestPost(db, user.ID, "post", time.Now().UTC())

	req, _ := http.NewRequest("POST", "/api/posts/"+strconv.Itoa(int(post.ID))+"/like", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePostEndpoint_RequiresAuth(t *testing.T) {
	db := setupTestDB()
	f := NewFeedModule(db)
	router := setupTestRouter(f)

	req, _ := http.NewRequest("POST", "/api/posts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
