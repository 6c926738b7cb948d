package site

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func TestSplitFontDirective(t *testing.T) {
	tests := []struct {
		name  string
		input string
		font  string
		body  string
	}{
		{"with marker", "[font:nanum]\n오늘도 괜찮아", "nanum", "오늘도 괜찮아"},
		{"no marker", "plain content", "", "plain content"},
		{"unterminated", "[font:nanum content", "", "[font:nanum content"},
		{"marker only", "[font:serif]", "serif", ""},
		{"marker mid-content ignored", "hello [font:x]", "", "hello [font:x]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			font, body := SplitFontDirective(tt.input)
			assert.Equal(t, tt.font, font)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	result := renderMarkdown("# Title\n\nSome **bold** words.")

	assert.Contains(t, result, "<h1>Title</h1>")
	assert.Contains(t, result, "<strong>bold</strong>")
}

func TestSitemap_ListsPosts(t *testing.T) {
	db := setupTestDB()
	siteModule := NewSiteModule(db)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/sitemap.xml", siteModule.sitemap)

	user := models.User{Email: "author@example.com", PasswordHash: "hash", Name: "Author"}
	db.Create(&user)
	post := models.Post{UserID: user.ID, Title: "quote", Content: "words", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	db.Create(&post)

	req, _ := http.NewRequest("GET", "/sitemap.xml", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/post/1")
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
}
