package feed

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"solace/cache"
	"solace/common"
	"solace/models"
)

const (
	DefaultPageSize  = 10
	MaxPageSize      = 50
	MaxContentLength = 2000
)

type FeedModule struct {
	db *gorm.DB
}

func NewFeedModule(db *gorm.DB) *FeedModule {
	return &FeedModule{db: db}
}

func (f *FeedModule) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/feed", f.feedPage)
		api.GET("/posts/:id", f.getPost)
		api.GET("/posts/:id/related", f.relatedPosts)
		api.POST("/posts", f.requireAuth, f.createPost)
		api.PUT("/posts/:id", f.requireAuth, f.updatePost)
		api.DELETE("/posts/:id", f.requireAuth, f.deletePost)
		api.POST("/posts/:id/like", f.requireAuth, f.toggleLike)
	}
}

func (f *FeedModule) requireAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("user_id")

	if userID == nil {
		common.Fail(c, common.ErrUnauthenticated)
		c.Abort()
		return
	}

	c.Set("user_id", userID)
	c.Next()
}

// viewer returns the session user id, or 0 for anonymous requests.
func viewer(c *gin.Context) int {
	session := sessions.Default(c)
	if userID, ok := session.Get("user_id").(int); ok {
		return userID
	}
	return 0
}

// GetFeedPage returns one page of the feed, newest first. A non-empty tag
// set filters with AND semantics: a post qualifies only when it carries
// every requested tag. viewerID 0 means anonymous; UserLiked stays false.
func (f *FeedModule) GetFeedPage(offset, limit int, tags []string, viewerID int) ([]models.Post, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	// id DESC breaks created_at ties so pages never skip or repeat a post.
	query := f.db.Model(&models.Post{}).
		Select("posts.*").
		Order("posts.created_at DESC, posts.id DESC").
		Offset(offset).
		Limit(limit)

	if len(tags) > 0 {
		query = query.
			Joins("INNER JOIN post_hashtags ON post_hashtags.post_id = posts.id").
			Joins("INNER JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id").
			Where("hashtags.name IN ?", tags).
			Group("posts.id").
			Having("COUNT(DISTINCT hashtags.id) = ?", len(tags))
	}

	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}

	if err := f.annotate(posts, viewerID); err != nil {
		return nil, err
	}

	return posts, nil
}

// annotate fills the computed fields of each post: like count, whether the
// viewer liked it, and its hashtag names.
func (f *FeedModule) annotate(posts []models.Post, viewerID int) error {
	for i := range posts {
		var likeCount int64
		if err := f.db.Model(&models.Like{}).Where("post_id = ?", posts[i].ID).Count(&likeCount).Error; err != nil {
			return err
		}
		posts[i].LikeCount = int(likeCount)

		posts[i].UserLiked = false
		if viewerID != 0 {
			var liked int64
			if err := f.db.Model(&models.Like{}).
				Where("user_id = ? AND post_id = ?", viewerID, posts[i].ID).
				Count(&liked).Error; err != nil {
				return err
			}
			posts[i].UserLiked = liked > 0
		}

		var names []string
		if err := f.db.Model(&models.Hashtag{}).
			Joins("INNER JOIN post_hashtags ON post_hashtags.hashtag_id = hashtags.id").
			Where("post_hashtags.post_id = ?", posts[i].ID).
			Pluck("hashtags.name", &names).Error; err != nil {
			return err
		}
		posts[i].Hashtags = names
		if posts[i].Hashtags == nil {
			posts[i].Hashtags = []string{}
		}
	}
	return nil
}

func (f *FeedModule) feedPage(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageSize)))
	if err != nil || limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	tags := ParseHashtags(c.Query("tags"))

	posts, err := f.GetFeedPage(offset, limit, tags, viewer(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"posts":   posts,
		"hasMore": len(posts) == limit,
	})
}

func (f *FeedModule) getPost(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	post, err := f.loadPost(postID, viewer(c))
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "post": post})
}

func (f *FeedModule) loadPost(postID, viewerID int) (*models.Post, error) {
	var post models.Post
	if err := f.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	posts := []models.Post{post}
	if err := f.annotate(posts, viewerID); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

type postRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Hashtags string `json:"hashtags"`
}

func (r postRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", common.ErrValidation)
	}
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	if len([]rune(r.Content)) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", common.ErrValidation, MaxContentLength)
	}
	return nil
}

func (f *FeedModule) createPost(c *gin.Context) {
	userID := c.GetInt("user_id")

	var request postRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		common.Fail(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}

	if err := request.validate(); err != nil {
		common.Fail(c, err)
		return
	}

	post := models.Post{
		UserID:    userID,
		Title:     request.Title,
		Content:   request.Content,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := f.db.Create(&post).Error; err != nil {
		common.Fail(c, err)
		return
	}

	if err := f.processPostHashtags(int(post.ID), ParseHashtags(request.Hashtags)); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := f.loadPost(int(post.ID), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "post": result})
}

func (f *FeedModule) updatePost(c *gin.Context) {
	userID := c.GetInt("user_id")

	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	var post models.Post
	if err := f.db.First(&post, postID).Error; err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	if !f.canModify(userID, &post) {
		common.Fail(c, common.ErrUnauthenticated)
		return
	}

	var request postRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		common.Fail(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}

	if err := request.validate(); err != nil {
		common.Fail(c, err)
		return
	}

	post.Title = request.Title
	post.Content = request.Content
	post.UpdatedAt = time.Now().UTC()

	if err := f.db.Save(&post).Error; err != nil {
		common.Fail(c, err)
		return
	}

	if err := f.processPostHashtags(int(post.ID), ParseHashtags(request.Hashtags)); err != nil {
		common.Fail(c, err)
		return
	}

	cache.ClearCache(strconv.Itoa(int(post.ID)))

	result, err := f.loadPost(int(post.ID), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "post": result})
}

func (f *FeedModule) deletePost(c *gin.Context) {
	userID := c.GetInt("user_id")

	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	var post models.Post
	if err := f.db.First(&post, postID).Error; err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	if !f.canModify(userID, &post) {
		common.Fail(c, common.ErrUnauthenticated)
		return
	}

	// Children first: like and hashtag rows referencing the post must go
	// in the same transaction as the post itself.
	err = f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostHashtag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	cache.ClearCache(strconv.Itoa(int(post.ID)))

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Post deleted"})
}

// canModify allows the author and admins.
func (f *FeedModule) canModify(userID int, post *models.Post) bool {
	if post.UserID == userID {
		return true
	}
	var user models.User
	if err := f.db.First(&user, userID).Error; err != nil {
		return false
	}
	return user.IsAdmin
}

// ParseHashtags splits caller-supplied tag text on commas and whitespace,
// strips a leading '#', and deduplicates by exact name, keeping first
// occurrence order. Matching is case-sensitive.
func ParseHashtags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	seen := make(map[string]bool)
	var tags []string
	for _, field := range fields {
		tag := strings.TrimPrefix(field, "#")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// processPostHashtags replaces the post's tag set. Hashtag rows are created
// lazily on first use and never deleted, even when orphaned.
func (f *FeedModule) processPostHashtags(postID int, tags []string) error {
	if err := f.db.Where("post_id = ?", postID).Delete(&models.PostHashtag{}).Error; err != nil {
		return err
	}

	for _, name := range tags {
		var hashtag models.Hashtag
		err := f.db.Where("name = ?", name).First(&hashtag).Error

		if err == gorm.ErrRecordNotFound {
			hashtag = models.Hashtag{Name: name}
			if err := f.db.Create(&hashtag).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		link := models.PostHashtag{
			PostID:    postID,
			HashtagID: int(hashtag.ID),
		}
		if err := f.db.Create(&link).Error; err != nil {
			return err
		}
	}

	return nil
}
