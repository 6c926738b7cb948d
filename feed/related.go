package feed

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"solace/common"
	"solace/models"
)

const DefaultRelatedLimit = 6

// GetRelated returns up to limit posts sharing at least one hashtag with
// the given post, ranked by shared-tag count then recency, never including
// the post itself. A tagless post falls back to the most recent others.
func (f *FeedModule) GetRelated(postID, limit int) ([]models.Post, error) {
	if limit < 1 {
		limit = DefaultRelatedLimit
	}

	var post models.Post
	if err := f.db.First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	var tagIDs []int
	if err := f.db.Model(&models.PostHashtag{}).
		Where("post_id = ?", postID).
		Pluck("hashtag_id", &tagIDs).Error; err != nil {
		return nil, err
	}

	var posts []models.Post
	if len(tagIDs) == 0 {
		if err := f.db.Model(&models.Post{}).
			Where("id != ?", postID).
			Order("created_at DESC, id DESC").
			Limit(limit).
			Find(&posts).Error; err != nil {
			return nil, err
		}
	} else {
		if err := f.db.Model(&models.Post{}).
			Select("posts.*, COUNT(DISTINCT post_hashtags.hashtag_id) AS shared_tags").
			Joins("INNER JOIN post_hashtags ON post_hashtags.post_id = posts.id").
			Where("post_hashtags.hashtag_id IN ? AND posts.id != ?", tagIDs, postID).
			Group("posts.id").
			Order("shared_tags DESC, posts.created_at DESC, posts.id DESC").
			Limit(limit).
			Find(&posts).Error; err != nil {
			return nil, err
		}
	}

	if err := f.annotate(posts, 0); err != nil {
		return nil, err
	}

	return posts, nil
}

func (f *FeedModule) relatedPosts(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultRelatedLimit)))
	if err != nil {
		limit = DefaultRelatedLimit
	}

	posts, err := f.GetRelated(postID, limit)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "posts": posts})
}
