package feed

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"solace/common"
	"solace/models"
)

// ToggleLike flips the viewer's like on a post and returns the new state
// plus the recomputed total. It is a pure toggle: callers cannot ask for a
// specific end state. Two racing toggles for the same (user, post) pair
// are serialized by the unique index on likes; the loser's insert fails
// and the whole toggle is retried once, which then sees the winner's row.
func (f *FeedModule) ToggleLike(viewerID, postID int) (bool, int, error) {
	liked, count, err := f.toggleLikeOnce(viewerID, postID)
	if err != nil && isUniqueViolation(err) {
		liked, count, err = f.toggleLikeOnce(viewerID, postID)
		if err != nil && isUniqueViolation(err) {
			return false, 0, common.ErrConflict
		}
	}
	return liked, count, err
}

func (f *FeedModule) toggleLikeOnce(viewerID, postID int) (bool, int, error) {
	var liked bool
	var count int64

	err := f.db.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, postID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return common.ErrNotFound
			}
			return err
		}

		var like models.Like
		err := tx.Where("user_id = ? AND post_id = ?", viewerID, postID).First(&like).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			like = models.Like{
				UserID:    viewerID,
				PostID:    postID,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.Create(&like).Error; err != nil {
				return err
			}
			liked = true
		case err != nil:
			return err
		default:
			if err := tx.Delete(&like).Error; err != nil {
				return err
			}
			liked = false
		}

		return tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	})

	return liked, int(count), err
}

// sqlite reports composite unique index violations by column list.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (f *FeedModule) toggleLike(c *gin.Context) {
	userID := c.GetInt("user_id")

	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	liked, count, err := f.ToggleLike(userID, postID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"liked":     liked,
		"likeCount": count,
	})
}
