package account

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"solace/common"
	emailpkg "solace/email"
	"solace/models"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour
)

type AccountModule struct {
	db *gorm.DB
}

func NewAccountModule(db *gorm.DB) *AccountModule {
	return &AccountModule{db: db}
}

func (a *AccountModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/register", a.register)
	router.POST("/api/login", a.login)
	router.POST("/api/logout", a.logout)
	router.GET("/confirm/:token", a.confirmEmail)
	router.POST("/api/password/forgot", a.forgotPassword)
	router.POST("/api/password/reset", a.resetPassword)

	profileGroup := router.Group("/api/profile")
	profileGroup.Use(a.requireAuth)
	{
		profileGroup.GET("/", a.profile)
		profileGroup.PUT("/", a.updateProfile)
		profileGroup.DELETE("/", a.deleteAccount)
	}

	adminGroup := router.Group("/api/admin")
	adminGroup.Use(a.requireAuth, a.requireAdmin)
	{
		adminGroup.GET("/users", a.listUsers)
		adminGroup.POST("/users/:id/verify", a.verifyUser)
		adminGroup.DELETE("/users/:id", a.deleteUser)
	}
}

func (a *AccountModule) requireAuth(c *gin.Context) {
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

// requireAdmin passes users with the admin flag or an email on the
// ADMIN_EMAILS allow-list. The allow-list exists so the first admin can be
// bootstrapped without touching the database.
func (a *AccountModule) requireAdmin(c *gin.Context) {
	userID := c.GetInt("user_id")

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		common.Fail(c, common.ErrUnauthenticated)
		c.Abort()
		return
	}

	if !user.IsAdmin && !isAdminEmail(user.Email) {
		common.Fail(c, common.ErrUnauthenticated)
		c.Abort()
		return
	}

	c.Set("admin_user", user)
	c.Next()
}

func isAdminEmail(email string) bool {
	adminEmails := os.Getenv("ADMIN_EMAILS")
	if adminEmails == "" {
		return false
	}

	for _, e := range strings.Split(adminEmails, ",") {
		if strings.TrimSpace(e) == email {
			return true
		}
	}
	return false
}

func (a *AccountModule) register(c *gin.Context) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		common.Fail(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}

	if request.Email == "" || request.Password == "" || strings.TrimSpace(request.Name) == "" {
		common.Fail(c, fmt.Errorf("%w: email, password and name are required", common.ErrValidation))
		return
	}

	var existingUser models.User
	if err := a.db.Where("email = ?", request.Email).First(&existingUser).Error; err == nil {
		common.Fail(c, fmt.Errorf("%w: this email is already registered", common.ErrValidation))
		return
	}

	passwordHash, err := hashPassword(request.Password)
	if err != nil {
		common.Fail(c, err)
		return
	}

	verificationToken, err := generateToken()
	if err != nil {
		common.Fail(c, err)
		return
	}
	expiry := time.Now().UTC().Add(verificationTokenTTL)

	user := models.User{
		Email:                  request.Email,
		PasswordHash:           passwordHash,
		Name:                   strings.TrimSpace(request.Name),
		EmailVerified:          false,
		EmailVerificationToken: verificationToken,
		VerificationExpiry:     &expiry,
		CreatedAt:              time.Now().UTC(),
	}

	if err := a.db.Create(&user).Error; err != nil {
		common.Fail(c, err)
		return
	}

	emailService := emailpkg.NewEmailService()
	if emailErr := emailService.SendVerificationEmail(user.Email, verificationToken); emailErr != nil {
		log.Errorf("error sending verification email to %s: %v", user.Email, emailErr)
		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"message": "Account created, but the verification email could not be sent. Contact support.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"message": "Account created. Check your inbox to confirm your email.",
	})
}

func (a *AccountModule) confirmEmail(c *gin.Context) {
	token := c.Param("token")

	var user models.User
	if err := a.db.Where("email_verification_token = ?", token).First(&user).Error; err != nil {
		c.HTML(http.StatusNotFound, "confirm_email.html", gin.H{
			"success": false,
			"message": "Invalid or expired token",
		})
		return
	}

	if user.EmailVerified {
		c.HTML(http.StatusOK, "confirm_email.html", gin.H{
			"success": true,
			"message": "Email already confirmed",
		})
		return
	}

	if user.VerificationExpiry != nil && time.Now().UTC().After(*user.VerificationExpiry) {
		c.HTML(http.StatusNotFound, "confirm_email.html", gin.H{
			"success": false,
			"message": "Invalid or expired token",
		})
		return
	}

	user.EmailVerified = true
	user.EmailVerificationToken = ""
	user.VerificationExpiry = nil

	if err := a.db.Save(&user).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "confirm_email.html", gin.H{
			"success": false,
			"message": "Error confirming email",
		})
		return
	}

	c.HTML(http.StatusOK, "confirm_email.html", gin.H{
		"success": true,
		"message": "Email confirmed. You can now log in.",
	})
}

func (a *AccountModule) login(c *gin.Context) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		common.Fail(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", request.Email).First(&user).Error; err != nil {
		common.Fail(c, common.ErrUnauthenticated)
		return
	}

	if !checkPasswordHash(request.Password, user.PasswordHash) {
		common.Fail(c, common.ErrUnauthenticated)
		return
	}

	if !user.EmailVerified {
		common.Fail(c, fmt.Errorf("%w: email not verified, check your inbox", common.ErrValidation))
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

func (a *AccountModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *AccountModule) forgotPassword(c *gin.Context) {
	var request struct {
		Email string `json:"email"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		common.Fail(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}

	// Response is the same whether or not the address exists.
	reply := gin.H{"ok": true, "message": "If that address is registered, a reset link is on its way."}

	var user models.User
	if err := a.db.Where("email = ?", request.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, reply)
		return
	}

	resetToken, err := generateToken()
	if err != nil {
		common.Fail(c, err)
		return
	}
	expiry := time.Now().UTC().Add(resetTokenTTL)

	user.ResetToken = resetToken
	user.ResetExpiry = &expiry

	if err := a.db.Save(&user).Error; err != nil {
		common.Fail(c, err)
		return
	}

	emailService := emailpkg.NewEmailService()
	if emailErr := emailService.SendPasswordResetEmail(user.Email, resetToken); emailErr != nil {
		log.Errorf("error sending reset email to %s: %v", user.Email, emailErr)
	}

	c.JSON(http.StatusOK, reply)
}

func (a *AccountModule) resetPassword(c *gin.Context) {
	var request struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		common.Fail(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}

	if request.Token == "" || request.Password == "" {
		common.Fail(c, fmt.Errorf("%w: token and password are required", common.ErrValidation))
		return
	}

	var user models.User
	if err := a.db.Where("reset_token = ?", request.Token).First(&user).Error; err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	if user.ResetExpiry == nil || time.Now().UTC().After(*user.ResetExpiry) {
		common.Fail(c, common.ErrNotFound)
		return
	}

	passwordHash, err := hashPassword(request.Password)
	if err != nil {
		common.Fail(c, err)
		return
	}

	user.PasswordHash = passwordHash
	user.ResetToken = ""
	user.ResetExpiry = nil

	if err := a.db.Save(&user).Error; err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Password updated. You can now log in."})
}

func (a *AccountModule) profile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

func (a *AccountModule) updateProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var request struct {
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
		Bio      string `json:"bio"`
		About    string `json:"about"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		common.Fail(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
		return
	}

	if strings.TrimSpace(request.Name) == "" {
		common.Fail(c, fmt.Errorf("%w: name is required", common.ErrValidation))
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	user.Name = strings.TrimSpace(request.Name)
	user.Nickname = request.Nickname
	user.Bio = request.Bio
	user.About = request.About

	if err := a.db.Save(&user).Error; err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

func (a *AccountModule) deleteAccount(c *gin.Context) {
	userID := c.GetInt("user_id")

	if err := a.DeleteUserCascade(userID); err != nil {
		common.Fail(c, err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Account deleted"})
}

// DeleteUserCascade removes a user and everything hanging off them in one
// transaction. Order matters: likes on the user's posts, the user's own
// likes, hashtag links of the user's posts, the posts, and finally the
// user row. Hashtag rows themselves are never reclaimed.
func (a *AccountModule) DeleteUserCascade(userID int) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return common.ErrNotFound
			}
			return err
		}

		var postIDs []int
		if err := tx.Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &postIDs).Error; err != nil {
			return err
		}

		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.PostHashtag{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", userID).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&user).Error
	})
}

func (a *AccountModule) listUsers(c *gin.Context) {
	var users []models.User
	if err := a.db.Order("created_at DESC").Find(&users).Error; err != nil {
		common.Fail(c, err)
		return
	}

	type UserWithStats struct {
		User      models.User `json:"user"`
		PostCount int64       `json:"post_count"`
	}

	usersWithStats := make([]UserWithStats, len(users))
	for i, user := range users {
		var postCount int64
		a.db.Model(&models.Post{}).Where("user_id = ?", user.ID).Count(&postCount)

		usersWithStats[i] = UserWithStats{
			User:      user,
			PostCount: postCount,
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "users": usersWithStats})
}

func (a *AccountModule) verifyUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	user.EmailVerified = true
	user.EmailVerificationToken = ""
	user.VerificationExpiry = nil

	if err := a.db.Save(&user).Error; err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "emailVerified": user.EmailVerified})
}

func (a *AccountModule) deleteUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.Fail(c, common.ErrNotFound)
		return
	}

	if err := a.DeleteUserCascade(userID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "User deleted"})
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
