package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Failure kinds surfaced by the core operations. Anything else coming out
// of the storage layer is treated as a generic failure and never shown to
// the caller.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
)

// Fail writes the uniform failure envelope, mapping the error kind to a
// status code. Raw storage errors are logged and replaced with a generic
// message.
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "message": "Login required"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "message": "Not found"})
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": err.Error()})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "message": "Please try again"})
	default:
		log.Error("storage failure: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "Something went wrong"})
	}
}
