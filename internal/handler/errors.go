package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/utils"
)

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	var (
		lockout *utils.LockoutError
		cascade *utils.CascadeError
		remote  *utils.RemoteError
	)

	switch {
	case errors.As(err, &lockout):
		c.Header("Retry-After", strconv.Itoa(int((lockout.Remaining+time.Second-1)/time.Second)))
		utils.Error(c, http.StatusTooManyRequests, utils.ErrLockedOut.Error(), err.Error())
	case errors.As(err, &cascade):
		log.Error().Err(err).Str("stage", cascade.Stage).Str("path", c.FullPath()).Msg("Cascade failed")
		utils.ErrorWithStage(c, http.StatusBadGateway, "CASCADE_FAILED", err.Error(), cascade.Stage)
	case errors.Is(err, utils.ErrValidation):
		utils.Error(c, http.StatusBadRequest, utils.ErrValidation.Error(), err.Error())
	case errors.Is(err, utils.ErrConfirmationRequired):
		utils.Error(c, http.StatusBadRequest, utils.ErrConfirmationRequired.Error(), err.Error())
	case errors.Is(err, utils.ErrNotFound):
		utils.Error(c, http.StatusNotFound, utils.ErrNotFound.Error(), err.Error())
	case errors.Is(err, utils.ErrDuplicateCode):
		utils.Error(c, http.StatusConflict, utils.ErrDuplicateCode.Error(), err.Error())
	case errors.Is(err, utils.ErrDuplicateSlug):
		utils.Error(c, http.StatusConflict, utils.ErrDuplicateSlug.Error(), err.Error())
	case errors.Is(err, utils.ErrCategoryInUse):
		utils.Error(c, http.StatusConflict, utils.ErrCategoryInUse.Error(), err.Error())
	case errors.Is(err, utils.ErrAuthInProgress):
		utils.Error(c, http.StatusConflict, utils.ErrAuthInProgress.Error(), err.Error())
	case errors.Is(err, utils.ErrAuth):
		utils.Error(c, http.StatusUnauthorized, utils.ErrAuth.Error(), err.Error())
	case errors.Is(err, utils.ErrInvalidToken):
		utils.Error(c, http.StatusUnauthorized, utils.ErrInvalidToken.Error(), "Invalid or expired token")
	case errors.Is(err, utils.ErrSessionExpired):
		utils.Error(c, http.StatusUnauthorized, utils.ErrSessionExpired.Error(), "Session expired, please log in again")
	case errors.As(err, &remote):
		log.Error().Err(err).Str("op", remote.Op).Str("path", c.FullPath()).Msg("Remote store error")
		utils.Error(c, http.StatusBadGateway, "REMOTE_ERROR", err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// requireConfirmation rejects destructive requests that lack confirm=true.
func requireConfirmation(c *gin.Context) bool {
	if c.Query("confirm") == "true" {
		return true
	}
	respondError(c, utils.ErrConfirmationRequired)
	return false
}
