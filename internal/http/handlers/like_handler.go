// Like HTTP handlers.
//
// This file exposes the endpoint for liking a chirp:
//   - POST /chirps/{id}/like
//
// Handlers in this file are transport-thin: they validate input, delegate to
// application services, and translate domain/service errors into HTTP results.
// A user may like a given chirp exactly once; repeats answer 409 with the
// fixed "already liked this chirp" message.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-chirper-backend/internal/services"
)

// LikeChirp godoc
// @ID          likeChirp
// @Summary     Like a chirp
// @Description Records a single like on a chirp for the current user and redirects home.
// @Tags        Likes
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Chirp ID (UUID)"        format(uuid)
//
// @Success     302  {string} string "Found"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chirp not found"
// @Failure     409  {object} handlers.ErrorResponse "Already liked"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /chirps/{id}/like [post]
func (h *Handlers) LikeChirp(c *gin.Context) {
	chirpID := c.Param("id")
	if _, err := uuid.Parse(chirpID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chirp id must be a UUID")
		return
	}

	if err := h.likeSvc.Like(c.Request.Context(), userID(c), chirpID); err != nil {
		switch err {
		case services.ErrChirpNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chirp not found")
		case services.ErrAlreadyLiked:
			fail(c, http.StatusConflict, ErrCodeConflict, services.ErrAlreadyLiked.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	redirectHome(c)
}
