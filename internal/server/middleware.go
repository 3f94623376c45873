package server

import (
	"compress/gzip"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"github.com/gin-gonic/gin"
)

const (
	userContextKey  = "user"
	tokenCookieName = "jwt_token"
)

// AuthRequired resolves the bearer token (or the jwt_token cookie) to a user.
// No token at all is 401, a token that does not verify is 403.
func AuthRequired(auth AuthService) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrTokenRequired.Error()})
			return
		}
		user, err := auth.Verify(ctx.Request.Context(), token)
		if err != nil {
			abortWithError(ctx, err)
			return
		}
		ctx.Set(userContextKey, user)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) string {
	if header := ctx.GetHeader("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := ctx.Cookie(tokenCookieName); err == nil {
		return cookie
	}
	return ""
}

func currentUser(ctx *gin.Context) *models.User {
	if v, ok := ctx.Get(userContextKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// LimitRequestBody caps how many bytes a handler may read from the body.
func LimitRequestBody(maxBytes int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Body != nil {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBytes)
		}
		ctx.Next()
	}
}

// inflatedBody closes both the gzip stream and the wire body under it.
type inflatedBody struct {
	io.ReadCloser
	wire io.Closer
}

func (b *inflatedBody) Close() error {
	err := b.ReadCloser.Close()
	if werr := b.wire.Close(); err == nil {
		err = werr
	}
	return err
}

// DecompressRequest inflates gzip request bodies. The inflated stream is
// capped at maxBytes too.
func DecompressRequest(maxBytes int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		encoding := strings.ToLower(ctx.GetHeader("Content-Encoding"))
		if ctx.Request.Body == nil || !strings.Contains(encoding, "gzip") {
			ctx.Next()
			return
		}

		gr, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if stderrors.As(err, &tooLarge) {
				ctx.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": errors.ErrRequestTooLarge.Error()})
				return
			}
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidGzipRequest.Error()})
			return
		}
		ctx.Request.Body = &inflatedBody{
			ReadCloser: http.MaxBytesReader(ctx.Writer, gr, maxBytes),
			wire:       ctx.Request.Body,
		}
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1
		ctx.Next()
	}
}
