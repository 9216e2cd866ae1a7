package main

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/storage"
)

const maxBatchFiles = 10

func storeFile(c *gin.Context, up uploader, fh *multipart.FileHeader) (*storage.File, error) {
	if fh.Size > up.MaxBytes() {
		return nil, storage.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open part")
	}
	defer func() { _ = f.Close() }()
	return up.Upload(c.Request.Context(), fh.Filename, f)
}

// formError reports a body cut off by limitBody as too large and anything
// else as a missing field.
func formError(err error, field, reason string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return storage.ErrTooLarge
	}
	return httpx.Invalid(field, reason)
}

// limitBody caps the request at n files plus multipart overhead.
func limitBody(c *gin.Context, up uploader, n int) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, up.MaxBytes()*int64(n)+1<<20)
}

func uploadHandler(up uploader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limitBody(c, up, 1)
		fh, err := c.FormFile("file")
		if err != nil {
			httpx.Error(c, formError(err, "file", "a multipart file field is required"))
			return
		}
		f, err := storeFile(c, up, fh)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, f)
	}
}

// uploadBatchHandler stores every part of the files field. It stops at the
// first rejected file; files stored before it are kept.
func uploadBatchHandler(up uploader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limitBody(c, up, maxBatchFiles)
		form, err := c.MultipartForm()
		if err != nil {
			httpx.Error(c, formError(err, "files", "a multipart form is required"))
			return
		}
		parts := form.File["files"]
		switch {
		case len(parts) == 0:
			httpx.Error(c, httpx.Invalid("files", "at least one file is required"))
			return
		case len(parts) > maxBatchFiles:
			httpx.Error(c, httpx.Invalid("files", "at most 10 files per request"))
			return
		}
		out := make([]storage.File, 0, len(parts))
		for _, fh := range parts {
			f, err := storeFile(c, up, fh)
			if err != nil {
				httpx.Error(c, errors.Wrap(err, fh.Filename))
				return
			}
			out = append(out, *f)
		}
		httpx.Created(c, out)
	}
}

// notificationsSocketHandler streams admin notifications over a websocket.
// Browsers cannot set headers on the upgrade request, so the token may come
// in the token query parameter instead.
func notificationsSocketHandler(v auth.Verifier, hub socketHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			raw = c.Query("token")
		}
		if raw == "" {
			httpx.Fail(c, http.StatusUnauthorized, "missing token")
			return
		}
		id, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if !id.Is(auth.RoleAdmin) {
			httpx.Fail(c, http.StatusForbidden, "insufficient role")
			return
		}
		httpx.SetIdentity(c, id)
		if err := hub.Serve(c.Request.Context(), c.Writer, c.Request); err != nil {
			zctx.From(c.Request.Context()).Debug("Notification socket closed", zap.Error(err))
		}
	}
}
