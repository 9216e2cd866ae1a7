package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/apperr"
	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/cooperative"
	"github.com/MikeMC777/coopmarket/internal/httpx"
)

var errNotOwner = apperr.Forbidden("you do not own this resource")

var nowUTC = func() time.Time { return time.Now().UTC() }

// caller returns the identity set by RequireAuth. Routes using it are always
// behind RequireAuth, so a missing identity is answered with 401.
func caller(c *gin.Context) (auth.Identity, bool) {
	id, ok := httpx.IdentityFrom(c)
	if !ok {
		httpx.Fail(c, http.StatusUnauthorized, "authentication required")
	}
	return id, ok
}

// mayEdit lets admins edit anything and everyone else only what they own.
func mayEdit(id auth.Identity, ownerID string) error {
	if id.Is(auth.RoleAdmin) || (ownerID != "" && ownerID == id.UserID) {
		return nil
	}
	return errNotOwner
}

// ownCooperative resolves the cooperative a cooperative user acts for. An
// empty coopID picks the caller's first cooperative.
func ownCooperative(ctx context.Context, repo cooperative.Repository, id auth.Identity, coopID string) (string, error) {
	if coopID == "" {
		if id.Is(auth.RoleAdmin) {
			return "", httpx.Invalid("cooperative_id", "is required")
		}
		list, err := repo.List(ctx, cooperative.Query{OwnerID: id.UserID, Limit: 1})
		if err != nil {
			return "", err
		}
		if len(list) == 0 {
			return "", apperr.Forbidden("no cooperative is registered for this account")
		}
		return list[0].ID, nil
	}
	coop, err := repo.GetByID(ctx, coopID)
	if err != nil {
		return "", err
	}
	if err := mayEdit(id, coop.OwnerID); err != nil {
		return "", err
	}
	return coop.ID, nil
}

func deleted(c *gin.Context, ok bool, err error, notFound error) {
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if !ok {
		httpx.Error(c, notFound)
		return
	}
	httpx.NoContent(c)
}

func boolQuery(c *gin.Context, key string) bool {
	v, _ := strconv.ParseBool(c.Query(key))
	return v
}
