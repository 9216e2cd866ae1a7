package main

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MikeMC777/coopmarket/internal/article"
	"github.com/MikeMC777/coopmarket/internal/auth"
	"github.com/MikeMC777/coopmarket/internal/category"
	"github.com/MikeMC777/coopmarket/internal/contact"
	"github.com/MikeMC777/coopmarket/internal/cooperative"
	"github.com/MikeMC777/coopmarket/internal/courier"
	"github.com/MikeMC777/coopmarket/internal/event"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/notify"
)

// ===== events =====

func listEventsHandler(repo event.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		items, err := repo.List(c.Request.Context(), event.Query{
			CooperativeID: c.Query("cooperative_id"),
			Upcoming:      boolQuery(c, "upcoming"),
			Limit:         limit,
			Offset:        offset,
		})
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getEventHandler(repo event.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, e)
	}
}

// eventOwner checks that a cooperative user edits only events of their own
// cooperative. Events without a cooperative belong to admins.
func eventOwner(ctx context.Context, coops cooperative.Repository, id auth.Identity, coopID *string) error {
	if id.Is(auth.RoleAdmin) {
		return nil
	}
	if coopID == nil {
		return errNotOwner
	}
	_, err := ownCooperative(ctx, coops, id, *coopID)
	return err
}

func createEventHandler(repo event.Repository, coops cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req event.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		switch {
		case strings.TrimSpace(req.Title) == "":
			httpx.Error(c, httpx.Invalid("title", "is required"))
			return
		case req.StartsAt == nil:
			httpx.Error(c, httpx.Invalid("starts_at", "is required"))
			return
		case req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt):
			httpx.Error(c, event.ErrBadWindow)
			return
		}
		if id.Is(auth.RoleCooperative) && req.CooperativeID == nil {
			coopID, err := ownCooperative(c.Request.Context(), coops, id, "")
			if err != nil {
				httpx.Error(c, err)
				return
			}
			req.CooperativeID = &coopID
		}
		if err := eventOwner(c.Request.Context(), coops, id, req.CooperativeID); err != nil {
			httpx.Error(c, err)
			return
		}
		e := event.Event{
			CooperativeID: req.CooperativeID,
			Title:         strings.TrimSpace(req.Title),
			Description:   req.Description,
			Location:      req.Location,
			StartsAt:      *req.StartsAt,
			EndsAt:        req.EndsAt,
			ImageURL:      req.ImageURL,
		}
		if err := repo.Create(c.Request.Context(), &e); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, e)
	}
}

func updateEventHandler(repo event.Repository, coops cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req event.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if err := eventOwner(c.Request.Context(), coops, id, cur.CooperativeID); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.CooperativeID != nil && !id.Is(auth.RoleAdmin) {
			if err := eventOwner(c.Request.Context(), coops, id, req.CooperativeID); err != nil {
				httpx.Error(c, err)
				return
			}
		}
		e, err := repo.Update(c.Request.Context(), cur.ID, req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, e)
	}
}

func deleteEventHandler(repo event.Repository, coops cooperative.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if err := eventOwner(c.Request.Context(), coops, id, cur.CooperativeID); err != nil {
			httpx.Error(c, err)
			return
		}
		ok, err = repo.Delete(c.Request.Context(), cur.ID)
		deleted(c, ok, err, event.ErrNotFound)
	}
}

// ===== articles =====

func isAdmin(c *gin.Context) bool {
	id, ok := httpx.IdentityFrom(c)
	return ok && id.Is(auth.RoleAdmin)
}

func listArticlesHandler(repo article.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		items, err := repo.List(c.Request.Context(), article.Query{
			Q:      strings.TrimSpace(c.Query("q")),
			Drafts: isAdmin(c) && boolQuery(c, "drafts"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

// getArticleHandler accepts an id or a slug. Drafts are visible to admins only.
func getArticleHandler(repo article.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("id")
		var (
			a   *article.Article
			err error
		)
		if _, perr := uuid.Parse(key); perr == nil {
			a, err = repo.GetByID(c.Request.Context(), key)
		} else {
			a, err = repo.GetBySlug(c.Request.Context(), key)
		}
		if err != nil {
			httpx.Error(c, err)
			return
		}
		if a.PublishedAt == nil && !isAdmin(c) {
			httpx.Error(c, article.ErrNotFound)
			return
		}
		httpx.OK(c, a)
	}
}

func createArticleHandler(repo article.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req article.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		a := article.Article{
			AuthorID: id.UserID,
			Title:    strings.TrimSpace(req.Title),
			Body:     req.Body,
			CoverURL: req.CoverURL,
		}
		if a.Title == "" {
			httpx.Error(c, httpx.Invalid("title", "is required"))
			return
		}
		a.Slug = category.Slugify(req.Slug)
		if a.Slug == "" {
			a.Slug = category.Slugify(a.Title)
		}
		if a.Slug == "" {
			httpx.Error(c, httpx.Invalid("slug", "must contain letters or digits"))
			return
		}
		if req.Published != nil && *req.Published {
			now := nowUTC()
			a.PublishedAt = &now
		}
		if err := repo.Create(c.Request.Context(), &a); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, a)
	}
}

func updateArticleHandler(repo article.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req article.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.Slug != "" {
			req.Slug = category.Slugify(req.Slug)
			if req.Slug == "" {
				httpx.Error(c, httpx.Invalid("slug", "must contain letters or digits"))
				return
			}
		}
		req.Title = strings.TrimSpace(req.Title)
		a, err := repo.Update(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, a)
	}
}

func deleteArticleHandler(repo article.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		deleted(c, ok, err, article.ErrNotFound)
	}
}

// ===== couriers =====

func listCouriersHandler(repo courier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		activeOnly := !isAdmin(c) || boolQuery(c, "active")
		items, err := repo.List(c.Request.Context(), activeOnly, limit, offset)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getCourierHandler(repo courier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cr, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, cr)
	}
}

func createCourierHandler(repo courier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req courier.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cr := courier.Courier{
			Name:        strings.TrimSpace(req.Name),
			Phone:       req.Phone,
			ServiceArea: req.ServiceArea,
			IsActive:    true,
		}
		if cr.Name == "" {
			httpx.Error(c, httpx.Invalid("name", "is required"))
			return
		}
		if req.BaseFee != nil {
			if req.BaseFee.IsNegative() {
				httpx.Error(c, httpx.Invalid("base_fee", "must not be negative"))
				return
			}
			cr.BaseFee = *req.BaseFee
		}
		if req.IsActive != nil {
			cr.IsActive = *req.IsActive
		}
		if err := repo.Create(c.Request.Context(), &cr); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, cr)
	}
}

func updateCourierHandler(repo courier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req courier.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.BaseFee != nil && req.BaseFee.IsNegative() {
			httpx.Error(c, httpx.Invalid("base_fee", "must not be negative"))
			return
		}
		cr, err := repo.Update(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, cr)
	}
}

func deleteCourierHandler(repo courier.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		deleted(c, ok, err, courier.ErrNotFound)
	}
}

// ===== contacts =====

// createContactHandler stores the message and tells connected admins.
func createContactHandler(repo contact.Repository, pub notify.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contact.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if field, reason, ok := req.Normalize(); !ok {
			httpx.Error(c, httpx.Invalid(field, reason))
			return
		}
		m := contact.Message{Name: req.Name, Email: req.Email, Subject: req.Subject, Message: req.Message}
		if err := repo.Create(c.Request.Context(), &m); err != nil {
			httpx.Error(c, err)
			return
		}
		title := "New contact message from " + m.Name
		pub.Publish(c.Request.Context(), notify.New(notify.TypeContactReceived, title, m))
		httpx.CreatedMessage(c, m, "message received")
	}
}

func listContactsHandler(repo contact.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		items, err := repo.List(c.Request.Context(), boolQuery(c, "unread"), limit, offset)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func markContactReadHandler(repo contact.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := repo.MarkRead(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, m)
	}
}

func deleteContactHandler(repo contact.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := repo.Delete(c.Request.Context(), c.Param("id"))
		deleted(c, ok, err, contact.ErrNotFound)
	}
}
