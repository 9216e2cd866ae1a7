package main

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/coopmarket/internal/comment"
	"github.com/MikeMC777/coopmarket/internal/community"
	"github.com/MikeMC777/coopmarket/internal/httpx"
	"github.com/MikeMC777/coopmarket/internal/post"
)

// ===== communities =====

func listCommunitiesHandler(repo community.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		items, err := repo.List(c.Request.Context(), c.Query("parent_id"), limit, offset)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func communityTreeHandler(repo community.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := repo.All(c.Request.Context())
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, community.Tree(all))
	}
}

func getCommunityHandler(repo community.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cm, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, cm)
	}
}

func createCommunityHandler(repo community.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req community.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cm := community.Community{
			ParentID:    optionalString(derefString(req.ParentID)),
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			CreatedBy:   &id.UserID,
		}
		if cm.Name == "" {
			httpx.Error(c, httpx.Invalid("name", "is required"))
			return
		}
		if err := repo.Create(c.Request.Context(), &cm); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, cm)
	}
}

func communityEditor(c *gin.Context, repo community.Repository) (*community.Community, bool) {
	id, ok := caller(c)
	if !ok {
		return nil, false
	}
	cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return nil, false
	}
	if err := mayEdit(id, derefString(cur.CreatedBy)); err != nil {
		httpx.Error(c, err)
		return nil, false
	}
	return cur, true
}

func updateCommunityHandler(repo community.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req community.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cur, ok := communityEditor(c, repo)
		if !ok {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		cm, err := repo.Update(c.Request.Context(), cur.ID, req)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, cm)
	}
}

func deleteCommunityHandler(repo community.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cur, ok := communityEditor(c, repo)
		if !ok {
			return
		}
		ok, err := repo.Delete(c.Request.Context(), cur.ID)
		deleted(c, ok, err, community.ErrNotFound)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ===== posts =====

func listPostsHandler(repo post.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := httpx.Paging(c)
		items, err := repo.ListByCommunity(c.Request.Context(), c.Param("id"), limit, offset)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, httpx.NewPage(items, limit, offset))
	}
}

func getPostHandler(repo post.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func createPostHandler(repo post.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req post.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		p := post.Post{
			CommunityID: strings.TrimSpace(req.CommunityID),
			AuthorID:    id.UserID,
			Title:       strings.TrimSpace(req.Title),
			Body:        strings.TrimSpace(req.Body),
		}
		switch {
		case p.CommunityID == "":
			httpx.Error(c, httpx.Invalid("community_id", "is required"))
			return
		case p.Title == "":
			httpx.Error(c, httpx.Invalid("title", "is required"))
			return
		case p.Body == "":
			httpx.Error(c, httpx.Invalid("body", "is required"))
			return
		}
		if err := repo.Create(c.Request.Context(), &p); err != nil {
			httpx.Error(c, err)
			return
		}
		if fresh, err := repo.GetByID(c.Request.Context(), p.ID); err == nil {
			p = *fresh
		}
		httpx.Created(c, p)
	}
}

func postAuthor(c *gin.Context, repo post.Repository) (*post.Post, bool) {
	id, ok := caller(c)
	if !ok {
		return nil, false
	}
	cur, err := repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return nil, false
	}
	if err := mayEdit(id, cur.AuthorID); err != nil {
		httpx.Error(c, err)
		return nil, false
	}
	return cur, true
}

func updatePostHandler(repo post.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req post.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cur, ok := postAuthor(c, repo)
		if !ok {
			return
		}
		p, err := repo.Update(c.Request.Context(), cur.ID, strings.TrimSpace(req.Title), strings.TrimSpace(req.Body))
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, p)
	}
}

func deletePostHandler(repo post.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cur, ok := postAuthor(c, repo)
		if !ok {
			return
		}
		ok, err := repo.Delete(c.Request.Context(), cur.ID)
		deleted(c, ok, err, post.ErrNotFound)
	}
}

// ===== comments =====

// listCommentsHandler returns the post's comments as a tree. Signed-in
// callers see their own vote on each comment.
func listCommentsHandler(repo comment.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var viewer string
		if id, ok := httpx.IdentityFrom(c); ok {
			viewer = id.UserID
		}
		flat, err := repo.ListByPost(c.Request.Context(), c.Param("id"), viewer)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, comment.Tree(flat))
	}
}

func createCommentHandler(repo comment.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req comment.Request
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		cm := comment.Comment{
			PostID:   c.Param("id"),
			ParentID: optionalString(derefString(req.ParentID)),
			AuthorID: id.UserID,
			Body:     strings.TrimSpace(req.Body),
			Replies:  []comment.Comment{},
		}
		if cm.Body == "" {
			httpx.Error(c, httpx.Invalid("body", "is required"))
			return
		}
		if err := repo.Create(c.Request.Context(), &cm); err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.Created(c, cm)
	}
}

func deleteCommentHandler(repo comment.Repository) gin.HandlerFunc {
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
		if err := mayEdit(id, cur.AuthorID); err != nil {
			httpx.Error(c, err)
			return
		}
		ok, err = repo.Delete(c.Request.Context(), cur.ID)
		deleted(c, ok, err, comment.ErrNotFound)
	}
}

func voteCommentHandler(repo comment.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var req comment.VoteRequest
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
		if req.Value < -1 || req.Value > 1 {
			httpx.Error(c, comment.ErrBadVote)
			return
		}
		res, err := repo.Vote(c.Request.Context(), c.Param("id"), id.UserID, req.Value)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		httpx.OK(c, res)
	}
}
