// Package comment stores threaded replies to posts and their votes.
package comment

import (
	"sort"
	"time"

	"github.com/MikeMC777/coopmarket/internal/apperr"
)

var (
	ErrNotFound     = apperr.NotFound("comment not found")
	ErrPostNotFound = apperr.Invalid("post does not exist")
	ErrBadParent    = apperr.Invalid("parent comment does not belong to this post")
	ErrBadVote      = apperr.Invalid("vote value must be -1, 0 or 1")
)

type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	ParentID   *string   `json:"parent_id,omitempty"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	Score      int       `json:"score"`
	MyVote     int       `json:"my_vote"`
	CreatedAt  time.Time `json:"created_at"`
	Replies    []Comment `json:"replies"`
}

// swagger:model CommentRequest
type Request struct {
	ParentID *string `json:"parent_id,omitempty"`
	Body     string  `json:"body" example:"¡Gracias por el dato!"`
}

// swagger:model VoteRequest
type VoteRequest struct {
	Value int `json:"value" example:"1"`
}

// VoteResult is the comment's score after a vote.
type VoteResult struct {
	CommentID string `json:"comment_id"`
	Score     int    `json:"score"`
	MyVote    int    `json:"my_vote"`
}

// Tree nests flat comments under their parent. Top-level comments are ordered
// by score, highest first; replies read oldest first. Comments whose parent is
// missing from the list are promoted to the top level.
func Tree(flat []Comment) []Comment {
	ids := make(map[string]bool, len(flat))
	for _, c := range flat {
		ids[c.ID] = true
	}
	replies := make(map[string][]Comment)
	var roots []Comment
	for _, c := range flat {
		if c.ParentID == nil || !ids[*c.ParentID] || *c.ParentID == c.ID {
			roots = append(roots, c)
			continue
		}
		replies[*c.ParentID] = append(replies[*c.ParentID], c)
	}

	seen := make(map[string]bool, len(flat))
	var attach func(level []Comment) []Comment
	attach = func(level []Comment) []Comment {
		out := make([]Comment, 0, len(level))
		for _, c := range level {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			kids := replies[c.ID]
			sort.SliceStable(kids, func(i, j int) bool { return kids[i].CreatedAt.Before(kids[j].CreatedAt) })
			c.Replies = attach(kids)
			out = append(out, c)
		}
		return out
	}

	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].Score != roots[j].Score {
			return roots[i].Score > roots[j].Score
		}
		return roots[i].CreatedAt.Before(roots[j].CreatedAt)
	})
	return attach(roots)
}
