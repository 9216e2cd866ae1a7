package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/coopmarket/internal/comment"
	"github.com/MikeMC777/coopmarket/internal/community"
	"github.com/MikeMC777/coopmarket/internal/contact"
	"github.com/MikeMC777/coopmarket/internal/notify"
	"github.com/MikeMC777/coopmarket/internal/storage"
)

// ===== STUB community.Repository =====

type stubCommunities struct {
	items map[string]*community.Community
}

func (s *stubCommunities) Create(_ context.Context, c *community.Community) error {
	if c.ParentID != nil {
		if _, ok := s.items[*c.ParentID]; !ok {
			return community.ErrParentMissing
		}
	}
	c.ID = uuid.NewString()
	cp := *c
	s.items[c.ID] = &cp
	return nil
}

func (s *stubCommunities) GetByID(_ context.Context, id string) (*community.Community, error) {
	c, ok := s.items[id]
	if !ok {
		return nil, community.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *stubCommunities) List(context.Context, string, int, int) ([]community.Community, error) {
	return s.All(context.Background())
}

func (s *stubCommunities) All(context.Context) ([]community.Community, error) {
	out := make([]community.Community, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, *c)
	}
	return out, nil
}

func (s *stubCommunities) Update(_ context.Context, id string, r community.Request) (*community.Community, error) {
	c, ok := s.items[id]
	if !ok {
		return nil, community.ErrNotFound
	}
	if r.ParentID != nil && *r.ParentID == id {
		return nil, community.ErrCycle
	}
	if r.Name != "" {
		c.Name = r.Name
	}
	cp := *c
	return &cp, nil
}

func (s *stubCommunities) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

// ===== STUB comment.Repository =====

type stubComments struct {
	items map[string]*comment.Comment
	votes map[string]map[string]int // comment -> user -> value
}

func newStubComments() *stubComments {
	return &stubComments{items: make(map[string]*comment.Comment), votes: make(map[string]map[string]int)}
}

func (s *stubComments) Create(_ context.Context, c *comment.Comment) error {
	if c.ParentID != nil {
		p, ok := s.items[*c.ParentID]
		if !ok || p.PostID != c.PostID {
			return comment.ErrBadParent
		}
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC().Add(time.Duration(len(s.items)) * time.Second)
	cp := *c
	s.items[c.ID] = &cp
	return nil
}

func (s *stubComments) GetByID(_ context.Context, id string) (*comment.Comment, error) {
	c, ok := s.items[id]
	if !ok {
		return nil, comment.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *stubComments) ListByPost(_ context.Context, postID, viewerID string) ([]comment.Comment, error) {
	var out []comment.Comment
	for _, c := range s.items {
		if c.PostID != postID {
			continue
		}
		cp := *c
		cp.Score = 0
		for _, v := range s.votes[c.ID] {
			cp.Score += v
		}
		cp.MyVote = s.votes[c.ID][viewerID]
		out = append(out, cp)
	}
	return out, nil
}

func (s *stubComments) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *stubComments) Vote(_ context.Context, commentID, userID string, value int) (*comment.VoteResult, error) {
	if _, ok := s.items[commentID]; !ok {
		return nil, comment.ErrNotFound
	}
	if s.votes[commentID] == nil {
		s.votes[commentID] = make(map[string]int)
	}
	if value == 0 {
		delete(s.votes[commentID], userID)
	} else {
		s.votes[commentID][userID] = value
	}
	res := &comment.VoteResult{CommentID: commentID, MyVote: value}
	for _, v := range s.votes[commentID] {
		res.Score += v
	}
	return res, nil
}

// ===== STUB contact.Repository =====

type stubContacts struct {
	items []contact.Message
}

func (s *stubContacts) Create(_ context.Context, m *contact.Message) error {
	m.ID = uuid.NewString()
	s.items = append(s.items, *m)
	return nil
}

func (s *stubContacts) List(context.Context, bool, int, int) ([]contact.Message, error) {
	return s.items, nil
}

func (s *stubContacts) MarkRead(_ context.Context, id string) (*contact.Message, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsRead = true
			return &s.items[i], nil
		}
	}
	return nil, contact.ErrNotFound
}

func (s *stubContacts) Delete(context.Context, string) (bool, error) { return false, nil }

// ===== STUB uploader =====

type stubUploader struct {
	max   int64
	names []string
}

func (s *stubUploader) MaxBytes() int64 { return s.max }

func (s *stubUploader) Upload(_ context.Context, name string, body io.Reader) (*storage.File, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, storage.ErrEmpty
	}
	s.names = append(s.names, name)
	return &storage.File{Key: "uploads/" + name, URL: "https://cdn.example.com/uploads/" + name, Size: int64(len(b)), Name: name}, nil
}

// ===== TESTS =====

func TestCommunities_TreeAndOwnership(t *testing.T) {
	t.Parallel()
	repo := &stubCommunities{items: make(map[string]*community.Community)}
	r := newRouter(deps{communities: repo})

	w, env := do(t, r, http.MethodPost, "/api/v1/communities", customerToken, `{"name":"Caficultores"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	root := decode[community.Community](t, env)
	assert.Equal(t, "cust-1", *root.CreatedBy)

	w, _ = do(t, r, http.MethodPost, "/api/v1/communities", customerToken, `{"name":"Orgánicos","parent_id":"`+root.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w, env = do(t, r, http.MethodPost, "/api/v1/communities", customerToken, `{"name":"X","parent_id":"missing"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "parent community does not exist", env.Error)
	// an empty parent_id means a root community
	w, _ = do(t, r, http.MethodPost, "/api/v1/communities", customerToken, `{"name":"Apicultores","parent_id":""}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/communities/tree", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode[[]community.Node](t, env)
	require.Len(t, tree, 2)
	assert.Equal(t, "Apicultores", tree[0].Name)
	assert.Empty(t, tree[0].Children)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "Orgánicos", tree[1].Children[0].Name)

	w, _ = do(t, r, http.MethodPatch, "/api/v1/communities/"+root.ID, coopToken, `{"name":"Mine"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env = do(t, r, http.MethodPatch, "/api/v1/communities/"+root.ID, customerToken, `{"parent_id":"`+root.ID+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "cannot be nested")
	w, _ = do(t, r, http.MethodDelete, "/api/v1/communities/"+root.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestComments_TreeAndVotes(t *testing.T) {
	t.Parallel()
	repo := newStubComments()
	r := newRouter(deps{comments: repo})

	w, env := do(t, r, http.MethodPost, "/api/v1/posts/p1/comments", customerToken, `{"body":"first"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[comment.Comment](t, env)
	assert.Equal(t, "[]", compactReplies(t, env))

	w, env = do(t, r, http.MethodPost, "/api/v1/posts/p1/comments", coopToken, `{"body":"second"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	second := decode[comment.Comment](t, env)

	w, _ = do(t, r, http.MethodPost, "/api/v1/posts/p1/comments", coopToken, `{"body":"reply","parent_id":"`+first.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/posts/p2/comments", coopToken, `{"body":"wrong post","parent_id":"`+first.ID+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/posts/p1/comments", coopToken, `{"body":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, r, http.MethodPost, "/api/v1/comments/"+second.ID+"/vote", customerToken, `{"value":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[comment.VoteResult](t, env).Score)
	w, _ = do(t, r, http.MethodPost, "/api/v1/comments/"+second.ID+"/vote", customerToken, `{"value":2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodPost, "/api/v1/comments/"+second.ID+"/vote", "", `{"value":1}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the upvoted comment leads; the viewer sees their own vote
	w, env = do(t, r, http.MethodGet, "/api/v1/posts/p1/comments", customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tree := decode[[]comment.Comment](t, env)
	require.Len(t, tree, 2)
	assert.Equal(t, second.ID, tree[0].ID)
	assert.Equal(t, 1, tree[0].MyVote)
	require.Len(t, tree[1].Replies, 1)
	assert.Equal(t, "reply", tree[1].Replies[0].Body)

	_, env = do(t, r, http.MethodGet, "/api/v1/posts/p1/comments", "", nil)
	assert.Equal(t, 0, decode[[]comment.Comment](t, env)[0].MyVote)

	// clearing the vote
	w, env = do(t, r, http.MethodPost, "/api/v1/comments/"+second.ID+"/vote", customerToken, `{"value":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[comment.VoteResult](t, env).Score)

	w, _ = do(t, r, http.MethodDelete, "/api/v1/comments/"+first.ID, coopToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = do(t, r, http.MethodDelete, "/api/v1/comments/"+first.ID, customerToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func compactReplies(t *testing.T, env envelope) string {
	t.Helper()
	raw := decode[map[string]any](t, env)["replies"]
	require.NotNil(t, raw)
	if list, ok := raw.([]any); ok && len(list) == 0 {
		return "[]"
	}
	return "non-empty"
}

func TestContact_StoresAndNotifiesAdmins(t *testing.T) {
	t.Parallel()
	repo := &stubContacts{}
	n := &recordingNotifier{}
	r := newRouter(deps{contacts: repo, notifier: n})

	w, env := do(t, r, http.MethodPost, "/api/v1/contacts", "", `{"name":"Laura","email":"not-an-email","message":"hola"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email: is not a valid address", env.Error)
	assert.Empty(t, n.types())

	w, env = do(t, r, http.MethodPost, "/api/v1/contacts", "", `{"name":" Laura ","email":"Laura@Example.com","message":"¿Venden al por mayor?"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode[contact.Message](t, env)
	assert.Equal(t, "laura@example.com", m.Email)
	assert.Equal(t, "Laura", m.Name)
	assert.Equal(t, []string{notify.TypeContactReceived}, n.types())

	w, _ = do(t, r, http.MethodGet, "/api/v1/contacts", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, env = do(t, r, http.MethodPatch, "/api/v1/contacts/"+m.ID+"/read", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[contact.Message](t, env).IsRead)
	w, _ = do(t, r, http.MethodDelete, "/api/v1/contacts/nope", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploads(t *testing.T) {
	t.Parallel()
	up := &stubUploader{max: 16}
	r := newRouter(deps{uploads: up})

	send := func(path, field string, files map[string]string, token string) (*httptest.ResponseRecorder, envelope) {
		body, ct := multipartBody(t, field, files)
		req := httptest.NewRequest(http.MethodPost, path, body)
		req.Header.Set("Content-Type", ct)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var env envelope
		if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
			_ = json.Unmarshal(w.Body.Bytes(), &env)
		}
		return w, env
	}

	w, _ := send("/api/v1/uploads", "file", map[string]string{"a.png": "png"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := send("/api/v1/uploads", "file", map[string]string{"a.png": "pngdata"}, customerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "a.png", decode[storage.File](t, env).Name)

	w, env = send("/api/v1/uploads", "file", map[string]string{"big.png": strings.Repeat("x", 17)}, customerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file exceeds the upload size limit", env.Error)

	w, env = send("/api/v1/uploads", "other", map[string]string{"a.png": "pngdata"}, customerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file: a multipart file field is required", env.Error)

	// bodies past the request cap are reported as too large, not as missing
	huge := strings.Repeat("x", 2<<20)
	w, env = send("/api/v1/uploads", "file", map[string]string{"huge.png": huge}, customerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file exceeds the upload size limit", env.Error)
	w, env = send("/api/v1/uploads/batch", "files", map[string]string{"huge.png": huge}, customerToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file exceeds the upload size limit", env.Error)

	w, env = send("/api/v1/uploads/batch", "files", map[string]string{"1.png": "one", "2.png": "two"}, customerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decode[[]storage.File](t, env), 2)
}

func TestNotificationsSocket_TokenAndRole(t *testing.T) {
	t.Parallel()
	bus := notify.NewBus()
	srv := httptest.NewServer(newRouter(deps{hub: notify.NewHub(bus)}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/admin/notifications/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?token="+customerToken, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+adminToken, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	bus.Publish(context.Background(), notify.New(notify.TypeContactReceived, "hello", nil))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got notify.Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, notify.TypeContactReceived, got.Type)

	header := http.Header{"Authorization": []string{"Bearer " + adminToken}}
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	_ = conn2.Close()
}
