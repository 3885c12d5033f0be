package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"microblog/internal/auth"
	"microblog/internal/models"
	"microblog/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPostRepository is a mock of the PostRepository interface
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	args := m.Called(ctx, id, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) List(ctx context.Context, filter models.PostFilter, viewerID uint) ([]*models.Post, error) {
	args := m.Called(ctx, filter, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) Replies(ctx context.Context, postID uint, viewerID uint) ([]*models.Post, error) {
	args := m.Called(ctx, postID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) Delete(ctx context.Context, id uint, requesterID uint) (models.DeleteOutcome, error) {
	args := m.Called(ctx, id, requesterID)
	return args.Get(0).(models.DeleteOutcome), args.Error(1)
}

func (m *MockPostRepository) ToggleLike(ctx context.Context, postID uint, userID uint) (models.LikeState, error) {
	args := m.Called(ctx, postID, userID)
	return args.Get(0).(models.LikeState), args.Error(1)
}

// newMockedServer wires handlers over a mocked post repository.
func newMockedServer(t *testing.T, repo *MockPostRepository) *Server {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, testConfig().SessionTTL)
	require.NoError(t, err)
	return &Server{
		config:      testConfig(),
		tokens:      tokens,
		guard:       auth.NewGuard(tokens, nil),
		postService: service.NewPostService(repo),
	}
}

type postBody struct {
	ID              uint           `json:"id"`
	AuthorID        uint           `json:"author_id"`
	Content         string         `json:"content"`
	InReplyToPostID *uint          `json:"in_reply_to_post_id"`
	InReplyToUserID *uint          `json:"in_reply_to_user_id"`
	LikeCount       int            `json:"like_count"`
	Likers          []models.Liker `json:"likers"`
	LikedByViewer   bool           `json:"liked_by_viewer"`
	Author          struct {
		Username string `json:"username"`
	} `json:"author"`
}

func (e *testEnv) createPost(t *testing.T, token string, body map[string]any) postBody {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/posts", body, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[postBody](t, resp)
}

func TestCreatePost(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testConfig(), nil)
	alice := e.signUp(t, "alice")
	root := e.createPost(t, alice, map[string]any{"content": "root"})

	tests := []struct {
		name           string
		token          string
		body           map[string]any
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Top Level With Empty References",
			token:          alice,
			body:           map[string]any{"content": "hello", "in_reply_to_post_id": "", "in_reply_to_user_id": ""},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Reply With Numeric References",
			token:          alice,
			body:           map[string]any{"content": "reply", "in_reply_to_post_id": root.ID, "in_reply_to_user_id": root.AuthorID},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Reply With String References",
			token:          alice,
			body:           map[string]any{"content": "reply", "in_reply_to_post_id": fmt.Sprint(root.ID), "in_reply_to_user_id": nil},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Unauthenticated",
			body:           map[string]any{"content": "hello"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   models.CodeUnauthenticated,
		},
		{
			name:           "Blank Content",
			token:          alice,
			body:           map[string]any{"content": "   "},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
		{
			name:           "Content Too Long",
			token:          alice,
			body:           map[string]any{"content": strings.Repeat("x", 1001)},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
		{
			name:           "Garbage Reference",
			token:          alice,
			body:           map[string]any{"content": "hi", "in_reply_to_post_id": "abc"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
		{
			name:           "Missing Parent",
			token:          alice,
			body:           map[string]any{"content": "hi", "in_reply_to_post_id": 9999},
			expectedStatus: http.StatusNotFound,
			expectedCode:   models.CodeNotFound,
		},
		{
			name:           "Missing Addressed User",
			token:          alice,
			body:           map[string]any{"content": "hi", "in_reply_to_user_id": "9999"},
			expectedStatus: http.StatusNotFound,
			expectedCode:   models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, http.MethodPost, "/posts", tt.body, tt.token)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedCode != "" {
				body := decode[models.ErrorResponse](t, resp)
				assert.Equal(t, tt.expectedCode, body.Code)
			}
		})
	}
}

func TestCreatePost_StoresReferences(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testConfig(), nil)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")
	root := e.createPost(t, alice, map[string]any{"content": "  root  "})
	assert.Equal(t, "root", root.Content)
	assert.Nil(t, root.InReplyToPostID)
	assert.Equal(t, "alice", root.Author.Username)

	reply := e.createPost(t, bob, map[string]any{
		"content":             "hi alice",
		"in_reply_to_post_id": fmt.Sprint(root.ID),
		"in_reply_to_user_id": root.AuthorID,
	})
	require.NotNil(t, reply.InReplyToPostID)
	require.NotNil(t, reply.InReplyToUserID)
	assert.Equal(t, root.ID, *reply.InReplyToPostID)
	assert.Equal(t, root.AuthorID, *reply.InReplyToUserID)
}

func TestCreatePost_FormBody(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testConfig(), nil)
	alice := e.signUp(t, "alice")

	form := url.Values{
		"content":             {"from a form"},
		"in_reply_to_post_id": {""},
		"in_reply_to_user_id": {""},
	}
	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+alice)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decode[postBody](t, resp)
	assert.Equal(t, "from a form", post.Content)
	assert.Nil(t, post.InReplyToPostID)
	assert.Nil(t, post.InReplyToUserID)
}

func TestListPosts_Scopes(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testConfig(), nil)
	alice := e.signUp(t, "alice")
	root := e.createPost(t, alice, map[string]any{"content": "root"})
	e.createPost(t, alice, map[string]any{"content": "reply", "in_reply_to_post_id": root.ID})

	all := decode[[]postBody](t, e.do(t, http.MethodGet, "/posts", nil, ""))
	require.Len(t, all, 2)
	assert.Equal(t, "reply", all[0].Content, "newest first")

	top := decode[[]postBody](t, e.do(t, http.MethodGet, "/posts?scope=top", nil, ""))
	require.Len(t, top, 1)
	assert.Equal(t, root.ID, top[0].ID)

	resp := e.do(t, http.MethodGet, "/posts?scope=sideways", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPost_Thread(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testConfig(), nil)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")
	root := e.createPost(t, alice, map[string]any{"content": "root"})
	e.createPost(t, bob, map[string]any{"content": "first", "in_reply_to_post_id": root.ID})
	e.createPost(t, alice, map[string]any{"content": "second", "in_reply_to_post_id": root.ID})
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, fmt.Sprintf("/posts/%d/like", root.ID), nil, bob).StatusCode)

	type thread struct {
		Post    postBody   `json:"post"`
		Replies []postBody `json:"replies"`
	}

	anon := decode[thread](t, e.do(t, http.MethodGet, fmt.Sprintf("/posts/%d", root.ID), nil, ""))
	assert.Equal(t, "root", anon.Post.Content)
	assert.Equal(t, 1, anon.Post.LikeCount)
	assert.False(t, anon.Post.LikedByViewer)
	require.Len(t, anon.Replies, 2)
	assert.Equal(t, "first", anon.Replies[0].Content)
	assert.Equal(t, "second", anon.Replies[1].Content)

	asBob := decode[thread](t, e.do(t, http.MethodGet, fmt.Sprintf("/posts/%d", root.ID), nil, bob))
	assert.True(t, asBob.Post.LikedByViewer)
	require.Len(t, asBob.Post.Likers, 1)
	assert.Equal(t, "bob", asBob.Post.Likers[0].Username)

	// A bad token degrades to anonymous on optional routes.
	resp := e.do(t, http.MethodGet, fmt.Sprintf("/posts/%d", root.ID), nil, "garbage")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/posts/9999", nil, "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/posts/abc", nil, "").StatusCode)
}

func TestDeletePost(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testConfig(), nil)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")
	post := e.createPost(t, alice, map[string]any{"content": "mine"})
	reply := e.createPost(t, bob, map[string]any{"content": "reply", "in_reply_to_post_id": post.ID})
	path := fmt.Sprintf("/posts/%d", post.ID)

	type deleted struct {
		Deleted bool `json:"deleted"`
	}

	t.Run("Not Author", func(t *testing.T) {
		resp := e.do(t, http.MethodDelete, path, nil, bob)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decode[deleted](t, resp).Deleted)
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, path, nil, "").StatusCode)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodDelete, path, nil, "").StatusCode)
	})

	t.Run("Author", func(t *testing.T) {
		resp := e.do(t, http.MethodDelete, path, nil, alice)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decode[deleted](t, resp).Deleted)
		assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, path, nil, "").StatusCode)
	})

	t.Run("Reply Survives Without Parent", func(t *testing.T) {
		type thread struct {
			Post postBody `json:"post"`
		}
		resp := e.do(t, http.MethodGet, fmt.Sprintf("/posts/%d", reply.ID), nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Nil(t, decode[thread](t, resp).Post.InReplyToPostID)
	})

	t.Run("Already Gone", func(t *testing.T) {
		resp := e.do(t, http.MethodDelete, path, nil, alice)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decode[deleted](t, resp).Deleted)
	})

	t.Run("Reply To Deleted Post", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/posts", map[string]any{"content": "late", "in_reply_to_post_id": post.ID}, bob)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestToggleLike(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testConfig(), nil)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")
	post := e.createPost(t, alice, map[string]any{"content": "like me"})
	path := fmt.Sprintf("/posts/%d/like", post.ID)

	type likeBody struct {
		State     models.LikeState `json:"state"`
		LikeCount int              `json:"like_count"`
	}

	first := decode[likeBody](t, e.do(t, http.MethodPost, path, nil, bob))
	assert.Equal(t, models.LikeStateLiked, first.State)
	assert.Equal(t, 1, first.LikeCount)

	second := decode[likeBody](t, e.do(t, http.MethodPost, path, nil, bob))
	assert.Equal(t, models.LikeStateUnliked, second.State)
	assert.Equal(t, 0, second.LikeCount)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, path, nil, "").StatusCode)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/posts/9999/like", nil, bob).StatusCode)
}

func TestListPosts_StorageFailureHidesDetails(t *testing.T) {
	repo := new(MockPostRepository)
	repo.On("List", mock.Anything, models.PostFilter{Scope: models.ScopeAll}, uint(0)).
		Return(nil, models.NewInternalError(errors.New("connection reset by peer")))
	s := newMockedServer(t, repo)

	app := fiber.New()
	app.Get("/posts", s.ListPosts)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "connection reset")
	assert.Contains(t, string(raw), models.CodeInternal)
	repo.AssertExpectations(t)
}

func TestDeletePost_PassesCallerToRepository(t *testing.T) {
	repo := new(MockPostRepository)
	repo.On("Delete", mock.Anything, uint(5), uint(42)).Return(models.DeleteDeleted, nil)
	s := newMockedServer(t, repo)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(42))
		return c.Next()
	})
	app.Delete("/posts/:id", s.DeletePost)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/posts/5", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	repo.AssertExpectations(t)
}

func TestOptionalIDUnmarshal(t *testing.T) {
	for raw, want := range map[string]string{
		`null`:  "",
		`""`:    "",
		`"12"`:  "12",
		`12`:    "12",
		` 7 `:   "7",
		`"abc"`: "abc",
	} {
		var id optionalID
		require.NoError(t, id.UnmarshalJSON([]byte(raw)), raw)
		assert.Equal(t, want, string(id), raw)
	}
}
