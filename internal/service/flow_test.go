package service

import (
	"context"
	"testing"
	"time"

	"microblog/internal/auth"
	"microblog/internal/models"
	"microblog/internal/repository"
	"microblog/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type flowFixture struct {
	users  *UserService
	posts  *PostService
	guard  *auth.Guard
	tokens *auth.TokenService
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	tokens, err := auth.NewTokenService("flow-test-signing-key-0123456789abc", 30*24*time.Hour)
	require.NoError(t, err)
	return &flowFixture{
		users:  NewUserService(repository.NewUserRepository(db), auth.NewPasswordHasher(bcrypt.MinCost), tokens),
		posts:  NewPostService(repository.NewPostRepository(db)),
		guard:  auth.NewGuard(tokens, nil),
		tokens: tokens,
	}
}

func (f *flowFixture) signUp(t *testing.T, username, password string) uint {
	t.Helper()
	ctx := context.Background()
	_, err := f.users.Register(ctx, RegisterInput{Username: username, Email: username + "@x.io", Password: password})
	require.NoError(t, err)
	session, err := f.users.Login(ctx, LoginInput{Username: username, Password: password})
	require.NoError(t, err)
	userID, err := f.guard.RequireUser(ctx, session.Token)
	require.NoError(t, err)
	return userID
}

func TestFlow_RegisterLoginVerify(t *testing.T) {
	t.Parallel()
	f := newFlowFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.io", Password: "pw1"})
	require.NoError(t, err)

	session, err := f.users.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	require.NoError(t, err)

	claims, err := f.tokens.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = f.users.Register(ctx, RegisterInput{Username: "alice", Email: "other@x.io", Password: "pw2"})
	assertCode(t, err, models.CodeConflict)
}

func TestFlow_AliceAndBob(t *testing.T) {
	t.Parallel()
	f := newFlowFixture(t)
	ctx := context.Background()

	alice := f.signUp(t, "alice", "pw1")
	bob := f.signUp(t, "bob", "pw2")

	post, err := f.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "alice", post.Author.Username)
	assert.Zero(t, post.LikeCount)

	reply, err := f.posts.CreatePost(ctx, CreatePostInput{
		AuthorID:        bob,
		Content:         "hi alice",
		InReplyToPostID: &post.ID,
		InReplyToUserID: &alice,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.InReplyToPostID)
	assert.Equal(t, post.ID, *reply.InReplyToPostID)

	state, liked, err := f.posts.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeStateLiked, state)
	assert.Equal(t, 1, liked.LikeCount)
	assert.Equal(t, []models.Liker{{UserID: bob, Username: "bob"}}, liked.Likers)

	state, unliked, err := f.posts.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LikeStateUnliked, state)
	assert.Zero(t, unliked.LikeCount)

	outcome, err := f.posts.DeletePost(ctx, DeletePostInput{UserID: bob, PostID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, models.DeleteDenied, outcome)
	_, err = f.posts.GetPost(ctx, post.ID, 0)
	require.NoError(t, err)

	thread, err := f.posts.GetThread(ctx, post.ID, alice)
	require.NoError(t, err)
	require.Len(t, thread.Replies, 1)
	assert.Equal(t, reply.ID, thread.Replies[0].ID)

	outcome, err = f.posts.DeletePost(ctx, DeletePostInput{UserID: alice, PostID: post.ID})
	require.NoError(t, err)
	assert.Equal(t, models.DeleteDeleted, outcome)

	_, err = f.posts.GetPost(ctx, post.ID, 0)
	assertCode(t, err, models.CodeNotFound)

	orphan, err := f.posts.GetPost(ctx, reply.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, orphan.InReplyToPostID)

	_, err = f.posts.CreatePost(ctx, CreatePostInput{AuthorID: bob, Content: "too late", InReplyToPostID: &post.ID})
	assertCode(t, err, models.CodeNotFound)

	_, _, err = f.posts.ToggleLike(ctx, bob, post.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestFlow_ToggleParity(t *testing.T) {
	t.Parallel()
	f := newFlowFixture(t)
	ctx := context.Background()

	alice := f.signUp(t, "alice", "pw1")
	bob := f.signUp(t, "bob", "pw2")
	post, err := f.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice, Content: "hello"})
	require.NoError(t, err)

	for n := 1; n <= 6; n++ {
		state, p, err := f.posts.ToggleLike(ctx, bob, post.ID)
		require.NoError(t, err)
		if n%2 == 1 {
			assert.Equal(t, models.LikeStateLiked, state)
			assert.Equal(t, 1, p.LikeCount)
		} else {
			assert.Equal(t, models.LikeStateUnliked, state)
			assert.Equal(t, 0, p.LikeCount)
		}
	}
}

func TestFlow_DeleteAccount(t *testing.T) {
	t.Parallel()
	f := newFlowFixture(t)
	ctx := context.Background()

	alice := f.signUp(t, "alice", "pw1")
	bob := f.signUp(t, "bob", "pw2")
	post, err := f.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice, Content: "hello"})
	require.NoError(t, err)
	_, _, err = f.posts.ToggleLike(ctx, bob, post.ID)
	require.NoError(t, err)

	require.NoError(t, f.users.DeleteAccount(ctx, alice))

	_, err = f.users.GetUserByUsername(ctx, "alice")
	assertCode(t, err, models.CodeNotFound)
	_, err = f.posts.GetPost(ctx, post.ID, 0)
	assertCode(t, err, models.CodeNotFound)

	// A still-valid token for a deleted account cannot write.
	_, err = f.posts.CreatePost(ctx, CreatePostInput{AuthorID: alice, Content: "ghost"})
	assertCode(t, err, models.CodeNotFound)

	_, err = f.users.Login(ctx, LoginInput{Username: "alice", Password: "pw1"})
	assertCode(t, err, models.CodeUnauthenticated)
}
