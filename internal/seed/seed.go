package seed

import (
	"context"
	"fmt"

	"microblog/internal/middleware"
	"microblog/internal/models"
	"microblog/internal/repository"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Users int
	Posts int
	Likes int
	// ReplyPercent is the share of posts, 0..100, that reply to an earlier post.
	ReplyPercent int
	Clean        bool
	SkipBcrypt   bool
	MaxDays      int
	Seed         int64
}

// Summary reports what a run created.
type Summary struct {
	Users   int
	Posts   int
	Replies int
	Likes   int
}

// Seeder fills a database with demo users, posts and likes.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	posts   repository.PostRepository
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{
		db:      db,
		opts:    opts,
		factory: NewFactory(db, opts),
		posts:   repository.NewPostRepository(db),
	}
}

// Run seeds according to the options. Likes are capped at the number of
// distinct (user, post) pairs.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if s.opts.Clean {
		if err := s.ClearAll(); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
	}

	var existing int64
	if err := s.db.Model(&models.User{}).Count(&existing).Error; err != nil {
		return nil, err
	}
	users, err := s.factory.CreateUsers(s.opts.Users, int(existing))
	if err != nil {
		return nil, fmt.Errorf("create users: %w", err)
	}
	summary := &Summary{Users: len(users)}
	middleware.Logger.InfoContext(ctx, "seeded users", "count", len(users))
	if len(users) == 0 {
		return summary, nil
	}

	posts := make([]*models.Post, 0, s.opts.Posts)
	for i := 0; i < s.opts.Posts; i++ {
		var parent *models.Post
		if len(posts) > 0 && s.factory.pick(100) < s.opts.ReplyPercent {
			parent = posts[s.factory.pick(len(posts))]
		}
		post, err := s.factory.CreatePost(users[s.factory.pick(len(users))], parent)
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, post)
		summary.Posts++
		if parent != nil {
			summary.Replies++
		}
	}
	middleware.Logger.InfoContext(ctx, "seeded posts", "count", summary.Posts, "replies", summary.Replies)

	likes, err := s.seedLikes(ctx, users, posts)
	if err != nil {
		return nil, err
	}
	summary.Likes = likes
	middleware.Logger.InfoContext(ctx, "seeded likes", "count", likes)

	return summary, nil
}

// seedLikes likes distinct random pairs through the repository toggle so
// the unique (user, post) rule is honoured.
func (s *Seeder) seedLikes(ctx context.Context, users []*models.User, posts []*models.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	target := s.opts.Likes
	if limit := len(users) * len(posts); target > limit {
		target = limit
	}

	type pair struct{ user, post uint }
	liked := make(map[pair]struct{}, target)
	for len(liked) < target {
		p := pair{
			user: users[s.factory.pick(len(users))].ID,
			post: posts[s.factory.pick(len(posts))].ID,
		}
		if _, dup := liked[p]; dup {
			continue
		}
		state, err := s.posts.ToggleLike(ctx, p.post, p.user)
		if err != nil {
			return len(liked), fmt.Errorf("like post %d: %w", p.post, err)
		}
		if state != models.LikeStateLiked {
			return len(liked), fmt.Errorf("like post %d: unexpected state %s", p.post, state)
		}
		liked[p] = struct{}{}
	}
	return len(liked), nil
}

// ClearAll removes every like, post and user.
func (s *Seeder) ClearAll() error {
	return s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Like{}, &models.Post{}, &models.User{}} {
			if err := tx.Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
