// Package seed creates demo data for development databases. It is not used
// by the server itself.
package seed

import (
	"fmt"
	"strings"
	"time"

	"microblog/internal/models"
	"microblog/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "password123"

// Factory builds domain entities with fake content and persists them.
type Factory struct {
	db         *gorm.DB
	faker      *gofakeit.Faker
	maxDays    int
	skipBcrypt bool
	hash       string
}

// NewFactory binds a factory to db. A zero seed picks a random one.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	maxDays := opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{
		db:         db,
		faker:      gofakeit.New(opts.Seed),
		maxDays:    maxDays,
		skipBcrypt: opts.SkipBcrypt,
	}
}

// passwordHash hashes DemoPassword once per factory.
func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	if f.skipBcrypt {
		f.hash = DemoPassword
		return f.hash, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// BuildUser returns an unsaved user. n keeps usernames unique within a run.
func (f *Factory) BuildUser(n int) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	username := handle(f.faker.Username(), n)
	return &models.User{
		Username:  username,
		Email:     strings.ToLower(username) + "@" + f.faker.DomainName(),
		Password:  hash,
		CreatedAt: f.pastTime(),
	}, nil
}

// handle strips characters usernames may not contain and appends n.
func handle(raw string, n int) string {
	var b strings.Builder
	for _, r := range raw {
		if r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	suffix := fmt.Sprintf("_%d", n)
	base := b.String()
	if base == "" {
		base = "user"
	}
	if limit := validation.MaxUsernameLength - len(suffix); len(base) > limit {
		base = base[:limit]
	}
	return base + suffix
}

// BuildPost returns an unsaved post by author. A non-nil parent makes it a
// reply addressed to the parent's author.
func (f *Factory) BuildPost(author *models.User, parent *models.Post) *models.Post {
	content := f.faker.Sentence(f.faker.Number(4, 24))
	if len([]rune(content)) > validation.MaxContentLength {
		content = string([]rune(content)[:validation.MaxContentLength])
	}
	post := &models.Post{
		AuthorID:  author.ID,
		Content:   content,
		CreatedAt: f.pastTime(),
	}
	if parent != nil {
		post.InReplyToPostID = &parent.ID
		post.InReplyToUserID = &parent.AuthorID
		if post.CreatedAt.Before(parent.CreatedAt) {
			post.CreatedAt = parent.CreatedAt.Add(time.Duration(f.faker.Number(1, 180)) * time.Minute)
		}
	}
	return post
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return time.Now().UTC().Add(-back)
}

// CreateUsers persists count users in batches.
func (f *Factory) CreateUsers(count, offset int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		u, err := f.BuildUser(offset + i + 1)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if len(users) == 0 {
		return users, nil
	}
	if err := f.db.CreateInBatches(users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CreatePost persists a single post.
func (f *Factory) CreatePost(author *models.User, parent *models.Post) (*models.Post, error) {
	post := f.BuildPost(author, parent)
	if err := f.db.Omit("Author", "InReplyToPost", "InReplyToUser", "Likes").Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// pick returns a random element index below n.
func (f *Factory) pick(n int) int {
	return f.faker.Number(0, n-1)
}
