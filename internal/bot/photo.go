package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Telegram file links stay valid for at least an hour.
const photoTTL = 30 * time.Minute

// PhotoSource finds a user's current profile picture. *tele.Bot satisfies it.
type PhotoSource interface {
	ProfilePhotosOf(user *tele.User) ([]tele.Photo, error)
	FileURLByID(fileID string) (string, error)
}

type photoEntry struct {
	url     string
	expires time.Time
}

// profilePhotos resolves and caches profile image URLs per user. Users
// without a picture are cached as "" so they cost one lookup per TTL.
type profilePhotos struct {
	src PhotoSource
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	urls map[int64]photoEntry
}

func newProfilePhotos(src PhotoSource) *profilePhotos {
	return &profilePhotos{
		src:  src,
		ttl:  photoTTL,
		now:  time.Now,
		urls: make(map[int64]photoEntry),
	}
}

// URL returns the user's profile image URL, or "" when there is none or the
// lookup failed. Failures are not cached.
func (p *profilePhotos) URL(ctx context.Context, user *tele.User) string {
	if p == nil || user == nil {
		return ""
	}
	now := p.now()
	p.mu.Lock()
	e, ok := p.urls[user.ID]
	p.mu.Unlock()
	if ok && now.Before(e.expires) {
		return e.url
	}

	url, err := p.lookup(user)
	if err != nil {
		logger.Warn(ctx, "bot", "profile_photo.lookup",
			slog.Int64("user_id", user.ID),
			logger.Err(err),
		)
		return ""
	}
	p.mu.Lock()
	p.urls[user.ID] = photoEntry{url: url, expires: now.Add(p.ttl)}
	p.mu.Unlock()
	return url
}

func (p *profilePhotos) lookup(user *tele.User) (string, error) {
	photos, err := p.src.ProfilePhotosOf(user)
	if err != nil {
		return "", err
	}
	// newest picture first, largest size
	if len(photos) == 0 || photos[0].FileID == "" {
		return "", nil
	}
	return p.src.FileURLByID(photos[0].FileID)
}
