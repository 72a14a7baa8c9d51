package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	tg "github.com/AcmeNiles/AcmeTradeBot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

type fakePhotos struct {
	photos  map[int64][]tele.Photo
	err     error
	lookups int
}

func (f *fakePhotos) ProfilePhotosOf(user *tele.User) ([]tele.Photo, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.photos[user.ID], nil
}

func (f *fakePhotos) FileURLByID(fileID string) (string, error) {
	return "https://api.telegram.test/file/" + fileID, nil
}

func photo(fileID string) tele.Photo {
	return tele.Photo{File: tele.File{FileID: fileID}}
}

func TestProfilePhotoReachesIdentity(t *testing.T) {
	src := &fakePhotos{photos: map[int64][]tele.Photo{7: {photo("big-7"), photo("old-7")}}}
	reg := tg.NewRegistry()
	conv := &fakeConv{}
	if err := registerHandlers(reg, conv, newProfilePhotos(src)); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, cmd, _ := reg.LookupCommand("/trade PONKE")
	for range 2 {
		if err := cmd.Handler(messageContext(t, "/trade PONKE")); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if got := conv.updates[1].Identity.ProfileImageURL; got != "https://api.telegram.test/file/big-7" {
		t.Fatalf("profile image = %q", got)
	}
	if src.lookups != 1 {
		t.Fatalf("lookups = %d, want cached after the first", src.lookups)
	}
}

func TestProfilePhotoCaching(t *testing.T) {
	ctx := context.Background()
	src := &fakePhotos{photos: map[int64][]tele.Photo{}}
	p := newProfilePhotos(src)
	clock := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return clock }
	user := &tele.User{ID: 9}

	if got := p.URL(ctx, user); got != "" {
		t.Fatalf("no photo: %q", got)
	}
	p.URL(ctx, user)
	if src.lookups != 1 {
		t.Fatalf("missing photo not cached: %d lookups", src.lookups)
	}

	clock = clock.Add(photoTTL + time.Second)
	src.photos[9] = []tele.Photo{photo("new-9")}
	if got := p.URL(ctx, user); got != "https://api.telegram.test/file/new-9" {
		t.Fatalf("after expiry: %q", got)
	}

	clock = clock.Add(photoTTL + time.Second)
	src.err = errors.New("telegram: 429")
	if got := p.URL(ctx, user); got != "" {
		t.Fatalf("failed lookup = %q", got)
	}
	src.err = nil
	p.URL(ctx, user)
	if src.lookups != 4 {
		t.Fatalf("failure was cached: %d lookups", src.lookups)
	}

	var none *profilePhotos
	if none.URL(ctx, user) != "" {
		t.Fatal("nil resolver returned a URL")
	}
}
