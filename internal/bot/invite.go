package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ChatAPI is the part of *tele.Bot the inviter needs.
type ChatAPI interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
	CreateInviteLink(chat tele.Recipient, link *tele.ChatInviteLink) (*tele.ChatInviteLink, error)
}

type groupRef string

func (g groupRef) Recipient() string { return string(g) }

// Inviter links users to the community group: the public link for members,
// a single-use invite otherwise.
type Inviter struct {
	api   ChatAPI
	group string
}

// NewInviter returns an Inviter for group ("@acme" or a numeric chat id).
func NewInviter(api ChatAPI, group string) *Inviter {
	group = strings.TrimSpace(group)
	if group != "" && !strings.HasPrefix(group, "@") && !strings.HasPrefix(group, "-") {
		group = "@" + group
	}
	return &Inviter{api: api, group: group}
}

func (i *Inviter) InviteLink(ctx context.Context, userID int64) (string, error) {
	if i == nil || i.group == "" || i.api == nil {
		return "", nil
	}
	chat := groupRef(i.group)
	member, err := i.api.ChatMemberOf(chat, &tele.User{ID: userID})
	if err == nil && isMember(member) && strings.HasPrefix(i.group, "@") {
		return "https://t.me/" + strings.TrimPrefix(i.group, "@"), nil
	}
	if err != nil {
		logger.Debug(ctx, "bot", "invite.member_lookup",
			slog.Int64("user_id", userID),
			slog.String("status", "fail"),
			logger.Err(err),
		)
	}
	link, err := i.api.CreateInviteLink(chat, &tele.ChatInviteLink{MemberLimit: 1})
	if err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

func isMember(m *tele.ChatMember) bool {
	if m == nil {
		return false
	}
	switch m.Role {
	case tele.Member, tele.Administrator, tele.Creator:
		return true
	}
	return false
}
