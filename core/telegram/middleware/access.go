package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions configures AdminOnly.
type AdminOptions struct {
	AdminID int64
	// OnReject answers non-admins; nil drops the update silently.
	OnReject tele.HandlerFunc
}

// AdminOnly lets only telegram.admin_id through. With no admin configured
// every caller is rejected.
func AdminOnly(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); u != nil && opts.AdminID != 0 && u.ID == opts.AdminID {
				return next(c)
			}
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
