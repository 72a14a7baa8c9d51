package webhook

import (
	"context"

	"github.com/AcmeNiles/AcmeTradeBot/internal/domain"
)

// Order is the "order" object of a provider delivery.
type Order struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CreatedAt         string `json:"createdAt"`
	IntentID          string `json:"intentId"`
	UserID            string `json:"userId"`
	TxHash            string `json:"blockchainTransactionHash,omitempty"`
	ExecutionMessage  string `json:"executionMessage,omitempty"`
	IntentMemo        string `json:"intentMemo,omitempty"`
	UserEmail         string `json:"userEmail,omitempty"`
	UserWalletAddress string `json:"userWalletAddress,omitempty"`
	EncryptedUserData string `json:"encryptedUserData,omitempty"`
}

// Delivery is an order tied back to a Telegram user, when it carries one.
type Delivery struct {
	Order Order
	// TelegramID is zero for orders without an identity blob.
	TelegramID int64
	Auth       *domain.AuthResult
}

// Correlator ties an inbound order to the user it completes.
type Correlator interface {
	Correlate(ctx context.Context, o Order) (Delivery, error)
}

// Completer stores a decrypted webhook identity.
type Completer interface {
	Complete(ctx context.Context, encryptedUserData string) (int64, domain.AuthResult, error)
}

// IdentityCorrelator matches deliveries by the identity sealed inside
// encryptedUserData. There is no request id linking a claim to its delivery.
type IdentityCorrelator struct {
	Auth Completer
}

func (c IdentityCorrelator) Correlate(ctx context.Context, o Order) (Delivery, error) {
	d := Delivery{Order: o}
	if o.EncryptedUserData == "" {
		return d, nil
	}
	userID, res, err := c.Auth.Complete(ctx, o.EncryptedUserData)
	if err != nil {
		return d, err
	}
	d.TelegramID = userID
	d.Auth = &res
	return d, nil
}

// Notifier tells a user that a delivery completed for them.
type Notifier interface {
	Notify(ctx context.Context, d Delivery) error
}
