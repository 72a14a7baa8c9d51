// Package webhook receives provider order deliveries and completes pending
// identity claims from them.
package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/AcmeNiles/AcmeTradeBot/core/logger"
	"github.com/AcmeNiles/AcmeTradeBot/internal/orders"
)

const (
	component       = "hook"
	signatureHeader = "acme-signature"
	maxBodyBytes    = 1 << 20
)

var requiredKeys = []string{"id", "status", "createdAt", "intentId", "userId"}

// Options configure the handler.
type Options struct {
	// Path receives POSTed orders, "/acme" when empty.
	Path       string
	Ledger     orders.Ledger
	Correlator Correlator
	Notifier   Notifier
	// Verifier is optional; without it signatures are not checked.
	Verifier *Verifier
}

type handler struct {
	ledger     orders.Ledger
	correlator Correlator
	notifier   Notifier
	verifier   *Verifier
}

// NewRouter returns the provider-facing routes: POST {path} and GET /healthz.
func NewRouter(opts Options) *mux.Router {
	if opts.Path == "" {
		opts.Path = "/acme"
	}
	h := &handler{
		ledger:     opts.Ledger,
		correlator: opts.Correlator,
		notifier:   opts.Notifier,
		verifier:   opts.Verifier,
	}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok\n")
	}).Methods(http.MethodGet)
	r.HandleFunc(opts.Path, h.order).Methods(http.MethodPost)
	return r
}

func (h *handler) order(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := r.Header.Get("X-Request-ID")
	if rid == "" {
		rid = uuid.NewString()
	}
	ctx := logger.WithRID(r.Context(), rid)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.reject(ctx, w, http.StatusBadRequest, "read body", err)
		return
	}
	if h.verifier != nil {
		if err := h.verifier.Verify(body, r.Header.Get(signatureHeader)); err != nil {
			h.reject(ctx, w, http.StatusUnauthorized, "signature", err)
			return
		}
	}
	o, err := decodeOrder(body)
	if err != nil {
		h.reject(ctx, w, http.StatusBadRequest, "decode", err)
		return
	}

	d, err := h.correlator.Correlate(ctx, o)
	if err != nil {
		h.reject(ctx, w, http.StatusBadRequest, "correlate", err)
		return
	}

	rec := orders.Order{
		ID:        o.ID,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		IntentID:  o.IntentID,
		UserID:    o.UserID,
		Payload:   string(body),
	}
	if d.TelegramID != 0 {
		rec.TelegramID = sql.NullInt64{Int64: d.TelegramID, Valid: true}
	}
	fresh, err := h.ledger.Record(ctx, rec)
	if err != nil {
		logger.Error(ctx, component, "order.failed", slog.String("order_id", o.ID), logger.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	attrs := []slog.Attr{
		slog.String("order_id", o.ID),
		slog.String("status", o.Status),
		slog.String("intent_id", o.IntentID),
		slog.Int64("user_id", d.TelegramID),
		slog.Bool("duplicate", !fresh),
		slog.Duration("duration", logger.Took(start)),
	}
	if fresh && h.notifier != nil && d.TelegramID != 0 {
		if err := h.notifier.Notify(ctx, d); err != nil {
			attrs = append(attrs, logger.Err(err))
			logger.Warn(ctx, component, "order.notify_failed", attrs...)
		}
	}
	logger.Info(ctx, component, "order.received", attrs...)
	w.WriteHeader(http.StatusOK)
}

func (h *handler) reject(ctx context.Context, w http.ResponseWriter, code int, stage string, err error) {
	logger.Warn(ctx, component, "order.rejected",
		slog.String("stage", stage),
		slog.Int("code", code),
		logger.Err(err),
	)
	http.Error(w, http.StatusText(code), code)
}

func decodeOrder(body []byte) (Order, error) {
	var envelope struct {
		Order map[string]json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Order{}, err
	}
	if envelope.Order == nil {
		return Order{}, errors.New("missing key: order")
	}
	for _, k := range requiredKeys {
		if _, ok := envelope.Order[k]; !ok {
			return Order{}, fmt.Errorf("missing key: order.%s", k)
		}
	}
	raw, err := json.Marshal(envelope.Order)
	if err != nil {
		return Order{}, err
	}
	var o Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Serve runs the handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Hook.LogAttrs(ctx, slog.LevelInfo, "server.start", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		logger.Hook.LogAttrs(logger.Background(), slog.LevelInfo, "server.stop",
			slog.String("addr", addr),
			slog.String("status", logger.Status(err)),
		)
		return err
	}
}
