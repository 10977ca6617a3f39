package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/remote"
	"github.com/fitri99main/itongPOS-sub000/internal/session"
	"github.com/fitri99main/itongPOS-sub000/internal/uuid"
)

// Enqueuer persists an action for a later sync pass.
type Enqueuer interface {
	Enqueue(ctx context.Context, action models.Action) (models.QueuedAction, error)
}

// OnlineChecker reports whether remote writes should be attempted.
type OnlineChecker interface {
	IsOnline() bool
}

// Receipt is what the cashier sees after payment.
type Receipt struct {
	TransactionID  string          `json:"transaction_id"`
	Total          decimal.Decimal `json:"total"`
	Change         decimal.Decimal `json:"change"`
	Queued         bool            `json:"queued"`
	QueuedActionID string          `json:"queued_action_id,omitempty"`
}

// Config holds checkout settings.
type Config struct {
	CashRegisterID string
	WriteTimeout   time.Duration // deadline of the direct remote write (default: 10 seconds)
	LookupTimeout  time.Duration // deadline of a live user lookup (default: 3 seconds)
}

// Service completes sales.
type Service struct {
	queue          Enqueuer
	remote         remote.Store
	online         OnlineChecker
	sessions       session.Provider
	cashRegisterID string
	writeTimeout   time.Duration
	lookupTimeout  time.Duration
	now            func() time.Time
}

// NewService creates a Service. sessions may be nil.
func NewService(q Enqueuer, store remote.Store, online OnlineChecker, sessions session.Provider, config Config) *Service {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = 3 * time.Second
	}
	return &Service{
		queue:          q,
		remote:         store,
		online:         online,
		sessions:       sessions,
		cashRegisterID: config.CashRegisterID,
		writeTimeout:   config.WriteTimeout,
		lookupTimeout:  config.LookupTimeout,
		now:            time.Now,
	}
}

// Checkout records a paid sale.
//
// Offline, the sale is queued. Online, it is written directly, and if that
// write fails for any reason the same payload, with the same transaction id,
// is queued instead. The cashier gets a receipt either way; the only errors
// are an invalid sale, a signed-out register while online, and a failure to
// persist the queue.
func (s *Service) Checkout(ctx context.Context, sale Sale) (*Receipt, error) {
	if err := sale.Validate(); err != nil {
		return nil, err
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = s.now()
	}

	online := s.online.IsOnline()

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	userID, found, err := session.ResolveUserID(lookupCtx, s.sessions)
	cancel()
	switch {
	case err != nil:
		logging.Warn("Session lookup failed, recording sale without user", map[string]interface{}{"error": err.Error()})
	case !found && online:
		return nil, apperrors.New(apperrors.ErrSessionUnavailable, "no signed-in user")
	}

	payload, err := BuildPayload(sale, s.cashRegisterID, userID, uuid.NewTransactionID())
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		TransactionID: payload.Header.ID,
		Total:         payload.Header.TotalAmount,
		Change:        sale.Change(),
	}

	if online {
		writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err := remote.WriteSale(writeCtx, s.remote, payload.Header, payload.Items)
		cancel()
		if err == nil {
			logging.Info("Sale written", map[string]interface{}{
				"transaction_id": receipt.TransactionID,
				"total":          receipt.Total.String(),
			})
			return receipt, nil
		}
		logging.Warn("Direct write failed, queueing sale", map[string]interface{}{
			"transaction_id": receipt.TransactionID,
			"error_code":     string(apperrors.CodeOf(err)),
			"error":          err.Error(),
		})
	}

	// The header may already be on the remote, so the queued copy must land
	// even if the caller has gone away.
	entry, err := s.queue.Enqueue(context.WithoutCancel(ctx), payload)
	if err != nil {
		logging.ErrorWithCode("Sale could not be saved", string(apperrors.ErrQueuePersist), err,
			map[string]interface{}{"transaction_id": receipt.TransactionID})
		return nil, err
	}

	receipt.Queued = true
	receipt.QueuedActionID = entry.ID
	logging.Info("Sale queued", map[string]interface{}{
		"transaction_id": receipt.TransactionID,
		"action_id":      entry.ID,
		"online":         online,
	})
	return receipt, nil
}
