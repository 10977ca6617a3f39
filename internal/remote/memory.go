package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
)

// Memory is an in-process Store with the same contract as Postgres.
// It backs the demo server and tests, and can inject failures.
type Memory struct {
	mu           sync.Mutex
	headers      map[string]models.TransactionHeader
	items        map[string]map[int]models.TransactionLineItem
	unavailable  bool
	rejected     map[string]bool
	itemFailures map[string]int
	latency      time.Duration
	headerWrites int
	itemWrites   int
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		headers:      make(map[string]models.TransactionHeader),
		items:        make(map[string]map[int]models.TransactionLineItem),
		rejected:     make(map[string]bool),
		itemFailures: make(map[string]int),
	}
}

// SetUnavailable makes every call fail with REMOTE_UNAVAILABLE.
func (m *Memory) SetUnavailable(unavailable bool) {
	m.mu.Lock()
	m.unavailable = unavailable
	m.mu.Unlock()
}

// Reject makes InsertTransaction for id fail with REMOTE_REJECTED
// until Accept is called.
func (m *Memory) Reject(id string) {
	m.mu.Lock()
	m.rejected[id] = true
	m.mu.Unlock()
}

// Accept clears a rejection set by Reject.
func (m *Memory) Accept(id string) {
	m.mu.Lock()
	delete(m.rejected, id)
	m.mu.Unlock()
}

// FailLineItems makes the next n InsertLineItems calls for id fail with
// REMOTE_UNAVAILABLE after the header was written.
func (m *Memory) FailLineItems(id string, n int) {
	m.mu.Lock()
	m.itemFailures[id] = n
	m.mu.Unlock()
}

// SetLatency delays every call by d, or until ctx is done.
func (m *Memory) SetLatency(d time.Duration) {
	m.mu.Lock()
	m.latency = d
	m.mu.Unlock()
}

func (m *Memory) wait(ctx context.Context) error {
	m.mu.Lock()
	latency := m.latency
	m.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.ErrRemoteUnavailable, "remote call interrupted", ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrRemoteUnavailable, "remote call interrupted", err)
	}
	return nil
}

// InsertTransaction implements Store.
func (m *Memory) InsertTransaction(ctx context.Context, h models.TransactionHeader) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return apperrors.New(apperrors.ErrRemoteUnavailable, "remote store unavailable")
	}
	if m.rejected[h.ID] {
		return apperrors.New(apperrors.ErrRemoteRejected, fmt.Sprintf("transaction %s rejected", h.ID))
	}
	if h.ID == "" || h.TotalAmount.IsNegative() || h.Discount.IsNegative() {
		return apperrors.New(apperrors.ErrRemoteRejected, "transaction violates constraints")
	}

	m.headerWrites++
	if stored, exists := m.headers[h.ID]; exists {
		if !stored.HasUser() && h.HasUser() {
			stored.UserID = models.StringPtr(*h.UserID)
			m.headers[h.ID] = stored
		}
		return nil
	}
	m.headers[h.ID] = h.Clone()
	return nil
}

// InsertLineItems implements Store.
func (m *Memory) InsertLineItems(ctx context.Context, transactionID string, items []models.TransactionLineItem) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return apperrors.New(apperrors.ErrRemoteUnavailable, "remote store unavailable")
	}
	if n := m.itemFailures[transactionID]; n > 0 {
		m.itemFailures[transactionID] = n - 1
		return apperrors.New(apperrors.ErrRemoteUnavailable, "connection reset while writing line items")
	}
	if _, ok := m.headers[transactionID]; !ok {
		return apperrors.New(apperrors.ErrRemoteRejected, fmt.Sprintf("transaction %s does not exist", transactionID))
	}
	for _, item := range items {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() || item.UnitCostAtSale.IsNegative() {
			return apperrors.New(apperrors.ErrRemoteRejected, "line item violates constraints")
		}
	}

	m.itemWrites++
	lines := m.items[transactionID]
	if lines == nil {
		lines = make(map[int]models.TransactionLineItem)
		m.items[transactionID] = lines
	}
	for i := range items {
		no := lineNumber(items, i)
		if _, exists := lines[no]; exists {
			continue
		}
		item := items[i].Clone()
		item.LineNo = no
		lines[no] = item
	}
	return nil
}

// ListTransactions implements Store. Newest first.
func (m *Memory) ListTransactions(ctx context.Context, filter Filter) ([]models.TransactionHeader, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return nil, apperrors.New(apperrors.ErrRemoteUnavailable, "remote store unavailable")
	}

	var headers []models.TransactionHeader
	for _, h := range m.headers {
		if filter.matches(&h) {
			headers = append(headers, h.Clone())
		}
	}
	sort.Slice(headers, func(i, j int) bool {
		if headers[i].CreatedAt != headers[j].CreatedAt {
			return headers[i].CreatedAt > headers[j].CreatedAt
		}
		return headers[i].ID < headers[j].ID
	})
	if limit := filter.limit(); len(headers) > limit {
		headers = headers[:limit]
	}
	return headers, nil
}

// LineItems implements Store.
func (m *Memory) LineItems(ctx context.Context, transactionID string) ([]models.TransactionLineItem, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return nil, apperrors.New(apperrors.ErrRemoteUnavailable, "remote store unavailable")
	}

	lines := m.items[transactionID]
	items := make([]models.TransactionLineItem, 0, len(lines))
	for _, item := range lines {
		items = append(items, item.Clone())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].LineNo < items[j].LineNo })
	return items, nil
}

// Ping implements Store.
func (m *Memory) Ping(ctx context.Context) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return apperrors.New(apperrors.ErrRemoteUnavailable, "remote store unavailable")
	}
	return nil
}

// Count returns the number of stored transaction headers.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.headers)
}

// Header returns the stored header with the given id.
func (m *Memory) Header(id string) (models.TransactionHeader, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.headers[id]
	return h.Clone(), ok
}

// HeaderWrites returns how many InsertTransaction calls reached the store,
// including upserts of an existing id.
func (m *Memory) HeaderWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headerWrites
}
