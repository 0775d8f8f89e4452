package notifications

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

type memStore struct {
	mu            sync.Mutex
	notifications []domain.Notification
	owners        map[int64]int64
	clock         time.Time
}

func newMemStore() *memStore {
	return &memStore{owners: map[int64]int64{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memStore) Insert(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	n.ID = int64(len(m.notifications) + 1)
	n.CreatedAt = m.clock
	if len(n.Data) == 0 {
		n.Data = json.RawMessage(`{}`)
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *memStore) ProductOwner(_ context.Context, productID int64) (int64, error) {
	tenant, ok := m.owners[productID]
	if !ok {
		return 0, apperr.NotFound("product not found")
	}
	return tenant, nil
}

func (m *memStore) ListForTenant(_ context.Context, tenantID int64, kind domain.NotificationType) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Notification{}
	for _, n := range m.notifications {
		if n.TenantID == tenantID && (kind == "" || n.Type == kind) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > ListLimit {
		out = out[:ListLimit]
	}
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, id, tenantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].ID == id && m.notifications[i].TenantID == tenantID {
			m.notifications[i].IsRead = true
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (m *memStore) MarkAllRead(_ context.Context, tenantID int64, kind domain.NotificationType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.notifications {
		item := &m.notifications[i]
		if item.TenantID == tenantID && !item.IsRead && (kind == "" || item.Type == kind) {
			item.IsRead = true
			n++
		}
	}
	return n, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func TestNotifyResolvesTenant(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.owners[5] = 42
	svc := NewService(store, discardLogger())

	t.Run("explicit tenant", func(t *testing.T) {
		id, err := svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationCheckout, TenantID: 7, Message: "sold"})
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Equal(t, int64(7), store.notifications[id-1].TenantID)
	})

	t.Run("via product owner", func(t *testing.T) {
		id, err := svc.Notify(ctx, domain.NotificationRequest{
			Type:      domain.NotificationLike,
			ProductID: ptr(int64(5)),
			Message:   "liked",
			Data:      map[string]any{"liker": "bob"},
		})
		require.NoError(t, err)
		stored := store.notifications[id-1]
		assert.Equal(t, int64(42), stored.TenantID)
		assert.JSONEq(t, `{"liker":"bob"}`, string(stored.Data))
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationLike, ProductID: ptr(int64(99)), Message: "x"})
		assert.ErrorIs(t, err, ErrMissingTenant)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("no tenant and no product", func(t *testing.T) {
		_, err := svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationLike, Message: "x"})
		assert.ErrorIs(t, err, ErrMissingTenant)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := svc.Notify(ctx, domain.NotificationRequest{Type: "spam", TenantID: 1, Message: "x"})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("rejects blank message", func(t *testing.T) {
		_, err := svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationLike, TenantID: 1, Message: "  "})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestListForTenant(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, discardLogger())

	for i := 0; i < ListLimit+5; i++ {
		_, err := svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationLike, TenantID: 1, Message: "like"})
		require.NoError(t, err)
	}
	_, err := svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationCheckout, TenantID: 1, Message: "checkout"})
	require.NoError(t, err)
	_, err = svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationCheckout, TenantID: 2, Message: "other"})
	require.NoError(t, err)

	all, err := svc.ListForTenant(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, all, ListLimit)
	assert.Equal(t, domain.NotificationCheckout, all[0].Type, "newest first")

	checkouts, err := svc.ListForTenant(ctx, 1, domain.NotificationCheckout)
	require.NoError(t, err)
	require.Len(t, checkouts, 1)
	assert.Equal(t, "checkout", checkouts[0].Message)

	_, err = svc.ListForTenant(ctx, 1, "bogus")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, discardLogger())

	id, err := svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationLike, TenantID: 1, Message: "a"})
	require.NoError(t, err)
	_, err = svc.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationComment, TenantID: 1, Message: "b"})
	require.NoError(t, err)

	t.Run("other tenant cannot mark", func(t *testing.T) {
		err := svc.MarkRead(ctx, id, 2)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("marking twice is a no-op", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(ctx, id, 1))
		require.NoError(t, svc.MarkRead(ctx, id, 1))
		assert.True(t, store.notifications[id-1].IsRead)
	})

	t.Run("mark all read is idempotent", func(t *testing.T) {
		require.NoError(t, svc.MarkAllRead(ctx, 1, ""))
		require.NoError(t, svc.MarkAllRead(ctx, 1, ""))
		list, err := svc.ListForTenant(ctx, 1, "")
		require.NoError(t, err)
		for _, n := range list {
			assert.True(t, n.IsRead)
		}
	})
}
