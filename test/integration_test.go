//go:build integration

package test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-api/internal/analytics"
	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
	"github.com/joao-fontenele/storefront-api/internal/likes"
	"github.com/joao-fontenele/storefront-api/internal/messaging"
	"github.com/joao-fontenele/storefront-api/internal/notifications"
	"github.com/joao-fontenele/storefront-api/internal/orders"
	"github.com/joao-fontenele/storefront-api/internal/products"
)

var (
	tenant = auth.Identity{ID: 10, Username: "acme", Role: auth.RoleTenant}
	buyer  = auth.Identity{ID: 100, Username: "carol", Role: auth.RoleCustomer}
)

type harness struct {
	db            *sql.DB
	logger        *slog.Logger
	products      *products.Service
	notifications *notifications.Service
	queue         *notifications.Queue
}

func newHarness(ctx context.Context, t *testing.T, connStr string) *harness {
	t.Helper()

	db, err := OpenDB(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notificationSvc := notifications.NewService(notifications.NewNotificationRepository(db), logger)

	queue, err := notifications.NewQueue(notificationSvc, notifications.QueueConfig{Workers: 1}, logger)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	queue.Start()

	return &harness{
		db:            db,
		logger:        logger,
		products:      products.NewService(products.NewProductRepository(db), nil, logger),
		notifications: notificationSvc,
		queue:         queue,
	}
}

// drain waits for every queued notification to be written.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.queue.Close(ctx); err != nil {
		t.Fatalf("failed to drain notification queue: %v", err)
	}
}

func (h *harness) createProduct(ctx context.Context, t *testing.T, name string, stock int) *domain.Product {
	t.Helper()
	p, err := h.products.Create(ctx, tenant, products.Input{
		Name:  name,
		Price: decimal.RequireFromString("10.00"),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("failed to create product %s: %v", name, err)
	}
	return p
}

func (h *harness) orders(t *testing.T) *orders.Service {
	t.Helper()
	svc, err := orders.NewService(orders.NewOrderRepository(h.db), h.products, h.queue, 0, h.logger)
	if err != nil {
		t.Fatalf("failed to create order service: %v", err)
	}
	return svc
}

func TestStorefront(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	t.Run("order decrements stock and notifies per line", func(t *testing.T) {
		h := newHarness(ctx, t, pg.ConnStr)
		a := h.createProduct(ctx, t, "A", 5)
		b := h.createProduct(ctx, t, "B", 1)

		orderID, err := h.orders(t).CreateOrder(ctx, buyer, orders.CreateInput{
			CustomerName: "Carol",
			Items: []orders.LineItem{
				{ProductID: a.ID, Quantity: 1, Price: a.Price},
				{ProductID: b.ID, Quantity: 2, Price: b.Price},
			},
			Total: decimal.RequireFromString("30.00"),
		})
		if err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		h.drain(t)

		gotA, err := h.products.Get(ctx, a.ID)
		if err != nil {
			t.Fatalf("failed to get product A: %v", err)
		}
		if gotA.Stock != 4 || gotA.StockStatus != domain.StockStatusAvailable {
			t.Fatalf("expected A stock 4 available, got %d %s", gotA.Stock, gotA.StockStatus)
		}

		gotB, err := h.products.Get(ctx, b.ID)
		if err != nil {
			t.Fatalf("failed to get product B: %v", err)
		}
		if gotB.Stock != 0 || gotB.StockStatus != domain.StockStatusSoldOut {
			t.Fatalf("expected B stock 0 sold-out, got %d %s", gotB.Stock, gotB.StockStatus)
		}

		checkouts, err := h.notifications.ListForTenant(ctx, tenant.ID, domain.NotificationCheckout)
		if err != nil {
			t.Fatalf("failed to list notifications: %v", err)
		}
		if len(checkouts) != 2 {
			t.Fatalf("expected 2 checkout notifications, got %d", len(checkouts))
		}
		for _, n := range checkouts {
			if n.OrderID == nil || *n.OrderID != orderID {
				t.Fatalf("expected notification for order %s, got %v", orderID, n.OrderID)
			}
			if n.ProductName == nil {
				t.Fatal("expected joined product name")
			}
		}

		err = h.products.Delete(ctx, tenant, a.ID)
		if err == nil {
			t.Fatal("expected deleting an ordered product to fail")
		}
	})

	t.Run("missing product keeps earlier items", func(t *testing.T) {
		h := newHarness(ctx, t, pg.ConnStr)
		a := h.createProduct(ctx, t, "A", 5)

		_, err := h.orders(t).CreateOrder(ctx, buyer, orders.CreateInput{
			Items: []orders.LineItem{
				{ProductID: a.ID, Quantity: 2, Price: a.Price},
				{ProductID: a.ID + 1000, Quantity: 1, Price: a.Price},
			},
		})
		if err == nil {
			t.Fatal("expected order creation error")
		}
		h.drain(t)

		got, err := h.products.Get(ctx, a.ID)
		if err != nil {
			t.Fatalf("failed to get product: %v", err)
		}
		if got.Stock != 3 {
			t.Fatalf("expected stock 3 after partial order, got %d", got.Stock)
		}
	})

	t.Run("sweep confirms stale completed orders once", func(t *testing.T) {
		h := newHarness(ctx, t, pg.ConnStr)
		a := h.createProduct(ctx, t, "A", 10)
		svc := h.orders(t)

		place := func() string {
			id, err := svc.CreateOrder(ctx, buyer, orders.CreateInput{Items: []orders.LineItem{{ProductID: a.ID, Quantity: 1, Price: a.Price}}})
			if err != nil {
				t.Fatalf("failed to create order: %v", err)
			}
			return id
		}
		stale, fresh, accepted := place(), place(), place()

		age := func(id string, status domain.OrderStatus, by time.Duration) {
			_, err := h.db.ExecContext(ctx, `UPDATE orders SET status = $1, created_at = NOW() - make_interval(hours => $2) WHERE order_id = $3`,
				status, int(by.Hours()), id)
			if err != nil {
				t.Fatalf("failed to age order: %v", err)
			}
		}
		age(stale, domain.OrderStatusCompleted, 25*time.Hour)
		age(fresh, domain.OrderStatusCompleted, time.Hour)
		age(accepted, domain.OrderStatusAccepted, 48*time.Hour)

		for i, want := range []int{1, 0, 0} {
			count, err := svc.AutoComplete(ctx, time.Now())
			if err != nil {
				t.Fatalf("sweep %d failed: %v", i, err)
			}
			if count != want {
				t.Fatalf("sweep %d: expected %d confirmed, got %d", i, want, count)
			}
		}
		h.drain(t)

		for id, want := range map[string]domain.OrderStatus{
			stale:    domain.OrderStatusConfirmed,
			fresh:    domain.OrderStatusCompleted,
			accepted: domain.OrderStatusAccepted,
		} {
			order, err := svc.Get(ctx, buyer, id)
			if err != nil {
				t.Fatalf("failed to get order %s: %v", id, err)
			}
			if order.Status != want {
				t.Fatalf("order %s: expected %s, got %s", id, want, order.Status)
			}
		}

		var transitions int
		if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_transitions WHERE order_id = $1`, stale).Scan(&transitions); err != nil {
			t.Fatalf("failed to count transitions: %v", err)
		}
		if transitions != 1 {
			t.Fatalf("expected one recorded transition, got %d", transitions)
		}

		confirmations, err := h.notifications.ListForTenant(ctx, tenant.ID, domain.NotificationOrderConfirmation)
		if err != nil {
			t.Fatalf("failed to list notifications: %v", err)
		}
		if len(confirmations) != 1 {
			t.Fatalf("expected 1 confirmation notification, got %d", len(confirmations))
		}
	})

	t.Run("like toggle keeps counter and live count aligned", func(t *testing.T) {
		h := newHarness(ctx, t, pg.ConnStr)
		p := h.createProduct(ctx, t, "Lamp", 1)

		svc, err := likes.NewService(likes.NewLikeRepository(h.db), h.products, h.queue, h.logger)
		if err != nil {
			t.Fatalf("failed to create like service: %v", err)
		}

		for i, want := range []bool{true, false, true} {
			liked, err := svc.Toggle(ctx, buyer, p.ID)
			if err != nil {
				t.Fatalf("toggle %d failed: %v", i, err)
			}
			if liked != want {
				t.Fatalf("toggle %d: expected liked=%v", i, want)
			}
		}
		h.drain(t)

		status, err := svc.Status(ctx, buyer, p.ID)
		if err != nil {
			t.Fatalf("failed to get like status: %v", err)
		}
		if !status.Liked || status.LikesCount != 1 {
			t.Fatalf("expected liked with count 1, got %+v", status)
		}

		got, err := h.products.Get(ctx, p.ID)
		if err != nil {
			t.Fatalf("failed to get product: %v", err)
		}
		if got.LikesCount != status.LikesCount {
			t.Fatalf("counter %d diverged from live count %d", got.LikesCount, status.LikesCount)
		}

		anon, err := svc.Status(ctx, auth.Identity{}, p.ID)
		if err != nil {
			t.Fatalf("failed to get anonymous status: %v", err)
		}
		if anon.Liked {
			t.Fatal("anonymous caller should never be liked")
		}

		likeNotes, err := h.notifications.ListForTenant(ctx, tenant.ID, domain.NotificationLike)
		if err != nil {
			t.Fatalf("failed to list notifications: %v", err)
		}
		if len(likeNotes) != 2 {
			t.Fatalf("expected 2 like notifications, got %d", len(likeNotes))
		}
	})

	t.Run("notifications resolve tenants and mark read idempotently", func(t *testing.T) {
		h := newHarness(ctx, t, pg.ConnStr)
		p := h.createProduct(ctx, t, "Kettle", 1)

		id, err := h.notifications.Notify(ctx, domain.NotificationRequest{
			Type:      domain.NotificationComment,
			ProductID: &p.ID,
			Message:   "nice kettle",
			Data:      map[string]any{"rating": 5},
		})
		if err != nil {
			t.Fatalf("failed to notify: %v", err)
		}

		missing := p.ID + 1000
		_, err = h.notifications.Notify(ctx, domain.NotificationRequest{Type: domain.NotificationComment, ProductID: &missing, Message: "x"})
		if err != notifications.ErrMissingTenant {
			t.Fatalf("expected ErrMissingTenant, got %v", err)
		}

		if err := h.notifications.MarkRead(ctx, id, tenant.ID+1); err == nil {
			t.Fatal("expected other tenant to be rejected")
		}
		for range 2 {
			if err := h.notifications.MarkAllRead(ctx, tenant.ID, ""); err != nil {
				t.Fatalf("mark all read failed: %v", err)
			}
		}

		list, err := h.notifications.ListForTenant(ctx, tenant.ID, "")
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(list) != 1 || !list[0].IsRead {
			t.Fatalf("expected one read notification, got %+v", list)
		}
		if string(list[0].Data) != `{"rating": 5}` {
			t.Fatalf("unexpected data %s", list[0].Data)
		}
		h.drain(t)
	})

	t.Run("tenant analytics", func(t *testing.T) {
		h := newHarness(ctx, t, pg.ConnStr)
		a := h.createProduct(ctx, t, "A", 3)
		h.createProduct(ctx, t, "B", 0)

		_, err := h.orders(t).CreateOrder(ctx, buyer, orders.CreateInput{
			Items: []orders.LineItem{{ProductID: a.ID, Quantity: 3, Price: a.Price}},
		})
		if err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		h.drain(t)

		summary, err := analytics.NewAnalyticsRepository(h.db).Summary(ctx, tenant.ID)
		if err != nil {
			t.Fatalf("failed to summarize: %v", err)
		}
		if summary.TotalOrders != 1 || summary.UnitsSold != 3 || summary.SoldOut != 2 || summary.TotalProducts != 2 {
			t.Fatalf("unexpected summary %+v", summary)
		}
		if !summary.TotalRevenue.Equal(decimal.RequireFromString("30")) {
			t.Fatalf("expected revenue 30, got %s", summary.TotalRevenue)
		}
		if len(summary.TopProducts) == 0 || summary.TopProducts[0].ProductID != a.ID {
			t.Fatalf("expected %d as top product, got %+v", a.ID, summary.TopProducts)
		}
	})
}

func TestProductCacheRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	addr, cleanup := SetupRedis(ctx, t)
	defer cleanup()

	client, err := products.NewRedisClient(ctx, addr)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	defer func() { _ = client.Close() }()

	db, err := OpenDB(ctx, pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := products.NewRedisCache(client, time.Minute)
	svc := products.NewService(products.NewProductRepository(db), cache, logger)

	p, err := svc.Create(ctx, tenant, products.Input{Name: "Mug", Price: decimal.RequireFromString("4.20"), Stock: 2})
	if err != nil {
		t.Fatalf("failed to create product: %v", err)
	}

	if _, err := svc.Get(ctx, p.ID); err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	cached, ok, err := cache.Get(ctx, p.ID)
	if err != nil || !ok {
		t.Fatalf("expected cached product, ok=%v err=%v", ok, err)
	}
	if !cached.Price.Equal(p.Price) {
		t.Fatalf("cached price %s, want %s", cached.Price, p.Price)
	}

	if _, err := svc.Update(ctx, tenant, p.ID, products.Input{Name: "Mug", Price: p.Price, Stock: 0}); err != nil {
		t.Fatalf("failed to update product: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, p.ID); ok {
		t.Fatal("expected update to invalidate the cache")
	}

	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("failed to get product: %v", err)
	}
	if got.StockStatus != domain.StockStatusSoldOut {
		t.Fatalf("expected sold-out after update, got %s", got.StockStatus)
	}
}

func TestNotificationsOverKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	db, err := OpenDB(ctx, pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	const topic = "notification.requested"

	producer := messaging.NewProducer(brokers, topic, notifications.EventNotificationRequested)
	defer func() { _ = producer.Close() }()

	publisher, err := notifications.NewKafkaPublisher(producer)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	if err := publisher.Publish(ctx, domain.NotificationRequest{
		Type:     domain.NotificationCheckout,
		TenantID: tenant.ID,
		Message:  "carol ordered 1 x Mug",
	}); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	svc := notifications.NewService(notifications.NewNotificationRepository(db), logger)
	worker := notifications.NewWorker(svc, notifications.DefaultRetryPolicy, logger)

	consumer := messaging.NewConsumer(brokers, topic, "integration-test", messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.Consume(consumeCtx, worker.Handle) }()

	deadline := time.Now().Add(time.Minute)
	for time.Now().Before(deadline) {
		list, err := svc.ListForTenant(ctx, tenant.ID, domain.NotificationCheckout)
		if err != nil {
			t.Fatalf("failed to list notifications: %v", err)
		}
		if len(list) == 1 {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatal("notification was not persisted by the worker")
}
