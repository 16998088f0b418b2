package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"recycling-rewards/internal/models"
	"recycling-rewards/internal/points"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalculator() *points.Calculator {
	return points.NewCalculator(map[string]float64{
		models.MaterialPlastic: 2,
		models.MaterialPaper:   0.5,
		models.MaterialGlass:   1.5,
	})
}

func seedPendingOrder(storage *fakeStorage, orderID, userID int64, materials ...models.Material) {
	storage.users[userID] = &models.User{ID: userID, FullName: "Test User", Points: 0}
	storage.orders[orderID] = &models.Order{
		ID:        orderID,
		UserID:    userID,
		Status:    models.OrderStatusPending,
		OrderDate: time.Now(),
	}
	storage.materials[orderID] = materials
}

func TestCompleteOrderAwardsPoints(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialPlastic, Quantity: 10})
	pub := &fakePublisher{}
	svc := NewOrderService(storage, testCalculator(), pub, 3)

	result, err := svc.CompleteOrder(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(20), result.PointsAwarded)
	assert.Equal(t, int64(20), result.Balance)
	assert.Equal(t, models.OrderStatusCompleted, storage.orders[1].Status)
	assert.Equal(t, int64(20), storage.users[10].Points)

	require.Len(t, pub.completed, 1)
	assert.Equal(t, int64(1), pub.completed[0].OrderID)
	assert.Equal(t, int64(20), pub.completed[0].PointsAwarded)
	assert.Equal(t, models.EventTypeOrderCompleted, pub.completed[0].EventType)
}

func TestCompleteOrderFloorsAcrossItems(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10,
		models.Material{OrderID: 1, Category: models.MaterialPaper, Quantity: 1},
		models.Material{OrderID: 1, Category: models.MaterialGlass, Quantity: 1.7},
	)
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	// 0.5 + 2.55 = 3.05 floors to 3
	result, err := svc.CompleteOrder(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(3), result.PointsAwarded)
}

func TestCompleteOrderNoMaterials(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10)
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	result, err := svc.CompleteOrder(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.PointsAwarded)
	assert.Equal(t, models.OrderStatusCompleted, storage.orders[1].Status)
}

func TestCompleteOrderTwiceRejected(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialPlastic, Quantity: 10})
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	_, err := svc.CompleteOrder(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.CompleteOrder(context.Background(), 1)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, int64(20), storage.users[10].Points, "second call must not award points again")
}

func TestCompleteOrderNotFound(t *testing.T) {
	storage := newFakeStorage()
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	_, err := svc.CompleteOrder(context.Background(), 42)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCompleteOrderMissingUser(t *testing.T) {
	storage := newFakeStorage()
	storage.orders[1] = &models.Order{ID: 1, UserID: 99, Status: models.OrderStatusPending}
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	_, err := svc.CompleteOrder(context.Background(), 1)

	assert.ErrorIs(t, err, ErrMissingUser)
	assert.Equal(t, models.OrderStatusPending, storage.orders[1].Status)
}

func TestCompleteOrderUnknownCategoryRollsBack(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: "uranium", Quantity: 1})
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	_, err := svc.CompleteOrder(context.Background(), 1)

	var invalid *points.ErrInvalidMaterialCategory
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, models.OrderStatusPending, storage.orders[1].Status)
	assert.Equal(t, int64(0), storage.users[10].Points)
}

func TestCompleteOrderCommitFailureRollsBack(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialPlastic, Quantity: 10})
	storage.commitErr = errors.New("connection reset")
	pub := &fakePublisher{}
	svc := NewOrderService(storage, testCalculator(), pub, 3)

	_, err := svc.CompleteOrder(context.Background(), 1)

	require.Error(t, err)
	assert.Equal(t, models.OrderStatusPending, storage.orders[1].Status, "order must stay pending after failed commit")
	assert.Equal(t, int64(0), storage.users[10].Points, "no points may leak on failed commit")
	assert.Empty(t, pub.completed, "no event may be published for a failed commit")
}

func TestCompleteOrderRetriesAfterFailedCommit(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialPlastic, Quantity: 10})
	storage.commitErr = errors.New("connection reset")
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	_, err := svc.CompleteOrder(context.Background(), 1)
	require.Error(t, err)

	// Caller retry after the transient fault succeeds and awards exactly once.
	storage.commitErr = nil
	result, err := svc.CompleteOrder(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(20), result.PointsAwarded)
	assert.Equal(t, int64(20), storage.users[10].Points)
}

func TestCompleteOrderRetriesOnConflict(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialPlastic, Quantity: 10})
	storage.commitConflicts = 2
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	result, err := svc.CompleteOrder(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(20), result.PointsAwarded)
	assert.Equal(t, 3, storage.begins)
}

func TestCompleteOrderConflictRetriesExhausted(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialPlastic, Quantity: 10})
	storage.commitConflicts = 5
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	_, err := svc.CompleteOrder(context.Background(), 1)

	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int64(0), storage.users[10].Points)
	assert.Equal(t, models.OrderStatusPending, storage.orders[1].Status)
}

func TestCancelPendingOrder(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialPlastic, Quantity: 10})
	pub := &fakePublisher{}
	svc := NewOrderService(storage, testCalculator(), pub, 3)

	err := svc.CancelOrder(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, storage.orders[1].Status)
	assert.Equal(t, int64(0), storage.users[10].Points, "cancellation never touches points")
	require.Len(t, pub.cancelled, 1)
	assert.Equal(t, int64(10), pub.cancelled[0].UserID)
}

func TestCancelCompletedOrderRejected(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialPlastic, Quantity: 10})
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	_, err := svc.CompleteOrder(context.Background(), 1)
	require.NoError(t, err)

	err = svc.CancelOrder(context.Background(), 1)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.OrderStatusCompleted, storage.orders[1].Status)
	assert.Equal(t, int64(20), storage.users[10].Points)
}

func TestCancelCancelledOrderRejected(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10)
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	require.NoError(t, svc.CancelOrder(context.Background(), 1))

	err := svc.CancelOrder(context.Background(), 1)

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelOrderNotFound(t *testing.T) {
	storage := newFakeStorage()
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	err := svc.CancelOrder(context.Background(), 42)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrder(t *testing.T) {
	storage := newFakeStorage()
	seedPendingOrder(storage, 1, 10, models.Material{OrderID: 1, Category: models.MaterialGlass, Quantity: 4})
	svc := NewOrderService(storage, testCalculator(), &fakePublisher{}, 3)

	order, materials, err := svc.GetOrder(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)
	require.Len(t, materials, 1)
	assert.Equal(t, models.MaterialGlass, materials[0].Category)

	_, _, err = svc.GetOrder(context.Background(), 2)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
