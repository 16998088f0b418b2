package service

import (
	"context"
	"errors"
	"time"

	"recycling-rewards/internal/models"
	"recycling-rewards/internal/store"
)

// fakeStorage is an in-memory ledger with real unit-of-work semantics: a
// snapshot is taken at Begin, mutations apply in place, and Rollback or a
// failed Commit restores the snapshot.
type fakeStorage struct {
	users     map[int64]*models.User
	orders    map[int64]*models.Order
	rewards   map[int64]*models.Reward
	materials map[int64][]models.Material
	history   []models.HistoryReward

	nextHistoryID int64

	// commitConflicts makes the next N commits fail with ErrTxConflict
	commitConflicts int
	// commitErr makes every commit fail with this error
	commitErr error

	begins  int
	commits int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		users:         make(map[int64]*models.User),
		orders:        make(map[int64]*models.Order),
		rewards:       make(map[int64]*models.Reward),
		materials:     make(map[int64][]models.Material),
		nextHistoryID: 1,
	}
}

type snapshot struct {
	users   map[int64]models.User
	orders  map[int64]models.Order
	rewards map[int64]models.Reward
	history []models.HistoryReward
}

func (f *fakeStorage) snapshot() snapshot {
	s := snapshot{
		users:   make(map[int64]models.User, len(f.users)),
		orders:  make(map[int64]models.Order, len(f.orders)),
		rewards: make(map[int64]models.Reward, len(f.rewards)),
		history: append([]models.HistoryReward(nil), f.history...),
	}
	for id, u := range f.users {
		s.users[id] = *u
	}
	for id, o := range f.orders {
		s.orders[id] = *o
	}
	for id, r := range f.rewards {
		s.rewards[id] = *r
	}
	return s
}

func (f *fakeStorage) restore(s snapshot) {
	f.users = make(map[int64]*models.User, len(s.users))
	f.orders = make(map[int64]*models.Order, len(s.orders))
	f.rewards = make(map[int64]*models.Reward, len(s.rewards))
	for id := range s.users {
		u := s.users[id]
		f.users[id] = &u
	}
	for id := range s.orders {
		o := s.orders[id]
		f.orders[id] = &o
	}
	for id := range s.rewards {
		r := s.rewards[id]
		f.rewards[id] = &r
	}
	f.history = append([]models.HistoryReward(nil), s.history...)
}

func (f *fakeStorage) Begin(ctx context.Context) (UnitOfWork, error) {
	f.begins++
	return &fakeUOW{storage: f, saved: f.snapshot()}, nil
}

func (f *fakeStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStorage) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStorage) MaterialsByOrder(ctx context.Context, orderID int64) ([]models.Material, error) {
	return append([]models.Material(nil), f.materials[orderID]...), nil
}

func (f *fakeStorage) GetReward(ctx context.Context, id int64) (*models.Reward, error) {
	r, ok := f.rewards[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStorage) ListRewards(ctx context.Context) ([]models.Reward, error) {
	rewards := make([]models.Reward, 0, len(f.rewards))
	for _, r := range f.rewards {
		rewards = append(rewards, *r)
	}
	return rewards, nil
}

func (f *fakeStorage) LowStockRewards(ctx context.Context, threshold int64) ([]models.Reward, error) {
	var rewards []models.Reward
	for _, r := range f.rewards {
		if r.IsAvailable && r.StockQuantity <= threshold {
			rewards = append(rewards, *r)
		}
	}
	return rewards, nil
}

func (f *fakeStorage) HistoryByUser(ctx context.Context, userID int64) ([]models.HistoryReward, error) {
	var rows []models.HistoryReward
	for _, h := range f.history {
		if h.UserID == userID {
			rows = append(rows, h)
		}
	}
	return rows, nil
}

func (f *fakeStorage) RedemptionSummary(ctx context.Context, userID int64) (*models.RedemptionSummary, error) {
	summary := models.RedemptionSummary{UserID: userID}
	for _, h := range f.history {
		if h.UserID == userID {
			summary.Redemptions++
			summary.TotalPointsUsed += h.PointsUsed
		}
	}
	return &summary, nil
}

type fakeUOW struct {
	storage *fakeStorage
	saved   snapshot
	done    bool
}

func (u *fakeUOW) Commit() error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true

	if u.storage.commitConflicts > 0 {
		u.storage.commitConflicts--
		u.storage.restore(u.saved)
		return store.ErrTxConflict
	}
	if u.storage.commitErr != nil {
		u.storage.restore(u.saved)
		return u.storage.commitErr
	}

	u.storage.commits++
	return nil
}

func (u *fakeUOW) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	u.storage.restore(u.saved)
	return nil
}

func (u *fakeUOW) OrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := u.storage.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o, nil
}

func (u *fakeUOW) UserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	usr, ok := u.storage.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return usr, nil
}

func (u *fakeUOW) RewardForUpdate(ctx context.Context, id int64) (*models.Reward, error) {
	r, ok := u.storage.rewards[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (u *fakeUOW) MaterialsByOrder(ctx context.Context, orderID int64) ([]models.Material, error) {
	return append([]models.Material(nil), u.storage.materials[orderID]...), nil
}

func (u *fakeUOW) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	o, ok := u.storage.orders[orderID]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	return nil
}

func (u *fakeUOW) AddUserPoints(ctx context.Context, userID, delta int64) (int64, error) {
	usr, ok := u.storage.users[userID]
	if !ok {
		return 0, store.ErrNotFound
	}
	usr.Points += delta
	return usr.Points, nil
}

func (u *fakeUOW) SetRewardStock(ctx context.Context, rewardID, stock int64) error {
	r, ok := u.storage.rewards[rewardID]
	if !ok {
		return store.ErrNotFound
	}
	r.StockQuantity = stock
	return nil
}

func (u *fakeUOW) AppendHistory(ctx context.Context, h *models.HistoryReward) error {
	h.ID = u.storage.nextHistoryID
	u.storage.nextHistoryID++
	h.ClaimedAt = time.Now()
	u.storage.history = append(u.storage.history, *h)
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	completed []*models.OrderCompletedEvent
	cancelled []*models.OrderCancelledEvent
	redeemed  []*models.RewardRedeemedEvent
	adjusted  []*models.StockAdjustedEvent
}

func (p *fakePublisher) PublishOrderCompleted(ctx context.Context, e *models.OrderCompletedEvent) error {
	p.completed = append(p.completed, e)
	return nil
}

func (p *fakePublisher) PublishOrderCancelled(ctx context.Context, e *models.OrderCancelledEvent) error {
	p.cancelled = append(p.cancelled, e)
	return nil
}

func (p *fakePublisher) PublishRewardRedeemed(ctx context.Context, e *models.RewardRedeemedEvent) error {
	p.redeemed = append(p.redeemed, e)
	return nil
}

func (p *fakePublisher) PublishStockAdjusted(ctx context.Context, e *models.StockAdjustedEvent) error {
	p.adjusted = append(p.adjusted, e)
	return nil
}

// fakeCache is an in-memory RewardCache
type fakeCache struct {
	catalog       []models.Reward
	hasCatalog    bool
	invalidations int
}

func (c *fakeCache) GetCatalog(ctx context.Context) ([]models.Reward, bool) {
	if !c.hasCatalog {
		return nil, false
	}
	return c.catalog, true
}

func (c *fakeCache) SetCatalog(ctx context.Context, rewards []models.Reward) {
	c.catalog = rewards
	c.hasCatalog = true
}

func (c *fakeCache) InvalidateCatalog(ctx context.Context) {
	c.catalog = nil
	c.hasCatalog = false
	c.invalidations++
}
