package models

import "time"

// User represents a participant in the points economy. Points is the single
// mutable balance field; every change to it goes through the order lifecycle
// or reward redemption transactions.
type User struct {
	ID        int64     `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Points    int64     `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order represents a material-collection order
type Order struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	CollectorID *int64    `db:"collector_id" json:"collector_id,omitempty"`
	FactoryID   int64     `db:"factory_id" json:"factory_id"`
	Status      string    `db:"status" json:"status"`
	OrderDate   time.Time `db:"order_date" json:"order_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Material represents one line item of an order: a quantity of a single
// material category. Price is informational and plays no part in point math.
type Material struct {
	ID        int64   `db:"id" json:"id"`
	OrderID   int64   `db:"order_id" json:"order_id"`
	Category  string  `db:"category" json:"category"`
	Quantity  float64 `db:"quantity" json:"quantity"`
	Price     int64   `db:"price" json:"price"`
	FactoryID *int64  `db:"factory_id" json:"factory_id,omitempty"`
}

// Reward represents a redeemable catalog item with finite stock
type Reward struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	Category       string    `db:"category" json:"category"`
	RequiredPoints int64     `db:"required_points" json:"required_points"`
	StockQuantity  int64     `db:"stock_quantity" json:"stock_quantity"`
	IsAvailable    bool      `db:"is_available" json:"is_available"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// HistoryReward is an append-only audit row recording one redemption. Rows
// are never updated or deleted by this service.
type HistoryReward struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	RewardID   int64     `db:"reward_id" json:"reward_id"`
	PointsUsed int64     `db:"points_used" json:"points_used"`
	ClaimedAt  time.Time `db:"claimed_at" json:"claimed_at"`
}

// RedemptionSummary aggregates a user's redemption history
type RedemptionSummary struct {
	UserID          int64 `db:"user_id" json:"user_id"`
	Redemptions     int64 `db:"redemptions" json:"redemptions"`
	TotalPointsUsed int64 `db:"total_points_used" json:"total_points_used"`
}

// Order statuses. Transitions are one-directional: PENDING is the only
// non-terminal state.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

// Material categories known to the points calculator
const (
	MaterialPlastic     = "plastic"
	MaterialPaper       = "paper"
	MaterialGlass       = "glass"
	MaterialMetal       = "metal"
	MaterialElectronics = "electronics"
	MaterialOrganic     = "organic"
)
