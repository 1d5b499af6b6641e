package workflow

import (
	"context"
	"time"

	"ahadumarket/models"

	"gorm.io/gorm"
)

// Reports builds the read-side aggregations consumed by the Mini App.
type Reports struct {
	db   *gorm.DB
	rate float64
}

func NewReports(db *gorm.DB, commissionRate float64) *Reports {
	return &Reports{db: db, rate: commissionRate}
}

// LeaderboardEntry is one row of the monthly top sellers board.
type LeaderboardEntry struct {
	Name  string  `json:"name"`
	Sales float64 `json:"sales"`
}

// PendingUser is a registration awaiting approval.
type PendingUser struct {
	ID          int64   `json:"id"`
	FirstName   string  `json:"first_name"`
	Username    *string `json:"username,omitempty"`
	PhoneNumber *string `json:"phone_number"`
}

// PendingOrder is an unresolved sale plus the seller's display name.
type PendingOrder struct {
	models.Order
	SalespersonName string `json:"salesperson_name"`
}

// PayoutRow summarizes one salesperson's totals for the admin payouts
// table. TotalCommission is derived from completed sales at the current
// rate; UnpaidCommission is the authoritative credited balance and may
// differ when the rate has changed since approval.
type PayoutRow struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	TotalSales       float64 `json:"total_sales"`
	TotalCommission  float64 `json:"total_commission"`
	UnpaidCommission float64 `json:"unpaid_commission"`
}

// Dashboard is the full admin payload.
type Dashboard struct {
	PendingUsers  []PendingUser      `json:"pending_users"`
	PendingOrders []PendingOrder     `json:"pending_orders"`
	Products      []models.Product   `json:"products"`
	Payouts       []PayoutRow        `json:"payouts"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
}

// Leaderboard returns the top 10 sellers by completed sales volume in
// the UTC month containing now. Ties break on ascending user ID so the
// ordering is stable.
func (r *Reports) Leaderboard(ctx context.Context, now time.Time) ([]LeaderboardEntry, error) {
	start := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	rows, err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("users.first_name AS name, SUM(orders.product_price) AS sales").
		Joins("JOIN users ON users.id = orders.salesperson_id").
		Where("orders.status = ? AND orders.created_at >= ? AND orders.created_at < ?",
			models.OrderStatusCompleted, start, end).
		Group("users.id").
		Order("sales DESC, users.id ASC").
		Limit(10).
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0, 10)
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.Name, &entry.Sales); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PayoutSummary returns per-salesperson sales and commission totals for
// every non-pending account.
func (r *Reports) PayoutSummary(ctx context.Context) ([]PayoutRow, error) {
	rows, err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("users.id, users.first_name, COALESCE(SUM(CASE WHEN orders.status = ? THEN orders.product_price ELSE 0 END), 0) AS total_sales, users.unpaid_commission",
			models.OrderStatusCompleted).
		Joins("LEFT JOIN orders ON orders.salesperson_id = users.id").
		Where("users.status IN ?", []string{models.UserStatusApproved, models.UserStatusAdmin}).
		Group("users.id").
		Order("users.id ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := make([]PayoutRow, 0)
	for rows.Next() {
		var row PayoutRow
		if err := rows.Scan(&row.ID, &row.Name, &row.TotalSales, &row.UnpaidCommission); err != nil {
			return nil, err
		}
		row.TotalCommission = round2(row.TotalSales * r.rate)
		summary = append(summary, row)
	}
	return summary, rows.Err()
}

// Dashboard assembles the complete admin view.
func (r *Reports) Dashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	d := &Dashboard{
		PendingUsers:  make([]PendingUser, 0),
		PendingOrders: make([]PendingOrder, 0),
	}

	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.UserStatusPending).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		d.PendingUsers = append(d.PendingUsers, PendingUser{
			ID:          u.ID,
			FirstName:   u.FirstName,
			Username:    u.Username,
			PhoneNumber: u.PhoneNumber,
		})
	}

	var orders []models.Order
	if err := r.db.WithContext(ctx).Preload("Salesperson").
		Where("status = ?", models.OrderStatusPending).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	for _, o := range orders {
		name := ""
		if o.Salesperson != nil {
			name = o.Salesperson.FirstName
		}
		d.PendingOrders = append(d.PendingOrders, PendingOrder{Order: o, SalespersonName: name})
	}

	if err := r.db.WithContext(ctx).Order("name ASC").Find(&d.Products).Error; err != nil {
		return nil, err
	}

	payouts, err := r.PayoutSummary(ctx)
	if err != nil {
		return nil, err
	}
	d.Payouts = payouts

	leaderboard, err := r.Leaderboard(ctx, now)
	if err != nil {
		return nil, err
	}
	d.Leaderboard = leaderboard

	return d, nil
}
