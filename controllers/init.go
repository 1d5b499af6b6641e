package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"ahadumarket/models"
	"ahadumarket/telegram"
	"ahadumarket/utils"
	"ahadumarket/workflow"

	"gorm.io/gorm"
)

// InitController serves the Mini App bootstrap call: it verifies the
// initData payload carried in the body and returns the role-shaped view.
type InitController struct {
	db      *gorm.DB
	reports *workflow.Reports
}

func NewInitController(db *gorm.DB, reports *workflow.Reports) *InitController {
	return &InitController{db: db, reports: reports}
}

type userProfile struct {
	ID               int64   `json:"id"`
	FirstName        string  `json:"first_name"`
	Status           string  `json:"status"`
	PhoneNumber      *string `json:"phone_number"`
	PromoCode        *string `json:"promo_code,omitempty"`
	UnpaidCommission float64 `json:"unpaid_commission"`
}

// InitResponse always carries the user; the remaining sections depend
// on the user's status. PENDING users see only their profile.
type InitResponse struct {
	User          userProfile                 `json:"user"`
	Products      []models.Product            `json:"products,omitempty"`
	MyOrders      []models.Order              `json:"my_orders,omitempty"`
	Leaderboard   []workflow.LeaderboardEntry `json:"leaderboard,omitempty"`
	PendingUsers  []workflow.PendingUser      `json:"pending_users,omitempty"`
	PendingOrders []workflow.PendingOrder     `json:"pending_orders,omitempty"`
	Payouts       []workflow.PayoutRow        `json:"payouts,omitempty"`
}

// POST /api/init
func (c *InitController) Handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitData string `json:"initData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InitData == "" {
		utils.WriteError(w, http.StatusBadRequest, "initData is required")
		return
	}

	identity, err := telegram.ValidateInitData(req.InitData, os.Getenv("BOT_TOKEN"))
	if err != nil {
		utils.WriteError(w, http.StatusForbidden, "invalid init data")
		return
	}

	var user models.User
	if err := c.db.WithContext(r.Context()).First(&user, identity.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("[init] load user %d: %v", identity.ID, err)
		utils.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := InitResponse{User: userProfile{
		ID:               user.ID,
		FirstName:        user.FirstName,
		Status:           user.Status,
		PhoneNumber:      user.PhoneNumber,
		PromoCode:        user.PromoCode,
		UnpaidCommission: user.UnpaidCommission,
	}}

	switch user.Status {
	case models.UserStatusApproved:
		if err := c.fillSalesperson(r, &resp, user.ID); err != nil {
			log.Printf("[init] salesperson view for %d: %v", user.ID, err)
			utils.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	case models.UserStatusAdmin:
		dashboard, err := c.reports.Dashboard(r.Context(), time.Now())
		if err != nil {
			log.Printf("[init] admin dashboard: %v", err)
			utils.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp.Products = dashboard.Products
		resp.Leaderboard = dashboard.Leaderboard
		resp.PendingUsers = dashboard.PendingUsers
		resp.PendingOrders = dashboard.PendingOrders
		resp.Payouts = dashboard.Payouts
	}

	utils.WriteJSON(w, http.StatusOK, resp)
}

func (c *InitController) fillSalesperson(r *http.Request, resp *InitResponse, userID int64) error {
	db := c.db.WithContext(r.Context())
	if err := db.Order("name ASC").Find(&resp.Products).Error; err != nil {
		return err
	}
	if err := db.Where("salesperson_id = ?", userID).
		Order("created_at DESC").
		Find(&resp.MyOrders).Error; err != nil {
		return err
	}
	leaderboard, err := c.reports.Leaderboard(r.Context(), time.Now())
	if err != nil {
		return err
	}
	resp.Leaderboard = leaderboard
	return nil
}
