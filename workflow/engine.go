package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"ahadumarket/database"
	"ahadumarket/models"
	"ahadumarket/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier delivers chat messages. Delivery happens after commit and is
// best effort; failures are logged and never roll back state.
type Notifier interface {
	Notify(chat string, text string) error
}

// Config carries the deployment identity and commission settings.
type Config struct {
	AdminID        int64
	SalesGroupChat string // empty disables group celebrations
	CommissionRate float64
	WebAppURL      string
}

// Engine owns every state transition over users, products and orders.
type Engine struct {
	db  *gorm.DB
	bot Notifier
	cfg Config
}

func NewEngine(db *gorm.DB, bot Notifier, cfg Config) *Engine {
	return &Engine{db: db, bot: bot, cfg: cfg}
}

func (e *Engine) Config() Config {
	return e.cfg
}

const (
	promoCodeLength   = 8
	promoCodeAttempts = 5
)

// EnsureAdmin seeds the bootstrap admin account. Idempotent: an
// existing row with the configured ID is left untouched.
func (e *Engine) EnsureAdmin(ctx context.Context) error {
	var existing models.User
	err := e.db.WithContext(ctx).First(&existing, e.cfg.AdminID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ensure admin: %w", err)
	}

	code := "ADMIN"
	admin := models.User{
		ID:        e.cfg.AdminID,
		FirstName: "Admin",
		Status:    models.UserStatusAdmin,
		PromoCode: &code,
	}
	if err := e.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	log.Printf("[workflow] seeded admin user %d", e.cfg.AdminID)
	return nil
}

// RegisterContact records a first /start contact. Known users are
// returned unchanged; new ones are created PENDING and the admin is
// alerted.
func (e *Engine) RegisterContact(ctx context.Context, id int64, firstName, username string) (*models.User, bool, error) {
	var user models.User
	err := e.db.WithContext(ctx).First(&user, id).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = models.User{
		ID:        id,
		FirstName: firstName,
		Status:    models.UserStatusPending,
	}
	if username != "" {
		user.Username = &username
	}
	if err := e.db.WithContext(ctx).Create(&user).Error; err != nil {
		if database.IsDuplicateEntry(err) {
			// Lost a race with a concurrent /start for the same user.
			if ferr := e.db.WithContext(ctx).First(&user, id).Error; ferr == nil {
				return &user, false, nil
			}
		}
		return nil, false, err
	}

	alert := fmt.Sprintf("New salesperson started the bot:\n\nName: %s\nUsername: @%s\nID: %d\n\nThey are PENDING until you approve them.", firstName, username, id)
	e.notify(strconv.FormatInt(e.cfg.AdminID, 10), alert)
	return &user, true, nil
}

// Register completes registration by attaching a phone number. Fails if
// the user is unknown or already has one.
func (e *Engine) Register(ctx context.Context, userID int64, firstName, phone string) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone number is required", ErrValidation)
	}

	var user models.User
	if err := e.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if user.PhoneNumber != nil {
		return nil, fmt.Errorf("%w: already registered", ErrInvalidState)
	}

	updates := map[string]interface{}{"phone_number": phone}
	if strings.TrimSpace(firstName) != "" {
		updates["first_name"] = strings.TrimSpace(firstName)
	}
	if err := e.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}
	user.PhoneNumber = &phone
	return &user, nil
}

// ApproveUser moves a PENDING user to APPROVED and assigns a unique
// promo code. The unique index is the authority on uniqueness; a
// colliding code is regenerated and retried within the transaction.
func (e *Engine) ApproveUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if user.Status != models.UserStatusPending {
			return fmt.Errorf("%w: user is %s", ErrInvalidState, user.Status)
		}

		var lastErr error
		for attempt := 0; attempt < promoCodeAttempts; attempt++ {
			code := utils.GeneratePromoCode(promoCodeLength)
			res := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
				"status":     models.UserStatusApproved,
				"promo_code": code,
			})
			if res.Error == nil {
				user.Status = models.UserStatusApproved
				user.PromoCode = &code
				return nil
			}
			if !database.IsDuplicateEntry(res.Error) {
				return res.Error
			}
			lastErr = res.Error
		}
		return fmt.Errorf("assign promo code: %w", lastErr)
	})
	if err != nil {
		return nil, err
	}

	welcome := fmt.Sprintf("🎉 Congratulations, %s! You have been approved as a salesperson.\n\nYour unique promo code is: <b>%s</b>\n\nOpen your portal to log sales and track your performance. Good luck!", user.FirstName, *user.PromoCode)
	e.notify(strconv.FormatInt(user.ID, 10), welcome)
	return &user, nil
}

// SaleInput describes a sale to log. ProductID selects catalog mode;
// when nil the sale is ad-hoc and carries its own name and price.
type SaleInput struct {
	ProductID     *uint
	ProductName   string
	ProductPrice  float64
	CustomerName  string
	CustomerPhone string
}

// LogSale records a PENDING order for an APPROVED salesperson. Catalog
// sales lock the product row and decrement stock atomically with order
// creation, so concurrent sales can never oversell.
func (e *Engine) LogSale(ctx context.Context, salespersonID int64, in SaleInput) (*models.Order, error) {
	if strings.TrimSpace(in.CustomerName) == "" || strings.TrimSpace(in.CustomerPhone) == "" {
		return nil, fmt.Errorf("%w: customer name and phone are required", ErrValidation)
	}
	if in.ProductID == nil {
		if strings.TrimSpace(in.ProductName) == "" || in.ProductPrice <= 0 {
			return nil, fmt.Errorf("%w: ad-hoc sales need a product name and a positive price", ErrValidation)
		}
	}

	var seller models.User
	if err := e.db.WithContext(ctx).First(&seller, salespersonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if seller.Status != models.UserStatusApproved {
		return nil, fmt.Errorf("%w: only approved salespeople can log sales", ErrForbidden)
	}

	order := models.Order{
		SalespersonID: salespersonID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Status:        models.OrderStatusPending,
	}
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		name, price := strings.TrimSpace(in.ProductName), in.ProductPrice
		if in.ProductID != nil {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, *in.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrOutOfStock
				}
				return err
			}
			if product.Quantity < 1 {
				return ErrOutOfStock
			}
			if err := tx.Model(&models.Product{}).Where("id = ?", product.ID).
				UpdateColumn("quantity", gorm.Expr("quantity - ?", 1)).Error; err != nil {
				return err
			}
			order.ProductID = &product.ID
			name, price = product.Name, product.Price
		}
		order.ProductName = name
		order.ProductPrice = price
		order.CommissionEarned = round2(price * e.cfg.CommissionRate)
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	alert := fmt.Sprintf("New Sale Pending Approval:\n\nSalesperson: %s\nProduct: %s\nPrice: $%.2f\nCustomer: %s", seller.FirstName, order.ProductName, order.ProductPrice, order.CustomerName)
	e.notify(strconv.FormatInt(e.cfg.AdminID, 10), alert)
	return &order, nil
}

// Order resolution actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// ResolveOrder settles a PENDING order. Approval credits the stored
// commission to the salesperson; rejection restocks the referenced
// product. Resolution is forward-only: a settled order fails with no
// side effects.
func (e *Engine) ResolveOrder(ctx context.Context, orderID uint, action string) (*models.Order, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, fmt.Errorf("%w: action must be %q or %q", ErrValidation, ActionApprove, ActionReject)
	}

	var order models.Order
	var seller models.User
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
		}

		if action == ActionApprove {
			if err := tx.First(&seller, order.SalespersonID).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
				Update("status", models.OrderStatusCompleted).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.User{}).Where("id = ?", order.SalespersonID).
				UpdateColumn("unpaid_commission", gorm.Expr("unpaid_commission + ?", order.CommissionEarned)).Error; err != nil {
				return err
			}
			order.Status = models.OrderStatusCompleted
			return nil
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("status", models.OrderStatusCancelled).Error; err != nil {
			return err
		}
		if order.ProductID != nil {
			// No rows affected means the product was deleted since the
			// sale; nothing to restock.
			if err := tx.Model(&models.Product{}).Where("id = ?", *order.ProductID).
				UpdateColumn("quantity", gorm.Expr("quantity + ?", 1)).Error; err != nil {
				return err
			}
		}
		order.Status = models.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	if action == ActionApprove {
		if e.cfg.SalesGroupChat == "" {
			log.Printf("[workflow] SALES_GROUP_ID not set, skipping celebration for order %d", order.ID)
		} else {
			cheer := fmt.Sprintf("🏆 <b>%s</b> just closed a sale!\n\nProduct: %s\nAmount: $%.2f\n\nKeep it up, team! 🚀", seller.FirstName, order.ProductName, order.ProductPrice)
			e.notify(e.cfg.SalesGroupChat, cheer)
		}
	}
	return &order, nil
}

// ProductInput is the admin catalog creation payload.
type ProductInput struct {
	Name     string
	Price    float64
	Quantity int
	Specs    string
}

func (e *Engine) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if in.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if in.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}

	product := models.Product{
		Name:     in.Name,
		Price:    in.Price,
		Quantity: in.Quantity,
		Specs:    strings.TrimSpace(in.Specs),
	}
	if err := e.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (e *Engine) DeleteProduct(ctx context.Context, id uint) error {
	res := e.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid settles a salesperson's outstanding commission: a ledger row
// is written for the amount (skipped when zero) and the counter resets,
// in one transaction.
func (e *Engine) MarkPaid(ctx context.Context, actorID, userID int64) (*models.User, error) {
	var user models.User
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if user.UnpaidCommission > 0 {
			payout := models.Payout{
				UserID: user.ID,
				Amount: user.UnpaidCommission,
				PaidBy: actorID,
			}
			if err := tx.Create(&payout).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("unpaid_commission", 0).Error; err != nil {
			return err
		}
		user.UnpaidCommission = 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (e *Engine) notify(chat, text string) {
	if e.bot == nil {
		return
	}
	if err := e.bot.Notify(chat, text); err != nil {
		log.Printf("[notify] send to %s failed: %v", chat, err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
