package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"ahadumarket/utils"
	"ahadumarket/workflow"
)

// Controller handles the salesperson-facing portal endpoints.
type Controller struct {
	engine *workflow.Engine
}

func NewController(engine *workflow.Engine) *Controller {
	return &Controller{engine: engine}
}

// POST /api/register
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	identity, ok := utils.TelegramUserFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusForbidden, "authentication required")
		return
	}

	var req struct {
		FirstName   string `json:"first_name"`
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := c.engine.Register(r.Context(), identity.ID, req.FirstName, req.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrValidation):
			utils.WriteError(w, http.StatusBadRequest, "phone number is required")
		case errors.Is(err, workflow.ErrNotFound):
			utils.WriteError(w, http.StatusNotFound, "user not found, start the bot first")
		case errors.Is(err, workflow.ErrInvalidState):
			utils.WriteError(w, http.StatusConflict, "already registered")
		default:
			log.Printf("[register] user %d: %v", identity.ID, err)
			utils.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"user_status": user.Status,
	})
}

// POST /api/sales
func (c *Controller) LogSale(w http.ResponseWriter, r *http.Request) {
	identity, ok := utils.TelegramUserFrom(r)
	if !ok {
		utils.WriteError(w, http.StatusForbidden, "authentication required")
		return
	}

	var req struct {
		ProductID         json.RawMessage `json:"productId"`
		OtherProductName  string          `json:"other_product_name"`
		OtherProductPrice float64         `json:"other_product_price"`
		CustomerName      string          `json:"customer_name"`
		CustomerPhone     string          `json:"customer_phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	productID, err := parseProductRef(req.ProductID)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := workflow.SaleInput{
		ProductID:     productID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	}
	if productID == nil {
		input.ProductName = req.OtherProductName
		input.ProductPrice = req.OtherProductPrice
	}

	if _, err := c.engine.LogSale(r.Context(), identity.ID, input); err != nil {
		switch {
		case errors.Is(err, workflow.ErrValidation):
			utils.WriteError(w, http.StatusBadRequest, "missing or invalid sale fields")
		case errors.Is(err, workflow.ErrForbidden):
			utils.WriteError(w, http.StatusForbidden, "only approved salespeople can log sales")
		case errors.Is(err, workflow.ErrOutOfStock):
			utils.WriteError(w, http.StatusBadRequest, "product out of stock or does not exist")
		default:
			log.Printf("[sales] user %d: %v", identity.ID, err)
			utils.WriteError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// parseProductRef reads the productId field, which the Mini App sends
// either as the literal "other" (ad-hoc sale), a number, or a numeric
// string. Returns nil for ad-hoc sales.
func parseProductRef(raw json.RawMessage) (*uint, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("productId is required")
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		if strings.EqualFold(s, "other") {
			return nil, nil
		}
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid productId")
		}
		id := uint(n)
		return &id, nil
	}

	var n uint
	if json.Unmarshal(raw, &n) == nil && n > 0 {
		return &n, nil
	}
	return nil, fmt.Errorf("invalid productId")
}
