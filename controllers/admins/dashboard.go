package admins

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"ahadumarket/utils"
	"ahadumarket/workflow"

	"github.com/gorilla/mux"
)

// Controller handles every admin endpoint. Each mutation replies with
// the refreshed dashboard so the Mini App never needs a second fetch.
type Controller struct {
	engine  *workflow.Engine
	reports *workflow.Reports
}

func NewController(engine *workflow.Engine, reports *workflow.Reports) *Controller {
	return &Controller{engine: engine, reports: reports}
}

func (c *Controller) writeDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := c.reports.Dashboard(r.Context(), time.Now())
	if err != nil {
		log.Printf("[admin] dashboard: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	utils.WriteJSON(w, http.StatusOK, dashboard)
}

func (c *Controller) writeWorkflowError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, workflow.ErrInvalidState):
		utils.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrValidation):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[admin] %v", err)
		utils.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// POST /api/admin/approve_user/{id}
func (c *Controller) ApproveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if _, err := c.engine.ApproveUser(r.Context(), id); err != nil {
		c.writeWorkflowError(w, err, "user not found")
		return
	}
	c.writeDashboard(w, r)
}

// POST /api/admin/order/{id}
func (c *Controller) ResolveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := c.engine.ResolveOrder(r.Context(), uint(id), req.Action); err != nil {
		c.writeWorkflowError(w, err, "order not found")
		return
	}
	c.writeDashboard(w, r)
}

// POST /api/admin/product
func (c *Controller) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string  `json:"name"`
		Price    float64 `json:"price"`
		Quantity int     `json:"quantity"`
		Specs    string  `json:"specs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := c.engine.CreateProduct(r.Context(), workflow.ProductInput{
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
		Specs:    req.Specs,
	}); err != nil {
		c.writeWorkflowError(w, err, "product not found")
		return
	}
	c.writeDashboard(w, r)
}

// DELETE /api/admin/product?id={id}
func (c *Controller) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
	if err != nil || id == 0 {
		utils.WriteError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := c.engine.DeleteProduct(r.Context(), uint(id)); err != nil {
		c.writeWorkflowError(w, err, "product not found")
		return
	}
	c.writeDashboard(w, r)
}

// POST /api/admin/mark_paid/{id}
func (c *Controller) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	actorID := int64(0)
	if actor, ok := utils.TelegramUserFrom(r); ok {
		actorID = actor.ID
	}

	if _, err := c.engine.MarkPaid(r.Context(), actorID, id); err != nil {
		c.writeWorkflowError(w, err, "user not found")
		return
	}
	c.writeDashboard(w, r)
}
