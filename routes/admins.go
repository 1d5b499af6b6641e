package routes

import (
	"net/http"

	"ahadumarket/controllers/admins"
	"ahadumarket/middleware"

	"github.com/gorilla/mux"
)

// SetAdminRoutes mounts the admin endpoints. Every route requires a
// verified initData identity that matches the configured ADMIN_ID.
func SetAdminRoutes(api *mux.Router, ctl *admins.Controller) {
	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.TelegramAuthMiddleware, middleware.AdminAuthMiddleware)

	adminRouter.Handle("/approve_user/{id:[0-9]+}", http.HandlerFunc(ctl.ApproveUser)).Methods(http.MethodPost)
	adminRouter.Handle("/order/{id:[0-9]+}", http.HandlerFunc(ctl.ResolveOrder)).Methods(http.MethodPost)
	adminRouter.Handle("/product", http.HandlerFunc(ctl.CreateProduct)).Methods(http.MethodPost)
	adminRouter.Handle("/product", http.HandlerFunc(ctl.DeleteProduct)).Methods(http.MethodDelete)
	adminRouter.Handle("/mark_paid/{id:[0-9]+}", http.HandlerFunc(ctl.MarkPaid)).Methods(http.MethodPost)
}
