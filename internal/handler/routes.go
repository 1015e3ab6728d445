package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/veldt/ledgerdesk-backend/internal/middleware"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, rateLimiter *middleware.RateLimiter, reconciliationHandler *ReconciliationHandler, bankRecordHandler *BankRecordHandler, wsHandler *WebSocketHandler) {
	// API version 1
	api := e.Group("/api/v1")

	// Reconciliation routes; the run endpoint is an expensive batch and
	// sits behind the rate limiter
	recon := api.Group("/reconciliation")
	recon.POST("/runs", reconciliationHandler.Run, middleware.RateLimitMiddleware(rateLimiter))
	recon.GET("/disbursements", reconciliationHandler.Disbursements)

	// Bank ledger read surface
	api.GET("/bank-records", bankRecordHandler.List)

	// Run event stream
	api.GET("/ws", wsHandler.HandleWS)
}
