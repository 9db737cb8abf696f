package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/dlc-engine/internal/chainwatch"
	"github.com/rawblock/dlc-engine/internal/storage"
	"github.com/rawblock/dlc-engine/internal/walletrpc"
)

// APIHandler bundles the collaborators contract lifecycle handlers need:
// persistence, the wallet RPC client, the confirmation watcher, and the
// event broadcast hub.
type APIHandler struct {
	dbStore *storage.ContractStore
	wallet  *walletrpc.Client
	wsHub   *Hub
	watcher *chainwatch.Watcher
}

// SetupRouter wires CORS, auth, rate limiting, and the contract lifecycle
// routes onto a fresh gin engine.
func SetupRouter(dbStore *storage.ContractStore, wallet *walletrpc.Client, wsHub *Hub, watcher *chainwatch.Watcher) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var.
	// Production: ALLOWED_ORIGINS=https://counterparty.example.com
	// Development: leave empty for *.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{
		dbStore: dbStore,
		wallet:  wallet,
		wsHub:   wsHub,
		watcher: watcher,
	}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	// ── Protected endpoints (require bearer token if API_AUTH_TOKEN set) ──
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	// Adaptor signature generation/verification is CPU-bound; keep it well
	// below what a single node can be pushed to do per minute by one caller.
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		contracts := auth.Group("/contracts")
		{
			contracts.POST("/offer", handler.handleOffer)
			contracts.POST("/:id/accept", handler.handleAccept)
			contracts.POST("/:id/sign", handler.handleSign)
			contracts.POST("/:id/execute", handler.handleExecute)
			contracts.GET("/:id", handler.handleGetContract)
			contracts.GET("", handler.handleListContracts)
		}
	}

	return r
}

// handleHealth reports engine and collaborator status for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":      "operational",
		"engine":      "dlc-engine",
		"dbConnected": h.dbStore != nil,
		"walletReady": h.wallet != nil,
	}
	if h.watcher != nil {
		status["chainWatch"] = h.watcher.Progress()
	}
	c.JSON(http.StatusOK, status)
}
