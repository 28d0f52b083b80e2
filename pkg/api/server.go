// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the coordinator's operation surface over HTTP. It is a
// thin transport: amounts cross it as decimal token strings and are converted
// exactly to integer base units at the edge; the core never sees decimals.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/adxyz/slotbid/pkg/bank"
	"github.com/adxyz/slotbid/pkg/coordinator"
	"github.com/adxyz/slotbid/pkg/log"
)

// Config configures the API server.
type Config struct {
	Coordinator *coordinator.Coordinator
	Bank        *bank.Bank
	Log         log.Logger

	// Scale is the number of decimal places of the display token; base
	// units are token * 10^Scale. 18 matches wei-style accounting.
	Scale int32

	// Currency reported in ad-serve responses.
	Currency string

	// CreativeGateway is the content-store gateway prefix used to build
	// creative URLs in ad-serve responses. The core itself never fetches
	// creative bytes.
	CreativeGateway string

	AllowOrigins []string
	Production   bool
}

// Server is the HTTP front of the auction coordinator.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// NewServer creates an API server.
func NewServer(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}
	if cfg.Scale == 0 {
		cfg.Scale = 18
	}
	if cfg.Currency == "" {
		cfg.Currency = "AUSD"
	}
	if cfg.CreativeGateway == "" {
		cfg.CreativeGateway = "https://ipfs.io/ipfs"
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the gin router.
func (s *Server) Router() *gin.Engine {
	if s.cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())

	corsConfig := cors.DefaultConfig()
	if len(s.cfg.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = s.cfg.AllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/slots", s.createSlot)
		api.GET("/slots", s.listSlots)
		api.GET("/slots/:id", s.getSlot)
		api.GET("/slots/:id/bid", s.getCurrentBid)
		api.POST("/slots/:id/bids", s.placeBid)
		api.GET("/slots/:id/ad", s.serveAd)

		api.GET("/events", s.listEvents)
		api.GET("/events/ws", s.streamEvents)

		api.GET("/accounts/:id/balance", s.getBalance)
		api.POST("/accounts/:id/deposit", s.deposit)
	}

	return router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
