// Package httpserver exposes a read-only inspection surface over the book.
// Order placement stays on the message channel; nothing here mutates state.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"matchd/domain/book"
	"matchd/infra/store"
)

type Server struct {
	store store.Store
	log   *zap.Logger
}

func New(st store.Store, log *zap.Logger) *Server {
	return &Server{store: st, log: log}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	v1 := r.Group("/api/v1")
	{
		v1.GET("/book/:symbol", s.bookSnapshot)
		v1.GET("/orders/:ref", s.orderByRef)
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) bookSnapshot(c *gin.Context) {
	symbol := c.Param("symbol")

	entries, err := s.store.OpenEntries(c.Request.Context(), symbol)
	if err != nil {
		s.log.Error("book snapshot failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}

	bids := make([]*book.Entry, 0)
	asks := make([]*book.Entry, 0)
	for _, e := range entries {
		if e.Side == book.SideBuy {
			bids = append(bids, e)
		} else {
			asks = append(asks, e)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"bids":   bids,
		"asks":   asks,
	})
}

func (s *Server) orderByRef(c *gin.Context) {
	ref := c.Param("ref")

	entry, err := s.store.Get(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown orderRef"})
			return
		}
		s.log.Error("order lookup failed", zap.String("orderRef", ref), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
