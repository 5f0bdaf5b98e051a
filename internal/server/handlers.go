package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/cell"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/ledger"
	"github.com/aman-zulfiqar/ckb-amm-matcher/internal/monitor"
)

// Handlers holds the monitor endpoint's dependencies.
type Handlers struct {
	Tracker *monitor.Tracker
	Store   ledger.Store
	Started time.Time
}

func NewHandlers(tracker *monitor.Tracker, store ledger.Store) *Handlers {
	return &Handlers{Tracker: tracker, Store: store, Started: time.Now().UTC()}
}

// Health reports liveness and uptime.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.Started).String(),
	})
}

// Requests lists every tracked request cell and its latest state.
func (h *Handlers) Requests(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Tracker.All())
}

// Request looks up one request cell by its creating transaction and index.
func (h *Handlers) Request(c echo.Context) error {
	txHash := c.Param("tx_hash")
	index, err := cell.HexToUint64(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad outpoint index", Code: http.StatusBadRequest})
	}

	key := fmt.Sprintf("%s-0x%x", txHash, index)
	state, ok := h.Tracker.Get(key)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "request not tracked", Code: http.StatusNotFound})
	}
	return c.JSON(http.StatusOK, state)
}

// Deal returns one persisted deal record by transaction id.
func (h *Handlers) Deal(c echo.Context) error {
	rec, err := h.Store.GetByTxID(c.Request().Context(), c.Param("tx_id"))
	if errors.Is(err, ledger.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "deal not found", Code: http.StatusNotFound})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

// Deals lists the in-flight deal chain, oldest first.
func (h *Handlers) Deals(c echo.Context) error {
	sent, err := h.Store.AllSent(c.Request().Context())
	if err != nil {
		return err
	}
	if sent == nil {
		sent = []*ledger.DealRecord{}
	}
	return c.JSON(http.StatusOK, sent)
}
