package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// stream sends the dashboard as server-sent events: once on connect and
// again after every change to the store.
func (h *handlers) stream(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	ctx := c.Request().Context()
	changes, unsubscribe := h.Dashboard.Subscribe()
	defer unsubscribe()
	c.Response().WriteHeader(http.StatusOK)

	for {
		data, err := sonic.ConfigStd.Marshal(h.dashboard())
		if err != nil {
			h.Logger.Errorf("encode dashboard: %v", err)
			return err
		}
		if _, err := c.Response().Write([]byte("data: ")); err != nil {
			return nil
		}
		if _, err := c.Response().Write(data); err != nil {
			return nil
		}
		if _, err := c.Response().Write([]byte("\n\n")); err != nil {
			return nil
		}
		flusher.Flush()

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}
	}
}
