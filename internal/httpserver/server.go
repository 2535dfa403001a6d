package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dhruv1710/thinkback/internal/convo"
	"github.com/dhruv1710/thinkback/internal/gateway"
)

type turnRequest struct {
	Text string `json:"text"`
}

// turnResponse mirrors the wire contract: audioUrl is an explicit null
// when synthesis produced nothing to play.
type turnResponse struct {
	AIText   string  `json:"aiText"`
	AudioURL *string `json:"audioUrl"`
}

// New constructs the Echo server with routes. The session handler may
// be nil when WebSocket capture is not configured.
func New(client convo.TurnClient, session *gateway.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.POST("/api/turn", func(c echo.Context) error {
		var req turnRequest
		if err := c.Bind(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid request body")
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			return c.String(http.StatusBadRequest, "text must not be empty")
		}

		// Provider failures are encoded in the reply shape; the only
		// error path here is a malformed request.
		reply, err := client.ProcessTurn(c.Request().Context(), text)
		if err != nil {
			c.Echo().Logger.Errorf("turn processing failed: %v", err)
			reply = convo.Reply{AIText: convo.FallbackReply}
		}

		resp := turnResponse{AIText: reply.AIText}
		if reply.AudioURL != "" {
			resp.AudioURL = &reply.AudioURL
		}
		return c.JSON(http.StatusOK, resp)
	})

	if session != nil {
		e.GET("/api/session", func(c echo.Context) error {
			session.ServeWebSocket(c.Response(), c.Request())
			return nil
		})
	}

	return e
}
