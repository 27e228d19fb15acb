package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/stevelan1995/sched-engine/pkg/core/engine"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamHandler 调度事件流处理器（WebSocket）
type StreamHandler struct {
	engine   *engine.Engine
	upgrader websocket.Upgrader
}

// NewStreamHandler 创建StreamHandler
func NewStreamHandler(eng *engine.Engine) *StreamHandler {
	return &StreamHandler{
		engine: eng,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS已由全局中间件处理
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Events 订阅调度事件流
// GET /api/v1/events (WebSocket)
func (h *StreamHandler) Events(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ [事件流] WebSocket升级失败: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	events, err := h.engine.EventBus().Subscribe(ctx)
	if err != nil {
		log.Printf("⚠️ [事件流] 订阅失败: %v", err)
		return
	}

	// 读循环只用于感知客户端断开
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
