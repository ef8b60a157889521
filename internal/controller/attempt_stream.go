package controller

import (
	"encoding/json"
	"net/http"
	"quiz_portal/internal/session"
	"quiz_portal/pkg/logger"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type streamMessage struct {
	Type string           `json:"type"`
	Data session.Snapshot `json:"data"`
}

// Stream godoc
// @Summary 作答状态推送
// @Description WebSocket，每次计时或状态变化推送一次快照；令牌可通过 ?token= 传递
// @Tags 作答
// @Param quizId path string true "测验ID"
// @Param token query string false "JWT"
// @Router /api/attempts/{quizId}/stream [get]
func (c *AttemptController) Stream(ctx *gin.Context) {
	userID, quizID := currentUserID(ctx), ctx.Param("quizId")
	updates, cancel, err := c.AttemptService.Subscribe(userID, quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		cancel()
		logger.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, updates, done)
	cancel()
}

// readPump 只处理 pong 与关闭，客户端操作走 REST 接口
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Debug("attempt stream closed", zap.Error(err))
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, updates <-chan session.Snapshot, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case snap, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt closed"))
				return
			}
			payload, err := json.Marshal(streamMessage{Type: "snapshot", Data: snap})
			if err != nil {
				logger.Log.Error("encode snapshot", zap.Error(err))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
