package websocket

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
	"github.com/gorilla/websocket"
)

// Параметры realtime-канала. Подписчик только слушает, поэтому входящий лимит маленький.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512

	// При переполнении очереди хаб отключает подписчика
	sendBufferSize = 64
)

// Client подписчик realtime-канала: получает снимки серий и алерты.
// Соединение закрывается ровно один раз, каким бы циклом ни завершилась сессия.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan Message
	logger *logger.Logger

	closeOnce sync.Once
}

// NewClient создает подписчика поверх установленного соединения
func NewClient(hub *Hub, conn *websocket.Conn, logger *logger.Logger) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan Message, sendBufferSize),
		logger: logger.With("component", "realtime_client"),
	}
}

// Start регистрирует подписчика в хабе и запускает циклы чтения и записи
func (c *Client) Start() {
	c.hub.Register(c)

	go c.writeLoop()
	go c.readLoop()
}

// readLoop держит соединение живым: обновляет дедлайн по pong и обнаруживает отключение.
// Данные от подписчика не нужны, кадры отбрасываются без чтения.
func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Realtime subscriber dropped", "error", err.Error())
			}
			return
		}
	}
}

// writeLoop доставляет сообщения из очереди и шлет ping раз в pingPeriod.
// Закрытая хабом очередь означает отключение: подписчик получает кадр закрытия.
func (c *Client) writeLoop() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		keepalive.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = c.writeFrame(websocket.CloseMessage, closing)
				return
			}
			if err := c.writeJSON(msg); err != nil {
				c.logger.Warn("Realtime message not delivered", "type", msg.Type, "error", err.Error())
				return
			}

		case <-keepalive.C:
			if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Keepalive ping failed", "error", err.Error())
				return
			}
		}
	}
}

func (c *Client) writeJSON(msg Message) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) writeFrame(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, payload)
}

// close закрывает соединение; повторный вызов из второго цикла ничего не делает
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Error("Realtime connection close failed", err)
		}
	})
}
