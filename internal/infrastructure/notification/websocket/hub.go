package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// Типы сообщений для клиентов
const (
	MessageTypeSeries = "series"
	MessageTypeAlert  = "alert"
)

// Hub управляет WebSocket клиентами и рассылает сообщения
// Реализует интерфейс port.NotificationService
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для broadcast snapshot'ов
	broadcast chan *dto.SeriesSnapshotDTO

	// Канал для broadcast alerts
	broadcastAlert chan *dto.AlertDTO

	// Канал для регистрации клиентов
	register chan *Client

	// Канал для удаления клиентов
	unregister chan *Client

	// Последний snapshot, отправляется новым клиентам сразу после подключения
	last *dto.SeriesSnapshotDTO

	// Mutex для защиты clients map
	mu sync.RWMutex

	done chan struct{}

	// Logger
	logger *logger.Logger
}

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		broadcast:      make(chan *dto.SeriesSnapshotDTO, 256),
		broadcastAlert: make(chan *dto.AlertDTO, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		logger:         logger.With("component", "websocket_hub"),
	}
}

// Run запускает hub (должен быть запущен в отдельной goroutine).
// Завершается при отмене ctx и закрывает всех клиентов.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			last := h.last
			h.mu.Unlock()
			if last != nil {
				h.deliver(client, Message{Type: MessageTypeSeries, Data: last})
			}
			h.logger.Debug("Client registered", "total_clients", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case snapshot := <-h.broadcast:
			h.mu.Lock()
			h.last = snapshot
			h.mu.Unlock()
			h.fanOut(Message{Type: MessageTypeSeries, Data: snapshot})

		case alert := <-h.broadcastAlert:
			h.fanOut(Message{Type: MessageTypeAlert, Data: alert})
			h.logger.Debug("Alert broadcasted to clients", "severity", alert.Severity, "metric", alert.Metric)
		}
	}
}

// fanOut отправляет сообщение всем клиентам; медленные клиенты отключаются
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
			// Сообщение отправлено
		default:
			// Канал клиента заполнен, закрываем соединение
			close(client.send)
			delete(h.clients, client)
			h.logger.Warn("Client channel full, disconnected")
		}
	}
}

func (h *Hub) deliver(client *Client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- msg:
	default:
		close(client.send)
		delete(h.clients, client)
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast отправляет snapshot всем клиентам (реализация port.NotificationService)
func (h *Hub) Broadcast(snapshot *dto.SeriesSnapshotDTO) {
	select {
	case h.broadcast <- snapshot:
		// Snapshot отправлен в канал
	default:
		h.logger.Warn("Broadcast channel full, dropping snapshot")
	}
}

// BroadcastAlert отправляет alert всем клиентам (реализация port.NotificationService)
func (h *Hub) BroadcastAlert(alert *dto.AlertDTO) {
	select {
	case h.broadcastAlert <- alert:
		// Alert отправлен в канал
	default:
		h.logger.Warn("Broadcast alert channel full, dropping alert")
	}
}

// ClientCount возвращает количество подключенных клиентов (реализация port.NotificationService)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"` // "series" или "alert"
	Data interface{} `json:"data"`
}
