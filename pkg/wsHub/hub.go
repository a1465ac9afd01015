package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

var ErrConnIsNotFound = errors.New("connection not found")

// ConnectionHub хранит и управляет всеми активными WebSocket соединениями.
// Ключ — user_id из токена, на пользователя живёт ровно одно соединение.
type ConnectionHub struct {
	clients map[int64]*Conn
	buffer  int
	l       logger.Logger
	mu      sync.Mutex
	wg      sync.WaitGroup
}

func NewConnHub(l logger.Logger, sendBuffer int) *ConnectionHub {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &ConnectionHub{
		clients: make(map[int64]*Conn),
		buffer:  sendBuffer,
		l:       l,
	}
}

// Add регистрирует новое соединение и запускает его писателя.
// Если соединение с этим userID уже существует — оно закрывается.
func (h *ConnectionHub) Add(userID int64, sock *websocket.Conn) *Conn {
	c := newConn(userID, sock, h.buffer)

	h.mu.Lock()
	old := h.clients[userID]
	h.clients[userID] = c
	h.mu.Unlock()

	if old != nil {
		ctx := wrap.WithAction(context.Background(), "add_ws_connection")
		h.l.Warn(ctx, "replacing existing connection", "user_id", userID)
		_ = old.Close()
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()

	return c
}

// Delete удаляет соединение, только если оно всё ещё текущее для userID.
// Запоздавший Delete после замены соединения не трогает новое.
func (h *ConnectionHub) Delete(userID int64, c *Conn) {
	h.mu.Lock()
	if cur, ok := h.clients[userID]; ok && cur == c {
		delete(h.clients, userID)
	}
	h.mu.Unlock()

	_ = c.Close()
}

// SendTo отправляет сообщение определённому клиенту по ID.
// Возвращает ErrConnIsNotFound, если соединение не найдено.
// Клиент с переполненным буфером отключается, сообщение теряется.
func (h *ConnectionHub) SendTo(userID int64, msg []byte) error {
	h.mu.Lock()
	c, ok := h.clients[userID]
	h.mu.Unlock()

	if !ok {
		return ErrConnIsNotFound
	}

	err := c.enqueue(msg)
	switch {
	case errors.Is(err, ErrSendBufferFull):
		ctx := wrap.WithAction(context.Background(), "ws_send")
		h.l.Warn(ctx, "client is too slow, dropping connection", "user_id", userID)
		h.Delete(userID, c)
		return fmt.Errorf("user %d: %w", userID, err)
	case errors.Is(err, ErrConnClosed):
		return fmt.Errorf("user %d: %w", userID, err)
	}

	return nil
}

// Count возвращает число активных соединений.
func (h *ConnectionHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close закрывает каждое websocket соединение и ждёт писателей.
func (h *ConnectionHub) Close() {
	ctx := wrap.WithAction(context.Background(), "hub_close")

	// копируем клиентов под локом
	h.mu.Lock()
	clients := lo.Values(h.clients)
	h.clients = make(map[int64]*Conn)
	h.mu.Unlock()

	// закрываем вне локов
	for _, c := range clients {
		_ = c.Close()
	}

	h.wg.Wait()

	h.l.Info(ctx, "all websocket connections closed gracefully")
}
