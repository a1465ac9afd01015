package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn оборачивает одно websocket-соединение. Все записи проходят через
// ограниченный канал send и выполняются одной горутиной writePump —
// gorilla/websocket допускает только одного конкурентного писателя.
type Conn struct {
	userID int64
	sock   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newConn(userID int64, sock *websocket.Conn, buffer int) *Conn {
	return &Conn{
		userID: userID,
		sock:   sock,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// enqueue ставит сообщение в очередь без блокировки.
// Возвращает ErrSendBufferFull, если клиент не успевает читать.
func (c *Conn) enqueue(msg []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// writePump последовательно пишет сообщения из send в сокет.
func (c *Conn) writePump() {
	defer c.sock.Close()

	for {
		select {
		case msg := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Listen reads incoming frames until the peer disconnects. The only client
// message with meaning is the text frame "ping", answered with "pong".
func (c *Conn) Listen() error {
	for {
		msgType, msg, err := c.sock.ReadMessage()
		if err != nil {
			return err
		}
		if msgType == websocket.TextMessage && string(msg) == "ping" {
			// Ответ идёт через общий канал, чтобы не было второго писателя.
			_ = c.enqueue([]byte("pong"))
		}
	}
}

func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Conn) Close() error {
	c.shutdown()
	return c.sock.Close()
}
