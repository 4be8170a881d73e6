package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"delivery_ops/internal/printing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	errConnClosed    = errors.New("printer connection closed")
	errSendQueueFull = errors.New("printer send queue full")
)

// PrinterSocket serves the real-time channel printer clients connect to.
type PrinterSocket struct {
	broker     *printing.Broker
	upgrader   websocket.Upgrader
	sendBuffer int
}

func NewPrinterSocket(broker *printing.Broker, sendBuffer int) *PrinterSocket {
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	return &PrinterSocket{
		broker:     broker,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type printAck struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// socketConn adapts a websocket to printing.Conn. Sends never block the
// broker: they are queued and written by the connection's own pump.
type socketConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *socketConn) ID() string { return c.id }

func (c *socketConn) Send(_ context.Context, msg printing.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *socketConn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (s *PrinterSocket) Serve(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("action", "printer_upgrade_failed").Msg("WebSocket upgrade failed")
		return
	}

	conn := &socketConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, s.sendBuffer),
		done: make(chan struct{}),
	}
	registry := s.broker.Registry()
	registry.Connect(conn)
	log.Info().Str("action", "printer_connected").Str("connection_id", conn.id).Str("ip", c.ClientIP()).Msg("Client connected")

	go s.writePump(conn)
	s.readPump(conn)

	wasPrinter := registry.Disconnect(conn.id)
	conn.close()
	log.Info().
		Str("action", "printer_disconnected").
		Str("connection_id", conn.id).
		Bool("was_printer", wasPrinter).
		Int("printers", registry.Count()).
		Msg("Client disconnected")
}

func (s *PrinterSocket) readPump(conn *socketConn) {
	ws := conn.ws
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("action", "printer_read_failed").Str("connection_id", conn.id).Msg("Printer connection dropped")
			}
			return
		}
		s.handle(conn, msg)
	}
}

func (s *PrinterSocket) handle(conn *socketConn, msg inboundMessage) {
	ctx := context.Background()
	switch msg.Event {
	case printing.EventRegisterPrinter:
		var info printing.PrinterInfo
		if len(msg.Data) > 0 {
			_ = json.Unmarshal(msg.Data, &info)
		}
		s.broker.RegisterPrinter(conn, info)
		_ = conn.Send(ctx, printing.Message{
			Event: printing.EventPrinterRegistered,
			Data:  gin.H{"connectionId": conn.id, "printers": s.broker.ConnectedCount()},
		})

	case printing.EventPrintSuccess, printing.EventPrintError:
		var ack printAck
		if err := json.Unmarshal(msg.Data, &ack); err != nil || ack.JobID == "" {
			log.Warn().Str("action", "print_ack_invalid").Str("connection_id", conn.id).Msg("Ignoring acknowledgement without job id")
			return
		}
		success := msg.Event == printing.EventPrintSuccess
		detail := ack.Message
		if !success && ack.Error != "" {
			detail = ack.Error
		}
		if err := s.broker.ReportOutcome(ctx, ack.JobID, conn.id, success, detail); err != nil {
			log.Error().Err(err).Str("action", "print_ack_failed").Str("job_id", ack.JobID).Msg("Failed to record print outcome")
		}

	default:
		log.Debug().Str("action", "printer_unknown_event").Str("event", msg.Event).Str("connection_id", conn.id).Msg("Ignoring unknown event")
	}
}

func (s *PrinterSocket) writePump(conn *socketConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.close()
	}()

	for {
		select {
		case data := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.done:
			return
		}
	}
}
