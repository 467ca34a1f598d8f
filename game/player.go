package game

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// playerSession binds one authenticated identity to one websocket. ReadPump
// and WritePump run as the session's two goroutines; everything the room
// wants to say goes through the buffered send queue so a stalled socket can
// never block the room actor.
type playerSession struct {
	id          string
	username    string
	socket      WebsocketConnection
	rateLimiter *rate.Limiter

	room      Room
	sendQueue chan []byte
	pingChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewPlayerSession(id, username string, socket WebsocketConnection) *playerSession {
	return &playerSession{
		id:          id,
		username:    username,
		socket:      socket,
		rateLimiter: rate.NewLimiter(40, 60),
		sendQueue:   make(chan []byte, 256),
		pingChan:    make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (p *playerSession) Id() string {
	return p.id
}

func (p *playerSession) Username() string {
	return p.username
}

func (p *playerSession) SetRoom(r Room) {
	p.room = r
}

// Send enqueues without blocking. A full queue means the client has stopped
// draining its socket, so the session is dropped rather than backing up the
// room.
func (p *playerSession) Send(data []byte) {
	if data == nil {
		return
	}
	select {
	case p.sendQueue <- data:
	case <-p.done:
	default:
		slog.Warn("send queue full, dropping player", "player", p.username)
		p.CancelAndRelease()
	}
}

func (p *playerSession) Ping() error {
	select {
	case p.pingChan <- struct{}{}:
	case <-p.done:
	default:
	}
	return nil
}

func (p *playerSession) CancelAndRelease() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.socket.Close("connection closed")
	})
}

func (p *playerSession) ReadPump() {
	defer func() {
		if p.room != nil {
			p.room.RemoveMe(context.Background(), p)
		}
		p.CancelAndRelease()
	}()

	for {
		data, err := p.socket.Read()
		if err != nil {
			return
		}

		if !p.rateLimiter.Allow() {
			continue
		}

		var packet ClientPacket
		if err := json.Unmarshal(data, &packet); err != nil {
			slog.Debug("malformed client packet", "player", p.username)
			continue
		}

		if p.room == nil {
			continue
		}
		p.room.Send(context.Background(), ClientPacketEnvelope{clientPacket: packet, from: p})
	}
}

func (p *playerSession) WritePump() {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.sendQueue:
			if err := p.socket.Write(data); err != nil {
				p.CancelAndRelease()
				return
			}
		case <-p.pingChan:
			if err := p.socket.Ping(); err != nil {
				p.CancelAndRelease()
				return
			}
		}
	}
}
