// Package transport implements the three-channel dispatcher (§4.5): a
// bounded send queue per peer per channel multiplexed onto one duplex byte
// pipe, with the channels' distinct ordering/reliability/drop policies
// enforced at the queueing layer rather than by the wire transport itself
// (see DESIGN.md's Open Question resolution on the transport library).
//
// Each peer runs a readPump/writePump goroutine pair (ping ticker, write
// deadlines, unregister-on-error) generalized from one send channel to
// three, carrying gorilla/websocket as the binary frame carrier.
package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"worldcore/codec"
	"worldcore/logging"
	"worldcore/memory"
)

// Channel is one of the three delivery-semantics categories, §4.5.
type Channel int

const (
	ChannelReliableOrdered Channel = iota
	ChannelReliableUnordered
	ChannelUnreliable
	numChannels
)

func (c Channel) String() string {
	switch c {
	case ChannelReliableOrdered:
		return "reliable-ordered"
	case ChannelReliableUnordered:
		return "reliable-unordered"
	case ChannelUnreliable:
		return "unreliable"
	default:
		return "unknown"
	}
}

const (
	defaultQueueSize   = 256
	writeWait          = 10 * time.Second
	pongWait           = 30 * time.Second
	pingPeriod         = pongWait * 9 / 10
	maxMessageSize     = 1 << 16
	maxOverloadStreak  = 1 // "delays ... no more than one tick before surfacing ... and disconnecting if it persists"
	maxCodecOffences   = 5
	codecOffenceWindow = time.Minute
)

var ErrOverloaded = errors.New("transport: peer overloaded")

// FrameHandler is invoked once per valid decoded frame received from a peer.
type FrameHandler func(sessionID string, msgType codec.MsgType, body []byte)

// DisconnectHandler is invoked once a peer's connection is torn down, for
// any reason (read error, close frame, kick, overload).
type DisconnectHandler func(sessionID string, err error)

// Peer is one connected client's transport-layer state: the live socket
// and its three outbound queues.
type Peer struct {
	SessionID string
	RemoteIP  string

	conn   *websocket.Conn
	queues [numChannels]chan []byte
	done   chan struct{}
	closed sync.Once

	mu               sync.Mutex
	overloadStreak   int
	codecOffences    int
	offenceWindowEnd time.Time
}

// Dispatcher owns every connected peer and the handlers that route
// decoded frames into the session/event-submission path.
type Dispatcher struct {
	mu    sync.RWMutex
	peers map[string]*Peer

	log       *logging.Logger
	queueSize int

	OnFrame      FrameHandler
	OnDisconnect DisconnectHandler
}

// NewDispatcher constructs a dispatcher with the given per-channel queue
// depth (defaultQueueSize if <= 0).
func NewDispatcher(queueSize int, log *logging.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = logging.Default()
	}
	return &Dispatcher{
		peers:     make(map[string]*Peer),
		log:       log,
		queueSize: queueSize,
	}
}

// Serve registers conn under sessionID and runs its read/write pumps until
// the connection closes, calling OnFrame for each decoded packet and
// OnDisconnect exactly once on teardown. Intended to be called from the
// HTTP upgrade handler's own goroutine.
func (d *Dispatcher) Serve(sessionID string, conn *websocket.Conn) {
	remoteIP := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		if host, _, err := net.SplitHostPort(addr.String()); err == nil {
			remoteIP = host
		}
	}
	p := &Peer{
		SessionID: sessionID,
		RemoteIP:  remoteIP,
		conn:      conn,
		done:      make(chan struct{}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan []byte, d.queueSize)
	}

	d.mu.Lock()
	d.peers[sessionID] = p
	d.mu.Unlock()

	go d.writePump(p)
	d.readPump(p) // blocks until the connection ends
}

func (d *Dispatcher) readPump(p *Peer) {
	var endErr error
	defer func() {
		d.removePeer(p)
		if d.OnDisconnect != nil {
			d.OnDisconnect(p.SessionID, endErr)
		}
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				endErr = err
			}
			return
		}

		msgType, body, err := codec.ParseFrame(data)
		if err != nil {
			if d.registerCodecOffence(p) {
				endErr = err
				return
			}
			d.log.Warn("codec: dropping malformed packet", map[string]interface{}{
				"sessionId": p.SessionID, "error": err.Error(),
			})
			continue
		}
		if d.OnFrame != nil {
			d.OnFrame(p.SessionID, msgType, body)
		}
	}
}

// registerCodecOffence tracks codec errors from one peer within a rolling
// window and reports whether the peer should now be kicked (§7: "kick
// after N offences from one peer in one minute").
func (d *Dispatcher) registerCodecOffence(p *Peer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if now.After(p.offenceWindowEnd) {
		p.codecOffences = 0
		p.offenceWindowEnd = now.Add(codecOffenceWindow)
	}
	p.codecOffences++
	return p.codecOffences > maxCodecOffences
}

func (d *Dispatcher) writePump(p *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-p.queues[ChannelReliableOrdered]:
			if !d.writeFrame(p, frame, ok) {
				return
			}
		case frame, ok := <-p.queues[ChannelReliableUnordered]:
			if !d.writeFrame(p, frame, ok) {
				return
			}
		case frame, ok := <-p.queues[ChannelUnreliable]:
			if !d.writeFrame(p, frame, ok) {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			return
		}
	}
}

func (d *Dispatcher) writeFrame(p *Peer, frame []byte, ok bool) bool {
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if !ok {
		p.conn.WriteMessage(websocket.CloseMessage, []byte{})
		return false
	}
	err := p.conn.WriteMessage(websocket.BinaryMessage, frame)
	memory.PutPacketBuffer(frame)
	return err == nil
}

// Send enqueues an encoded body on the given channel for sessionID. Returns
// false if the peer is unknown. When the unreliable queue is full its
// oldest queued packet is evicted so the newest wins (§4.5);
// reliable sends that find the queue full count as one tick's overload and
// are surfaced via SystemMessage/kick by the caller once maxOverloadStreak
// is exceeded (see CheckOverloaded).
func (d *Dispatcher) Send(sessionID string, ch Channel, msgType codec.MsgType, body []byte) bool {
	d.mu.RLock()
	p, ok := d.peers[sessionID]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	frame := append(memory.GetPacketBuffer(), codec.Frame(msgType, body)...)

	if ch == ChannelUnreliable {
		select {
		case p.queues[ch] <- frame:
			return true
		default:
			select {
			case evicted := <-p.queues[ch]: // evict oldest
				memory.PutPacketBuffer(evicted)
			default:
			}
			select {
			case p.queues[ch] <- frame:
			default:
				memory.PutPacketBuffer(frame)
			}
			return true
		}
	}

	select {
	case p.queues[ch] <- frame:
		p.mu.Lock()
		p.overloadStreak = 0
		p.mu.Unlock()
		return true
	default:
		memory.PutPacketBuffer(frame)
		p.mu.Lock()
		p.overloadStreak++
		streak := p.overloadStreak
		p.mu.Unlock()
		d.log.Warn("transport: send queue full", map[string]interface{}{
			"sessionId": sessionID, "channel": ch.String(), "streak": streak,
		})
		return false
	}
}

// CheckOverloaded reports whether sessionID's backpressure streak has
// exceeded the one-tick grace period and should be disconnected. Intended
// to be polled once per broadcast phase by the caller that owns session
// lifecycle (it, not this package, decides whether to actually kick).
func (d *Dispatcher) CheckOverloaded(sessionID string) bool {
	d.mu.RLock()
	p, ok := d.peers[sessionID]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overloadStreak > maxOverloadStreak
}

// Close forcibly tears down a peer's connection (admin kick, heartbeat
// timeout, overload).
func (d *Dispatcher) Close(sessionID string) {
	d.mu.RLock()
	p, ok := d.peers[sessionID]
	d.mu.RUnlock()
	if !ok {
		return
	}
	p.closed.Do(func() { close(p.done) })
}

func (d *Dispatcher) removePeer(p *Peer) {
	d.mu.Lock()
	delete(d.peers, p.SessionID)
	d.mu.Unlock()
}

// PeerCount returns the number of currently connected peers.
func (d *Dispatcher) PeerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// Connected reports whether sessionID currently has a live peer.
func (d *Dispatcher) Connected(sessionID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.peers[sessionID]
	return ok
}
