// Package ircd implements the IRC protocol engine: the event loop, the
// per-connection state, the command dispatcher, and the channel/client
// entity model described in spec.md sections 3-5.
package ircd

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"ircserv/internal/ircmsg"
)

// Message is the wire message type used throughout this package.
type Message = ircmsg.Message

// Server is the singleton holding all connection and channel state. All
// mutation happens on the single goroutine running run(), the Go analog of
// spec section 4.1's single-threaded poll loop: I/O happens on separate
// per-connection goroutines, but nothing they do touches shared state
// directly -- they only ever write to channels that run() reads from. The one
// exception is the connection-ID counter, which the accept goroutines
// increment atomically.
//
// Grounded on horgh-catbox/ircd.go's Server (Clients/Nicks/Channels tables)
// and its start() event loop (newClientChan/messageServerChan/
// deadClientChan + select), which is the early single-server design variant
// -- the one spec.md's scope matches, per spec.md section 9's instruction to
// treat duplicated dev-stage code carefully.
type Server struct {
	Name     string
	Password string
	Created  time.Time

	clients  map[uint64]*Client
	nicks    map[string]uint64 // folded nick -> client ID
	channels map[string]*Channel
	nextID   uint64

	newClientChan chan *Client
	lineChan      chan clientLine
	deadChan      chan deadClient
}

// NewServer creates a Server. password may be empty, meaning PASS is not
// required (spec section 6).
func NewServer(password string) *Server {
	return &Server{
		Name:     "localhost",
		Password: password,
		Created:  time.Now(),
		clients:  map[uint64]*Client{},
		nicks:    map[string]uint64{},
		channels: map[string]*Channel{},

		newClientChan: make(chan *Client, 100),
		lineChan:      make(chan clientLine, 1000),
		deadChan:      make(chan deadClient, 100),
	}
}

// Run binds the configured port on both IPv4 and IPv6, then runs the event
// loop until ctx is cancelled. At least one of the two listeners must bind
// successfully; if both fail, registration is fatal (spec section 4.1).
func (s *Server) Run(ctx context.Context, port string) error {
	ln4, err4 := net.Listen("tcp4", ":"+port)
	if err4 != nil {
		log.Printf("unable to listen on IPv4: %s", err4)
	}

	// Go's net package has no portable way to request dual-stack-disabled
	// listening the way the spec's C poll()-based design does by hand; on
	// every platform Go targets here, "tcp6" already binds IPv6-only when an
	// IPv4 listener also exists on the same port, so no extra socket option
	// is needed. Listen backlog is likewise not configurable through net.Listen
	// (it comes from the OS's somaxconn); spec section 4.1's "backlog: 10" is
	// therefore a statement about the original C implementation that this
	// module cannot literally reproduce, matching every Go example in this
	// codebase (none sets a custom backlog either).
	ln6, err6 := net.Listen("tcp6", ":"+port)
	if err6 != nil {
		log.Printf("unable to listen on IPv6: %s", err6)
	}

	if ln4 == nil && ln6 == nil {
		return errors.Wrap(err4, "unable to bind any listening socket")
	}

	if ln4 != nil {
		go s.acceptLoop(ctx, ln4)
	}
	if ln6 != nil {
		go s.acceptLoop(ctx, ln6)
	}

	defer func() {
		if ln4 != nil {
			_ = ln4.Close()
		}
		if ln6 != nil {
			_ = ln6.Close()
		}
	}()

	s.run(ctx)
	return nil
}

// acceptLoop accepts connections on one listener and hands them to the
// event loop via newClientChan, spawning the per-connection read/write
// goroutines the way horgh-catbox/ircd.go's acceptConnections does.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("accept error: %s", errors.Wrap(err, "accept"))
			continue
		}

		client := NewClient(atomic.AddUint64(&s.nextID, 1), conn)

		select {
		case s.newClientChan <- client:
			go client.readLoop(s.lineChan, s.deadChan)
			go client.writeLoop(s.deadChan)
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

// run is the single-threaded event loop. Every case body is the only code
// in the process allowed to mutate s.clients/s.nicks/s.channels or any
// Client/Channel reached from them -- this is what makes the "no locks"
// requirement of spec section 5 hold.
func (s *Server) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return

		case c := <-s.newClientChan:
			s.clients[c.ID] = c

		case dead := <-s.deadChan:
			if _, exists := s.clients[dead.client.ID]; exists {
				s.removeClient(dead.client, dead.reason)
			}

		case cl := <-s.lineChan:
			if _, exists := s.clients[cl.client.ID]; !exists {
				continue
			}
			s.handleLine(cl.client, cl.line)
			if cl.client.WantsToQuit {
				s.removeClient(cl.client, cl.client.QuitReason)
			}
		}
	}
}

func (s *Server) shutdown() {
	for _, c := range s.clients {
		s.messageClient(c, "ERROR", []string{"Server shutting down"})
		close(c.WriteChan)
	}
}

// sendToClient appends a message to c's output buffer by way of its write
// channel and never blocks the event loop.
func (s *Server) sendToClient(c *Client, m Message) {
	select {
	case c.WriteChan <- m:
	default:
		// The client's queue is saturated; drop it rather than block the
		// single-threaded event loop serving every other connection.
		log.Printf("client %s: write queue full, dropping", c)
	}
}

// sendToChannel delivers m to every member of ch except sender (if
// non-nil). Grounded on spec section 4.1's send_to_channel.
func (s *Server) sendToChannel(ch *Channel, m Message, sender *Client) {
	for _, member := range ch.Members {
		if sender != nil && member.ID == sender.ID {
			continue
		}
		s.sendToClient(member, m)
	}
}

// removeClient tears down c: broadcasts a QUIT to every channel it shared
// with other users (deduped), removes it from every channel (destroying any
// that become empty), frees its nick, closes its write channel, and drops
// it from the client table. This runs the same way whether c quit on its
// own (QUIT command) or was dropped for some other reason (I/O error, failed
// password) -- in every case, channel-mates need telling. Server shutdown
// does not go through here: shutdown() closes every write channel directly.
//
// Grounded on spec section 4.1 "Removal" and on
// original_source/ClientHelpers.cpp's leaveAllChannels/removeChannel.
func (s *Server) removeClient(c *Client, reason string) {
	if reason == "" {
		reason = "Client Quit"
	}

	informed := map[uint64]struct{}{}
	quitMsg := Message{
		Prefix:  c.nickUhost(),
		Command: "QUIT",
		Params:  []string{reason},
	}
	for _, ch := range c.Channels {
		for id, member := range ch.Members {
			if member.ID == c.ID {
				continue
			}
			if _, done := informed[id]; done {
				continue
			}
			s.sendToClient(member, quitMsg)
			informed[id] = struct{}{}
		}
	}

	for name, ch := range c.Channels {
		ch.removeMember(c)
		if len(ch.Members) == 0 {
			delete(s.channels, name)
		}
	}
	c.Channels = map[string]*Channel{}

	if c.Nick != "" {
		delete(s.nicks, ircmsg.Fold(c.Nick))
	}

	delete(s.clients, c.ID)
	close(c.WriteChan)
}

// lookupNick resolves a nickname (any case) to its Client, if registered.
func (s *Server) lookupNick(nick string) (*Client, bool) {
	id, ok := s.nicks[ircmsg.Fold(nick)]
	if !ok {
		return nil, false
	}
	c, ok := s.clients[id]
	return c, ok
}

// lookupChannel resolves a channel name (any case) to its Channel.
func (s *Server) lookupChannel(name string) (*Channel, bool) {
	ch, ok := s.channels[ircmsg.Fold(name)]
	return ch, ok
}

func (s *Server) String() string {
	return fmt.Sprintf("%s (%d clients, %d channels)", s.Name, len(s.clients), len(s.channels))
}
