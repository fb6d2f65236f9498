package ircd

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"time"

	"ircserv/internal/ircmsg"
)

// Client holds state about a single accepted connection, from the moment it
// is accepted until it is torn down. See spec section 3 ("Connection").
//
// Grounded on horgh-catbox/local_client.go's LocalClient (buffered
// WriteChan so the server loop never blocks on a slow reader) and
// horgh-catbox/ircd.go's simpler Client (Nick/User/RealName/Channels --
// the single-server field set, not the TS6 multi-server one).
type Client struct {
	// ID is this connection's identity, assigned at accept. It stands in for
	// the "socket handle" the spec's data model keys everything by.
	ID uint64

	conn net.Conn
	IP   string

	// WriteChan decouples the server's event loop from this connection's
	// socket: messageClient/sendToChannel never block on a slow client.
	WriteChan chan ircmsg.Message

	// Registration state (spec section 4.2 "Authentication").
	GotPass       bool
	GotNick       bool
	GotUser       bool
	Authenticated bool

	Pass     string
	Nick     string
	User     string
	Hostname string
	RealName string

	// RegisteredAt is set once authentication completes. WHOIS idle time is
	// reported as time since this, not since last activity -- an intentional
	// simplification carried over from spec section 9's resolved Open
	// Question.
	RegisteredAt time.Time

	// Channels the client currently has joined, keyed the same way the
	// Server's channel table is (case-folded name).
	Channels map[string]*Channel

	// WantsToQuit is set by a command handler once we've decided to tear this
	// connection down (explicit QUIT or a failed password); the event loop
	// checks it after each handled line and removes the client, passing
	// QuitReason to the QUIT broadcast.
	WantsToQuit bool
	QuitReason  string

	inBuf []byte
}

// NewClient wraps an accepted net.Conn.
func NewClient(id uint64, conn net.Conn) *Client {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	return &Client{
		ID:       id,
		conn:     conn,
		IP:       host,
		Hostname: host,
		// Buffered generously: the server must never block sending to a
		// client, per spec section 5 ("no locks... All socket errors inside
		// the handler path are caught at the Connection boundary").
		WriteChan: make(chan ircmsg.Message, 4096),
		Channels:  map[string]*Channel{},
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("%d %s", c.ID, c.conn.RemoteAddr())
}

// nickUhost renders the "nick!~user@host" prefix used on user-originated
// relayed lines (spec section 6).
func (c *Client) nickUhost() string {
	return fmt.Sprintf("%s!~%s@%s", c.Nick, c.User, c.Hostname)
}

// onChannel reports whether the client has joined the given (already
// case-folded) channel name.
func (c *Client) onChannel(foldedName string) (*Channel, bool) {
	ch, ok := c.Channels[foldedName]
	return ch, ok
}

// readLoop reads raw bytes from the socket, frames them on "\r\n", and hands
// each complete line to the server's event loop via lineChan. It never
// blocks the server: each connection has its own goroutine, the same shape
// as horgh-catbox/local_client.go's readLoop.
//
// Line framing itself -- append bytes to a buffer, repeatedly extract up to
// the first "\r\n", leave a partial line buffered -- is grounded on
// original_source/ClientCommunication.cpp's receive().
func (c *Client) readLoop(lineChan chan<- clientLine, deadChan chan<- deadClient) {
	buf := make([]byte, 512)
	for {
		n, err := c.conn.Read(buf)
		if n == 0 || err != nil {
			reason := "Connection reset"
			if err != nil {
				reason = err.Error()
			}
			deadChan <- deadClient{client: c, reason: reason}
			return
		}

		c.inBuf = append(c.inBuf, buf[:n]...)

		for {
			idx := indexCRLF(c.inBuf)
			if idx == -1 {
				break
			}
			line := string(c.inBuf[:idx])
			c.inBuf = c.inBuf[idx+2:]
			lineChan <- clientLine{client: c, line: line}
		}
	}
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// writeLoop drains WriteChan, encodes each message, and writes it to the
// socket. When the channel is closed it closes the underlying connection,
// the same shutdown order horgh-catbox/local_client.go's writeLoop uses.
func (c *Client) writeLoop(deadChan chan<- deadClient) {
	w := bufio.NewWriter(c.conn)
	for m := range c.WriteChan {
		line := m.Encode() + "\r\n"
		if _, err := w.WriteString(line); err != nil {
			deadChan <- deadClient{client: c, reason: err.Error()}
			continue
		}
		if err := w.Flush(); err != nil {
			deadChan <- deadClient{client: c, reason: err.Error()}
		}
	}
	if err := c.conn.Close(); err != nil {
		log.Printf("client %s: close: %s", c, err)
	}
}

// clientLine pairs a received line with the connection it came from.
type clientLine struct {
	client *Client
	line   string
}

// deadClient reports a connection that should be removed.
type deadClient struct {
	client *Client
	reason string
}
