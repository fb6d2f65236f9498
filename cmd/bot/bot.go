package main

import (
	"bufio"
	"fmt"
	"log"
	"math/rand"
	"net"
	"strings"
	"time"

	"ircserv/internal/ircmsg"
)

// triviaChannel is the channel the bot joins and answers in. The companion
// bot (spec section 6) is not given a channel name on its command line, so
// one fixed channel is used.
const triviaChannel = "#trivia"

// bot is a minimal IRC client: it registers, joins triviaChannel, and
// answers every PRIVMSG posted there with a random line from its trivia
// file. Grounded on original_source/Bot/Bot.cpp's connect/register/loop
// shape, but supplemented with rejoin-after-kick (absent from the original)
// per spec section 6's "Rejoins after being kicked."
type bot struct {
	nick     string
	user     string
	password string
	lines    []string

	conn net.Conn
	r    *bufio.Scanner
}

func newBot(password string, lines []string) *bot {
	return &bot{
		nick:     "TriviaBot",
		user:     "triviabot",
		password: password,
		lines:    lines,
	}
}

func (b *bot) run(addr string) error {
	for {
		if err := b.connectAndRegister(addr); err != nil {
			return err
		}
		if err := b.loop(); err != nil {
			log.Printf("bot: disconnected: %s", err)
		}
		_ = b.conn.Close()
		time.Sleep(time.Second)
	}
}

func (b *bot) connectAndRegister(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	b.conn = conn
	b.r = bufio.NewScanner(conn)

	if b.password != "" {
		b.send(ircmsg.Message{Command: "PASS", Params: []string{b.password}})
	}
	b.send(ircmsg.Message{Command: "NICK", Params: []string{b.nick}})
	b.send(ircmsg.Message{Command: "USER", Params: []string{b.user, "0", "*", "trivia bot"}})
	b.send(ircmsg.Message{Command: "JOIN", Params: []string{triviaChannel}})
	return nil
}

// loop reads lines until the connection drops, then returns so run()
// reconnects. Being kicked from triviaChannel does not end the loop: the bot
// sends a JOIN for it on the same connection.
func (b *bot) loop() error {
	for b.r.Scan() {
		line := strings.TrimRight(b.r.Text(), "\r")
		if line == "" {
			continue
		}
		m := ircmsg.ParseLine(line)

		switch m.Command {
		case "PING":
			b.send(ircmsg.Message{Command: "PONG", Params: m.Params})

		case "KICK":
			if len(m.Params) >= 2 && m.Params[1] == b.nick {
				b.send(ircmsg.Message{Command: "JOIN", Params: []string{triviaChannel}})
			}

		case "PRIVMSG":
			if len(m.Params) < 2 || m.Params[0] != triviaChannel {
				continue
			}
			if m.SourceNick() == b.nick {
				continue
			}
			b.reply()
		}
	}
	return b.r.Err()
}

func (b *bot) reply() {
	if len(b.lines) == 0 {
		return
	}
	line := b.lines[rand.Intn(len(b.lines))]
	b.send(ircmsg.Message{Command: "PRIVMSG", Params: []string{triviaChannel, line}})
}

func (b *bot) send(m ircmsg.Message) {
	_, err := fmt.Fprintf(b.conn, "%s\r\n", m.Encode())
	if err != nil {
		log.Printf("bot: write: %s", err)
	}
}
