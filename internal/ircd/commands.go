package ircd

import (
	"strconv"
	"strings"
	"time"

	"ircserv/internal/ircmsg"
)

// commandFunc handles one parsed command line for one client.
type commandFunc func(s *Server, c *Client, m ircmsg.Message)

// preAuthCommands may be used before registration completes (spec section
// 4.2's three-step PASS/NICK/USER handshake gate).
var preAuthCommands = map[string]bool{
	"PASS": true,
	"NICK": true,
	"USER": true,
	"CAP":  true,
	"QUIT": true,
}

// commands is the dispatch table, a package-level map literal, the way spec section 9's
// REDESIGN FLAG asks for (a table instead of an if/else chain), grounded on
// horgh-catbox/ircd.go's own commands map.
var commands = map[string]commandFunc{
	"PASS":    cmdPass,
	"NICK":    cmdNick,
	"USER":    cmdUser,
	"CAP":     cmdCap,
	"PING":    cmdPing,
	"PONG":    cmdPong,
	"QUIT":    cmdQuit,
	"WHOIS":   cmdWhois,
	"PRIVMSG": cmdPrivmsg,
	"NOTICE":  cmdNotice,
	"JOIN":    cmdJoin,
	"PART":    cmdPart,
	"KICK":    cmdKick,
	"INVITE":  cmdInvite,
	"TOPIC":   cmdTopic,
	"MODE":    cmdMode,
	"LIST":    cmdList,
	"NAMES":   cmdNames,
	"TIME":    cmdTime,
}

// handleLine parses one raw line from c and dispatches it. It is the single
// entry point called from Server.run for every lineChan receipt.
//
// Grounded on horgh-catbox/ircd.go's Server.handleMessage: parse, check the
// pre-auth gate, look up and invoke the handler, 421 on unknown command.
func (s *Server) handleLine(c *Client, line string) {
	m := ircmsg.ParseLine(line)
	if m.Command == "" {
		return
	}

	if !c.Authenticated && !preAuthCommands[m.Command] {
		s.messageClient(c, errNotRegistered, []string{"You have not registered"})
		return
	}

	fn, ok := commands[m.Command]
	if !ok {
		s.messageClient(c, errUnknownCommand, []string{m.Command, "Unknown command"})
		return
	}

	fn(s, c, m)
}

func cmdPass(s *Server, c *Client, m ircmsg.Message) {
	if c.Authenticated {
		s.messageClient(c, errAlreadyRegistred, []string{"You may not reregister"})
		return
	}
	if len(m.Params) < 1 {
		s.messageClient(c, errNeedMoreParams, []string{"PASS"})
		return
	}
	c.Pass = m.Params[0]
	c.GotPass = true
	s.maybeRegister(c)
}

func cmdNick(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) < 1 || m.Params[0] == "" {
		s.messageClient(c, errNoNicknameGiven, []string{"No nickname given"})
		return
	}
	nick := m.Params[0]
	if !ircmsg.IsValidNick(nick) {
		s.messageClient(c, errErroneousNick, []string{nick, "Erroneous nickname"})
		return
	}
	folded := ircmsg.Fold(nick)
	if existingID, taken := s.nicks[folded]; taken && existingID != c.ID {
		s.messageClient(c, errNicknameInUse, []string{nick, "Nickname is already in use"})
		return
	}

	oldNick := c.Nick
	wasAuthenticated := c.Authenticated

	if c.Nick != "" {
		delete(s.nicks, ircmsg.Fold(c.Nick))
	}
	s.nicks[folded] = c.ID
	c.Nick = nick
	c.GotNick = true

	if wasAuthenticated {
		// Broadcast the change once per shared channel-mate, plus to the
		// client itself, following the same dedup shape as removeClient's
		// QUIT broadcast.
		nickMsg := ircmsg.Message{
			Prefix:  oldNick + "!~" + c.User + "@" + c.Hostname,
			Command: "NICK",
			Params:  []string{nick},
		}
		informed := map[uint64]struct{}{c.ID: {}}
		s.sendToClient(c, nickMsg)
		for _, ch := range c.Channels {
			for id, member := range ch.Members {
				if _, done := informed[id]; done {
					continue
				}
				s.sendToClient(member, nickMsg)
				informed[id] = struct{}{}
			}
		}
		return
	}

	s.maybeRegister(c)
}

func cmdUser(s *Server, c *Client, m ircmsg.Message) {
	if c.Authenticated {
		s.messageClient(c, errAlreadyRegistred, []string{"You may not reregister"})
		return
	}
	if len(m.Params) < 4 {
		s.messageClient(c, errNeedMoreParams, []string{"USER"})
		return
	}
	c.User = m.Params[0]
	c.RealName = m.Params[3]
	c.GotUser = true
	s.maybeRegister(c)
}

// maybeRegister completes registration once PASS (if required), NICK, and
// USER have all been received, per spec section 4.2.
func (s *Server) maybeRegister(c *Client) {
	if c.Authenticated || !c.GotNick || !c.GotUser {
		return
	}
	if s.Password != "" {
		if !c.GotPass || c.Pass != s.Password {
			s.messageClient(c, errPasswdMismatch, []string{"Password incorrect"})
			c.WantsToQuit = true
			c.QuitReason = "Bad password"
			return
		}
	}

	c.Authenticated = true
	c.RegisteredAt = time.Now()

	s.messageClient(c, rplWelcome, []string{"Welcome to the Internet Relay Network " + c.nickUhost()})
	s.messageClient(c, rplYourHost, []string{"Your host is " + s.Name + ", running version ircserv-1.0"})
	s.messageClient(c, rplCreated, []string{"This server was created " + s.Created.Format(time.RFC1123)})
	s.messageClient(c, rplMyInfo, []string{s.Name, "ircserv-1.0", "o", "itkol"})
}

// cmdCap replies to a bare capability negotiation probe with an empty list,
// enough for clients that unconditionally send "CAP LS" before registering
// (spec section 9's supplemented CAP support).
func cmdCap(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) == 0 {
		return
	}
	switch strings.ToUpper(m.Params[0]) {
	case "LS":
		target := "*"
		if c.Nick != "" {
			target = c.Nick
		}
		s.sendToClient(c, ircmsg.Message{Prefix: s.Name, Command: "CAP", Params: []string{target, "LS", ""}})
	case "END":
		// Nothing pending; registration proceeds independently of CAP.
	}
}

// cmdPing implements spec section 4.3's "PING t [s]": reply PONG :t, or
// PONG s t when a second (server) argument names this server; 402 when it
// names anything else, since this server never federates.
func cmdPing(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) == 0 || m.Params[0] == "" {
		s.messageClient(c, errNoOrigin, []string{"No origin specified"})
		return
	}
	token := m.Params[0]
	if len(m.Params) > 1 {
		if m.Params[1] != s.Name {
			s.messageClient(c, errNoSuchServer, []string{m.Params[1], "No such server"})
			return
		}
		s.sendToClient(c, ircmsg.Message{Prefix: s.Name, Command: "PONG", Params: []string{s.Name, token}})
		return
	}
	s.sendToClient(c, ircmsg.Message{Prefix: s.Name, Command: "PONG", Params: []string{token}})
}

// cmdPong is a no-op: this server never sends its own PING probes to detect
// dead clients (read errors and closed sockets already surface through
// deadChan), so there is nothing to correlate a PONG against.
func cmdPong(s *Server, c *Client, m ircmsg.Message) {}

func cmdQuit(s *Server, c *Client, m ircmsg.Message) {
	reason := "Client Quit"
	if len(m.Params) > 0 {
		reason = m.Params[0]
	}
	c.WantsToQuit = true
	c.QuitReason = reason
}

func cmdWhois(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) < 1 {
		s.messageClient(c, errNoSuchNick, []string{"", "No such nick/channel"})
		return
	}
	target, ok := s.lookupNick(m.Params[0])
	if !ok {
		s.messageClient(c, errNoSuchNick, []string{m.Params[0], "No such nick/channel"})
		return
	}

	s.messageClient(c, rplWhoisUser, []string{target.Nick, "~" + target.User, target.Hostname, "*", target.RealName})
	s.messageClient(c, rplWhoisServer, []string{target.Nick, s.Name, "ircserv"})

	// Lists the target's own channels whenever the target is on any; no 319
	// is sent for a target on no channel. This server does not filter by the
	// caller's shared membership (a resolved Open Question; see DESIGN.md).
	var chans []string
	for _, ch := range target.Channels {
		name := ch.Name
		if ch.IsOperator(target) {
			name = "@" + name
		}
		chans = append(chans, name)
	}
	if len(chans) > 0 {
		s.messageClientTrailing(c, rplWhoisChannels, []string{target.Nick, strings.Join(chans, " ")})
	}

	idle := strconv.FormatInt(int64(time.Since(target.RegisteredAt).Seconds()), 10)
	s.messageClient(c, rplWhoisIdle, []string{target.Nick, idle, "seconds idle"})
	s.messageClient(c, rplEndOfWhois, []string{target.Nick, "End of /WHOIS list"})
}

func cmdPrivmsg(s *Server, c *Client, m ircmsg.Message) {
	sendMessage(s, c, m, "PRIVMSG")
}

func cmdNotice(s *Server, c *Client, m ircmsg.Message) {
	sendMessage(s, c, m, "NOTICE")
}

// sendMessage implements PRIVMSG/NOTICE to either a nick or a channel, per
// spec section 4.3's command table.
func sendMessage(s *Server, c *Client, m ircmsg.Message, command string) {
	if len(m.Params) < 1 {
		s.messageClient(c, errNoRecipient, []string{"No recipient given (" + command + ")"})
		return
	}
	if len(m.Params) < 2 || m.Params[1] == "" {
		s.messageClient(c, errNoTextToSend, []string{"No text to send"})
		return
	}

	target := m.Params[0]
	text := m.Params[1]
	out := ircmsg.Message{Prefix: c.nickUhost(), Command: command, Params: []string{target, text}}

	if target != "" && isChannelPrefix(target[0]) {
		ch, ok := s.lookupChannel(target)
		if !ok {
			s.messageClient(c, errNoSuchChannel, []string{target, "No such channel"})
			return
		}
		if !ch.IsMember(c) {
			s.messageClient(c, errCannotSendToChan, []string{target, "Cannot send to channel"})
			return
		}
		s.sendToChannel(ch, out, c)
		return
	}

	recipient, ok := s.lookupNick(target)
	if !ok {
		s.messageClient(c, errNoSuchNick, []string{target, "No such nick/channel"})
		return
	}
	s.sendToClient(recipient, out)
}

// isChannelPrefix reports whether b marks target as a channel name, per
// spec section 4.3's "#&+!" prefix set. Only "#" is ever actually
// allocatable (ircmsg.IsValidChannel requires it), but PRIVMSG routing
// recognizes the full RFC set of channel sigils before falling through to a
// nick lookup.
func isChannelPrefix(b byte) bool {
	switch b {
	case '#', '&', '+', '!':
		return true
	default:
		return false
	}
}

func cmdJoin(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) < 1 {
		s.messageClient(c, errNeedMoreParams, []string{"JOIN"})
		return
	}

	names := ircmsg.SplitCommaList(m.Params[0])

	// "JOIN 0" is a special case meaning "part every channel" (spec section
	// 4.3), not a literal channel named "0".
	if len(names) == 1 && names[0] == "0" {
		for name, ch := range c.Channels {
			partMsg := ircmsg.Message{Prefix: c.nickUhost(), Command: "PART", Params: []string{ch.Name, "leaving all channels"}}
			s.sendToChannel(ch, partMsg, nil)
			ch.removeMember(c)
			if len(ch.Members) == 0 {
				delete(s.channels, name)
			}
		}
		c.Channels = map[string]*Channel{}
		return
	}

	var keys []string
	if len(m.Params) > 1 {
		keys = ircmsg.SplitCommaList(m.Params[1])
	}

	for i, name := range names {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}
		joinOne(s, c, name, key)
	}
}

// joinOne implements the JOIN detail of spec section 4.5: validate the name,
// create the channel on first use, gate on invite-only/key/limit, add the
// member, broadcast JOIN, and reply with the topic and NAMES list.
func joinOne(s *Server, c *Client, name, key string) {
	if !ircmsg.IsValidChannel(name) {
		s.messageClient(c, errNoSuchChannel, []string{name, "No such channel"})
		return
	}

	folded := ircmsg.Fold(name)
	ch, exists := s.channels[folded]
	if !exists {
		ch = NewChannel(folded)
		s.channels[folded] = ch
	} else {
		if ch.IsMember(c) {
			return
		}
		if ch.InviteOnly && !ch.IsInvited(c) {
			s.messageClient(c, errInviteOnlyChan, []string{name, "Cannot join channel (+i)"})
			return
		}
		if ch.PassRequired && key != ch.Key {
			s.messageClient(c, errBadChannelKey, []string{name, "Cannot join channel (+k)"})
			return
		}
		if ch.Limited && len(ch.Members) >= ch.Limit {
			s.messageClient(c, errChannelIsFull, []string{name, "Cannot join channel (+l)"})
			return
		}
	}

	ch.addMember(c)
	c.Channels[folded] = ch

	joinMsg := ircmsg.Message{Prefix: c.nickUhost(), Command: "JOIN", Params: []string{name}}
	s.sendToChannel(ch, joinMsg, nil)

	if ch.TopicSet {
		s.messageClientTrailing(c, rplTopic, []string{ch.Name, ch.Topic})
	} else {
		s.messageClient(c, rplNoTopic, []string{ch.Name, "No topic is set"})
	}

	s.messageClientTrailing(c, rplNamReply, []string{"=", ch.Name, ch.namesReply()})
	s.messageClient(c, rplEndOfNames, []string{ch.Name, "End of /NAMES list"})
}

func cmdPart(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) < 1 {
		s.messageClient(c, errNeedMoreParams, []string{"PART"})
		return
	}
	reason := ""
	if len(m.Params) > 1 {
		reason = m.Params[1]
	}

	for _, name := range ircmsg.SplitCommaList(m.Params[0]) {
		ch, ok := s.lookupChannel(name)
		if !ok {
			s.messageClient(c, errNoSuchChannel, []string{name, "No such channel"})
			continue
		}
		if !ch.IsMember(c) {
			s.messageClient(c, errNotOnChannel, []string{name, "You're not on that channel"})
			continue
		}

		partMsg := ircmsg.Message{Prefix: c.nickUhost(), Command: "PART", Params: []string{ch.Name, reason}}
		s.sendToChannel(ch, partMsg, nil)

		ch.removeMember(c)
		delete(c.Channels, ch.Name)
		if len(ch.Members) == 0 {
			delete(s.channels, ch.Name)
		}
	}
}

func cmdKick(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) < 2 {
		s.messageClient(c, errNeedMoreParams, []string{"KICK"})
		return
	}

	channels := ircmsg.SplitCommaList(m.Params[0])
	nicks := ircmsg.SplitCommaList(m.Params[1])
	reason := c.Nick
	if len(m.Params) > 2 {
		reason = m.Params[2]
	}

	// spec section 9's "KICK pairing rule", grounded on
	// original_source/ClientCommands.cpp's kick(): a syntactically correct
	// KICK carries either one channel applied to every nick, or exactly as
	// many channels as nicks (paired 1:1). Anything else is 461.
	if len(channels) != 1 && len(channels) != len(nicks) {
		s.messageClient(c, errNeedMoreParams, []string{"KICK"})
		return
	}

	for i, nick := range nicks {
		chName := channels[0]
		if len(channels) > 1 {
			chName = channels[i]
		}

		ch, ok := s.lookupChannel(chName)
		if !ok {
			s.messageClient(c, errNoSuchChannel, []string{chName, "No such channel"})
			continue
		}
		if !ch.IsOperator(c) {
			s.messageClient(c, errChanOprivsNeeded, []string{chName, "You're not channel operator"})
			continue
		}
		target, ok := lookupMember(ch, nick)
		if !ok {
			s.messageClient(c, errUserNotInChannel, []string{nick, chName})
			continue
		}

		kickMsg := ircmsg.Message{Prefix: c.nickUhost(), Command: "KICK", Params: []string{ch.Name, target.Nick, reason}}
		s.sendToChannel(ch, kickMsg, nil)
		s.sendToClient(target, kickMsg)

		ch.removeMember(target)
		delete(target.Channels, ch.Name)
		if len(ch.Members) == 0 {
			delete(s.channels, ch.Name)
		}
	}
}

func cmdInvite(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) < 2 {
		s.messageClient(c, errNeedMoreParams, []string{"INVITE"})
		return
	}
	nick, chName := m.Params[0], m.Params[1]

	target, ok := s.lookupNick(nick)
	if !ok {
		s.messageClient(c, errNoSuchNick, []string{nick, "No such nick/channel"})
		return
	}
	ch, ok := s.lookupChannel(chName)
	if !ok {
		s.messageClient(c, errNoSuchChannel, []string{chName, "No such channel"})
		return
	}
	if !ch.IsMember(c) {
		s.messageClient(c, errNotOnChannel, []string{chName, "You're not on that channel"})
		return
	}
	if ch.InviteOnly && !ch.IsOperator(c) {
		s.messageClient(c, errChanOprivsNeeded, []string{chName, "You're not channel operator"})
		return
	}
	if ch.IsMember(target) {
		s.messageClient(c, errUserOnChannel, []string{nick, chName, "is already on channel"})
		return
	}

	ch.Invitees[target.ID] = target
	s.messageClient(c, rplInviting, []string{target.Nick, ch.Name})
	s.sendToClient(target, ircmsg.Message{Prefix: c.nickUhost(), Command: "INVITE", Params: []string{target.Nick, ch.Name}})
}

func cmdTopic(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) < 1 {
		s.messageClient(c, errNeedMoreParams, []string{"TOPIC"})
		return
	}
	chName := m.Params[0]
	ch, ok := s.lookupChannel(chName)
	if !ok {
		s.messageClient(c, errNoSuchChannel, []string{chName, "No such channel"})
		return
	}
	if !ch.IsMember(c) {
		s.messageClient(c, errNotOnChannel, []string{chName, "You're not on that channel"})
		return
	}

	if len(m.Params) < 2 {
		if ch.TopicSet {
			s.messageClientTrailing(c, rplTopic, []string{ch.Name, ch.Topic})
		} else {
			s.messageClient(c, rplNoTopic, []string{ch.Name, "No topic is set"})
		}
		return
	}

	if ch.TopicOperOnly && !ch.IsOperator(c) {
		s.messageClient(c, errChanOprivsNeeded, []string{chName, "You're not channel operator"})
		return
	}

	ch.Topic = m.Params[1]
	ch.TopicSet = true
	s.sendToChannel(ch, ircmsg.Message{Prefix: c.nickUhost(), Command: "TOPIC", Params: []string{ch.Name, ch.Topic}, Trailing: true}, nil)
}

func cmdMode(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) < 1 {
		s.messageClient(c, errNeedMoreParams, []string{"MODE"})
		return
	}
	chName := m.Params[0]
	ch, ok := s.lookupChannel(chName)
	if !ok {
		s.messageClient(c, errNoSuchChannel, []string{chName, "No such channel"})
		return
	}

	if len(m.Params) < 2 {
		modes, params := ch.modeString()
		reply := append([]string{ch.Name, modes}, params...)
		s.messageClient(c, rplChannelModeIs, reply)
		return
	}

	if !ch.IsOperator(c) {
		s.messageClient(c, errChanOprivsNeeded, []string{chName, "You're not channel operator"})
		return
	}

	muts, errNumeric, errArg := applyChannelModes(s, ch, c, m.Params[1], m.Params[2:])
	if errNumeric != "" {
		s.messageClient(c, errNumeric, []string{errArg, "MODE"})
		return
	}
	if len(muts) == 0 {
		return
	}

	modeField, params := renderModeLine(muts)
	out := append([]string{ch.Name, modeField}, params...)
	s.sendToChannel(ch, ircmsg.Message{Prefix: c.nickUhost(), Command: "MODE", Params: out}, nil)
}

// cmdList implements spec section 4.3's "LIST [chans]", grounded on
// original_source/ClientCommands.cpp's list(): an optional trailing
// argument naming a server other than this one is rejected with 402, since
// this server never federates.
func cmdList(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) > 1 && m.Params[1] != s.Name {
		s.messageClient(c, errNoSuchServer, []string{m.Params[1], "No such server"})
		return
	}

	if len(m.Params) < 1 {
		for _, ch := range s.channels {
			s.messageClientTrailing(c, rplList, []string{ch.Name, strconv.Itoa(len(ch.Members)), ch.Topic})
		}
		s.messageClient(c, rplListEnd, []string{"End of /LIST"})
		return
	}

	for _, name := range ircmsg.SplitCommaList(m.Params[0]) {
		if ch, ok := s.lookupChannel(name); ok {
			s.messageClientTrailing(c, rplList, []string{ch.Name, strconv.Itoa(len(ch.Members)), ch.Topic})
		}
	}
	s.messageClient(c, rplListEnd, []string{"End of /LIST"})
}

func cmdNames(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) > 1 && m.Params[1] != s.Name {
		s.messageClient(c, errNoSuchServer, []string{m.Params[1], "No such server"})
		return
	}

	if len(m.Params) < 1 {
		for _, ch := range s.channels {
			s.messageClientTrailing(c, rplNamReply, []string{"=", ch.Name, ch.namesReply()})
		}
		s.messageClient(c, rplEndOfNames, []string{"*", "End of /NAMES list"})
		return
	}
	for _, name := range ircmsg.SplitCommaList(m.Params[0]) {
		ch, ok := s.lookupChannel(name)
		if !ok {
			continue
		}
		s.messageClientTrailing(c, rplNamReply, []string{"=", ch.Name, ch.namesReply()})
		s.messageClient(c, rplEndOfNames, []string{ch.Name, "End of /NAMES list"})
	}
}

func cmdTime(s *Server, c *Client, m ircmsg.Message) {
	if len(m.Params) > 0 && m.Params[0] != s.Name {
		s.messageClient(c, errNoSuchServer, []string{m.Params[0], "No such server"})
		return
	}
	s.messageClient(c, rplTime, []string{s.Name, time.Now().Format(time.RFC1123)})
}
