// Package ircmsg provides the line-oriented encoding and tokenizing used on
// the wire between clients and the server. See spec section 4.2 and 6.
package ircmsg

import "strings"

// MaxLineLength is the maximum protocol message line length, including the
// trailing CRLF.
const MaxLineLength = 512

// Message holds one parsed protocol line.
type Message struct {
	// Prefix is the source of the message, without the leading ':'. Blank for
	// client-originated lines.
	Prefix string

	// Command is the IRC command or three-digit numeric. Always upper-cased.
	Command string

	// Params holds the message parameters in order. The last element may
	// contain spaces if it came from a trailing (" :") parameter.
	Params []string

	// Trailing forces the last parameter to be encoded as a trailing
	// (" :"-introduced) segment even when it happens to contain neither a
	// space nor a leading colon. Some reply bodies -- the RPL_NAMREPLY (353)
	// member list, RPL_TOPIC (332), RPL_LIST (322), RPL_WHOISCHANNELS (319)
	// -- are always-trailing fields by convention regardless of content, so
	// a single-word value (e.g. one name, one short topic) must still carry
	// the leading ':'.
	Trailing bool
}

// ParseLine tokenizes a single line with no CRLF attached (the caller strips
// that while framing, see internal/ircd/client.go).
//
// Per spec section 4.3: split on spaces up to the first " :" occurrence;
// everything after " :" is one trailing parameter with spaces preserved. The
// first token is upper-cased for dispatch. Blank lines return a zero-value
// Message with an empty Command; callers must check for that and ignore it.
//
// Unlike a strict RFC 2812 decoder, this does not reject malformed input: it
// is deliberately lenient, since spec section 4.2 requires partial/odd input
// to be tolerated rather than treated as a protocol error.
func ParseLine(line string) Message {
	if len(line) == 0 {
		return Message{}
	}

	var msg Message

	if line[0] == ':' {
		sp := strings.IndexByte(line, ' ')
		if sp == -1 {
			msg.Prefix = line[1:]
			return msg
		}
		msg.Prefix = line[1:sp]
		line = line[sp+1:]
	}

	var trailing string
	hasTrailing := false
	if idx := strings.Index(line, " :"); idx != -1 {
		trailing = line[idx+2:]
		hasTrailing = true
		line = line[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		if !hasTrailing {
			return Message{}
		}
		// A bare ":trailing" with no command is not meaningful.
		return Message{}
	}

	msg.Command = strings.ToUpper(fields[0])
	msg.Params = fields[1:]
	if hasTrailing {
		msg.Params = append(msg.Params, trailing)
	}

	return msg
}

// Encode renders the message as a wire line, without the trailing CRLF (the
// caller appends that; see Client.writeLoop in internal/ircd/client.go).
func (m Message) Encode() string {
	var b strings.Builder

	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}

	b.WriteString(m.Command)

	for i, p := range m.Params {
		b.WriteByte(' ')
		last := i == len(m.Params)-1
		if last && (m.Trailing || p == "" || strings.ContainsRune(p, ' ') || strings.HasPrefix(p, ":")) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}

	return b.String()
}

// SourceNick extracts the nickname portion of a "nick!user@host" prefix. It
// returns "" if the prefix has no '!' (e.g. a server-name prefix).
func (m Message) SourceNick() string {
	idx := strings.IndexByte(m.Prefix, '!')
	if idx == -1 {
		return ""
	}
	return m.Prefix[:idx]
}
