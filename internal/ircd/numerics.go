package ircd

import "ircserv/internal/ircmsg"

// Numeric reply and error codes used by this server. See spec section 6.
const (
	rplWelcome       = "001"
	rplYourHost      = "002"
	rplCreated       = "003"
	rplMyInfo        = "004"
	rplUModeIs       = "221"
	rplList          = "322"
	rplListEnd       = "323"
	rplChannelModeIs = "324"
	rplNoTopic       = "331"
	rplTopic         = "332"
	rplInviting      = "341"
	rplWhoReply      = "352"
	rplNamReply      = "353"
	rplEndOfWho      = "315"
	rplEndOfNames    = "366"
	rplWhoisUser     = "311"
	rplWhoisServer   = "312"
	rplWhoisIdle     = "317"
	rplEndOfWhois    = "318"
	rplWhoisChannels = "319"
	rplTime          = "391"

	errNoSuchNick       = "401"
	errNoSuchServer     = "402"
	errNoSuchChannel    = "403"
	errCannotSendToChan = "404"
	errTooManyTargets   = "407"
	errNoOrigin         = "409"
	errNoRecipient      = "411"
	errNoTextToSend     = "412"
	errUnknownCommand   = "421"
	errNoNicknameGiven  = "431"
	errErroneousNick    = "432"
	errNicknameInUse    = "433"
	errUserNotInChannel = "441"
	errNotOnChannel     = "442"
	errUserOnChannel    = "443"
	errNotRegistered    = "451"
	errNeedMoreParams   = "461"
	errAlreadyRegistred = "462"
	errPasswdMismatch   = "464"
	errKeySet           = "467"
	errChannelIsFull    = "471"
	errUnknownMode      = "472"
	errInviteOnlyChan   = "473"
	errBadChannelKey    = "475"
	errChanOprivsNeeded = "482"
)

// messageClient sends a message from the server to c, prepending c's
// current nick (or "*" while it has none) to numeric replies. Grounded on
// horgh-catbox/ircd.go's messageClient.
func (s *Server) messageClient(c *Client, command string, params []string) {
	s.sendToClient(c, s.numericMessage(c, command, params, false))
}

// messageClientTrailing behaves like messageClient, but forces the last
// parameter to be encoded as a trailing segment. Used for reply bodies that
// are always-trailing fields by RFC convention regardless of their content
// (RPL_NAMREPLY, RPL_TOPIC, RPL_LIST, RPL_WHOISCHANNELS).
func (s *Server) messageClientTrailing(c *Client, command string, params []string) {
	s.sendToClient(c, s.numericMessage(c, command, params, true))
}

func (s *Server) numericMessage(c *Client, command string, params []string, trailing bool) ircmsg.Message {
	if isNumeric(command) {
		nick := "*"
		if c.Nick != "" {
			nick = c.Nick
		}
		newParams := make([]string, 0, len(params)+1)
		newParams = append(newParams, nick)
		newParams = append(newParams, params...)
		params = newParams
	}

	return ircmsg.Message{
		Prefix:   s.Name,
		Command:  command,
		Params:   params,
		Trailing: trailing,
	}
}

func isNumeric(command string) bool {
	if len(command) != 3 {
		return false
	}
	for _, r := range command {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
