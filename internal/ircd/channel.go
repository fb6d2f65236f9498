package ircd

import "strconv"

// Channel holds all state for one active channel. See spec section 3.
//
// Grounded on original_source/Channel.hpp's field set (topic, topic-set
// flag, invite-only, topic-oper-only, pass-required, key, limited/limit,
// members, operators, invitees) -- horgh-catbox's own Channel types (both
// the ircd.go variant and the TS6 variant) implement a far smaller subset,
// neither tracking modes at all.
type Channel struct {
	// Name is stored case-folded; the Server's channel table is keyed the
	// same way (spec section 9, "fold keys on insertion").
	Name string

	Topic    string
	TopicSet bool

	InviteOnly    bool
	TopicOperOnly bool
	PassRequired  bool
	Key           string
	Limited       bool
	Limit         int

	// Members, Operators, and Invitees are keyed by Client.ID, mirroring the
	// spec's "keyed by socket handle" data model.
	Members   map[uint64]*Client
	Operators map[uint64]*Client
	Invitees  map[uint64]*Client
}

// NewChannel creates an empty channel. foldedName must already be
// case-folded.
func NewChannel(foldedName string) *Channel {
	return &Channel{
		Name:      foldedName,
		Members:   map[uint64]*Client{},
		Operators: map[uint64]*Client{},
		Invitees:  map[uint64]*Client{},
	}
}

// IsMember reports whether c is a member of the channel.
func (ch *Channel) IsMember(c *Client) bool {
	_, ok := ch.Members[c.ID]
	return ok
}

// IsOperator reports whether c is an operator of the channel.
func (ch *Channel) IsOperator(c *Client) bool {
	_, ok := ch.Operators[c.ID]
	return ok
}

// IsInvited reports whether c currently holds an invitation.
func (ch *Channel) IsInvited(c *Client) bool {
	_, ok := ch.Invitees[c.ID]
	return ok
}

// addMember adds c to the channel. If the channel was empty, c also becomes
// an operator (spec section 3: "first joiner of an empty channel is
// automatically an operator").
func (ch *Channel) addMember(c *Client) {
	firstJoiner := len(ch.Members) == 0
	ch.Members[c.ID] = c
	if firstJoiner {
		ch.Operators[c.ID] = c
	}
	delete(ch.Invitees, c.ID)
}

// removeMember removes c from the channel's members and operators. It does
// not delete the channel even if membership becomes empty; that is the
// Server's responsibility (spec section 3: "a Channel with empty Members is
// deleted by the Server").
func (ch *Channel) removeMember(c *Client) {
	delete(ch.Members, c.ID)
	delete(ch.Operators, c.ID)
}

// namesReply renders the RPL_NAMREPLY member list: operators prefixed with
// '@'.
func (ch *Channel) namesReply() string {
	s := ""
	for id, m := range ch.Members {
		if s != "" {
			s += " "
		}
		if _, isOp := ch.Operators[id]; isOp {
			s += "@"
		}
		s += m.Nick
	}
	return s
}

// modeString renders the channel's currently-set flags for RPL_CHANNELMODEIS
// (324), e.g. "+itkl".
func (ch *Channel) modeString() (modes string, params []string) {
	modes = "+"
	if ch.InviteOnly {
		modes += "i"
	}
	if ch.TopicOperOnly {
		modes += "t"
	}
	if ch.PassRequired {
		modes += "k"
		params = append(params, ch.Key)
	}
	if ch.Limited {
		modes += "l"
		params = append(params, strconv.Itoa(ch.Limit))
	}
	return modes, params
}
