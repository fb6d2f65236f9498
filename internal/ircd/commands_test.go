package ircd

import (
	"testing"

	"ircserv/internal/ircmsg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// register adds c to the server's client/nick tables directly, bypassing
// the accept/registration handshake, for tests that only need to exercise a
// command handler against already-authenticated state.
func register(s *Server, c *Client) {
	c.Authenticated = true
	s.clients[c.ID] = c
	s.nicks[ircmsg.Fold(c.Nick)] = c.ID
}

func drain(c *Client) []ircmsg.Message {
	var out []ircmsg.Message
	for {
		select {
		case m := <-c.WriteChan:
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestRegistrationHandshake(t *testing.T) {
	s := newTestServer()
	c := newTestClientWithChan(1, "")
	s.clients[c.ID] = c

	cmdNick(s, c, ircmsg.Message{Command: "NICK", Params: []string{"alice"}})
	cmdUser(s, c, ircmsg.Message{Command: "USER", Params: []string{"alice", "0", "*", "Alice A"}})

	require.True(t, c.Authenticated)
	msgs := drain(c)
	require.NotEmpty(t, msgs)
	assert.Equal(t, rplWelcome, msgs[0].Command)
}

func TestNickRejectsDuplicate(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	register(s, alice)

	bob := newTestClientWithChan(2, "")
	s.clients[bob.ID] = bob
	cmdNick(s, bob, ircmsg.Message{Command: "NICK", Params: []string{"Alice"}})

	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, errNicknameInUse, msgs[0].Command)
}

func TestJoinCreatesChannelAndGrantsOperator(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	register(s, alice)

	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})

	ch, ok := s.lookupChannel("#chan")
	require.True(t, ok)
	assert.True(t, ch.IsMember(alice))
	assert.True(t, ch.IsOperator(alice))
}

func TestJoinInviteOnlyRejectsWithoutInvite(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	register(s, alice)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)

	ch, _ := s.lookupChannel("#chan")
	ch.InviteOnly = true

	bob := newTestClientWithChan(2, "bob")
	register(s, bob)
	cmdJoin(s, bob, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})

	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, errInviteOnlyChan, msgs[0].Command)
	assert.False(t, ch.IsMember(bob))
}

func TestPartRemovesMemberAndDestroysEmptyChannel(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	register(s, alice)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)

	cmdPart(s, alice, ircmsg.Message{Command: "PART", Params: []string{"#chan"}})

	_, ok := s.lookupChannel("#chan")
	assert.False(t, ok)
	assert.Empty(t, alice.Channels)
}

func TestPrivmsgToChannelExcludesSender(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	bob := newTestClientWithChan(2, "bob")
	register(s, alice)
	register(s, bob)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	cmdJoin(s, bob, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)
	drain(bob)

	cmdPrivmsg(s, alice, ircmsg.Message{Command: "PRIVMSG", Params: []string{"#chan", "hi"}})

	assert.Empty(t, drain(alice))
	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, "PRIVMSG", msgs[0].Command)
	assert.Equal(t, []string{"#chan", "hi"}, msgs[0].Params)
}

func TestPrivmsgToChannelRequiresMembership(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	register(s, alice)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)

	bob := newTestClientWithChan(2, "bob")
	register(s, bob)
	cmdPrivmsg(s, bob, ircmsg.Message{Command: "PRIVMSG", Params: []string{"#chan", "hi"}})

	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, errCannotSendToChan, msgs[0].Command)
}

func TestKickRequiresOperator(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	bob := newTestClientWithChan(2, "bob")
	register(s, alice)
	register(s, bob)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	cmdJoin(s, bob, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)
	drain(bob)

	// bob is not an operator, so bob's KICK on alice must fail.
	cmdKick(s, bob, ircmsg.Message{Command: "KICK", Params: []string{"#chan", "alice"}})

	ch, _ := s.lookupChannel("#chan")
	assert.True(t, ch.IsMember(alice))
	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, errChanOprivsNeeded, msgs[0].Command)
}

func TestKickRemovesTarget(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	bob := newTestClientWithChan(2, "bob")
	register(s, alice)
	register(s, bob)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	cmdJoin(s, bob, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)
	drain(bob)

	cmdKick(s, alice, ircmsg.Message{Command: "KICK", Params: []string{"#chan", "bob", "bye"}})

	ch, _ := s.lookupChannel("#chan")
	assert.False(t, ch.IsMember(bob))
	assert.Empty(t, bob.Channels)
}

func TestTopicOperOnlyGatesSet(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	bob := newTestClientWithChan(2, "bob")
	register(s, alice)
	register(s, bob)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	cmdJoin(s, bob, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)
	drain(bob)

	ch, _ := s.lookupChannel("#chan")
	ch.TopicOperOnly = true

	cmdTopic(s, bob, ircmsg.Message{Command: "TOPIC", Params: []string{"#chan", "new topic"}})
	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, errChanOprivsNeeded, msgs[0].Command)
	assert.False(t, ch.TopicSet)
}

func TestModeViewWithNoParamsReturnsCurrentModes(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	register(s, alice)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)

	cmdMode(s, alice, ircmsg.Message{Command: "MODE", Params: []string{"#chan"}})
	msgs := drain(alice)
	require.Len(t, msgs, 1)
	assert.Equal(t, rplChannelModeIs, msgs[0].Command)
}

func TestQuitBroadcastsToChannelMates(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	bob := newTestClientWithChan(2, "bob")
	register(s, alice)
	register(s, bob)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	cmdJoin(s, bob, ircmsg.Message{Command: "JOIN", Params: []string{"#chan"}})
	drain(alice)
	drain(bob)

	cmdQuit(s, alice, ircmsg.Message{Command: "QUIT", Params: []string{"bye"}})
	require.True(t, alice.WantsToQuit)
	s.removeClient(alice, alice.QuitReason)

	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, "QUIT", msgs[0].Command)
	assert.Equal(t, []string{"bye"}, msgs[0].Params)

	_, stillThere := s.lookupChannel("#chan")
	assert.True(t, stillThere)
	assert.NotContains(t, s.clients, alice.ID)
}

func TestQuitDoesNotDoubleBroadcastAcrossSharedChannels(t *testing.T) {
	s := newTestServer()
	alice := newTestClientWithChan(1, "alice")
	bob := newTestClientWithChan(2, "bob")
	register(s, alice)
	register(s, bob)
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#one"}})
	cmdJoin(s, bob, ircmsg.Message{Command: "JOIN", Params: []string{"#one"}})
	cmdJoin(s, alice, ircmsg.Message{Command: "JOIN", Params: []string{"#two"}})
	cmdJoin(s, bob, ircmsg.Message{Command: "JOIN", Params: []string{"#two"}})
	drain(alice)
	drain(bob)

	s.removeClient(alice, "gone")

	msgs := drain(bob)
	require.Len(t, msgs, 1)
	assert.Equal(t, "QUIT", msgs[0].Command)
}
