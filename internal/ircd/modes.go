package ircd

import (
	"strconv"

	"ircserv/internal/ircmsg"
)

// modeMutation records one successfully-applied mode change, in order, for
// composing the broadcast line.
type modeMutation struct {
	sign   byte // '+' or '-'
	letter byte
	param  string // "" if this mode takes no parameter
}

// applyChannelModes implements the two-pass MODE state machine of spec
// section 4.4. The first pass validates that enough parameters were
// supplied (without mutating anything); the second pass applies each
// mutation in order, skipping ("eliding") any that turn out to be no-ops.
//
// Grounded directly on original_source/ClientHelpers.cpp's
// modeCheck/changeMode, translated from C++ iterator/erase manipulation to
// a Go slice-index walk. The "+l -1 drops the parameter and elides" and
// "-k wrong elides without clearing the key" rules are carried over exactly;
// the aggregated broadcast-parameter composition follows spec section 4.4's
// more precise statement (only parameters for changes that actually took
// effect are retained) rather than the original's looser reuse of the whole
// trailing params array.
//
// Returns the list of applied mutations (empty if none took effect) and an
// error numeric to send the caller (empty string if no error). A 441
// (target not on channel for +o/-o) does not abort the command -- spec
// section 4.4 says to "reply 441 and elide", not to discard the rest of the
// mode string -- so it is sent directly to issuer via s and the loop
// continues to the next letter.
func applyChannelModes(s *Server, ch *Channel, issuer *Client, modes string, params []string) (muts []modeMutation, errNumeric, errArg string) {
	// First pass: count required parameters and validate mode letters.
	required := 0
	setting := true
	for i := 0; i < len(modes); i++ {
		switch c := modes[i]; c {
		case '+':
			setting = true
		case '-':
			setting = false
		case 'i', 't':
			// no parameter
		case 'k', 'o':
			required++
		case 'l':
			if setting {
				required++
			}
		default:
			return nil, errUnknownMode, string(c)
		}
	}

	if len(params) < required {
		return nil, errNeedMoreParams, "MODE"
	}

	// Second pass: apply mutations in order.
	setting = true
	paramIdx := 0
	for i := 0; i < len(modes); i++ {
		c := modes[i]
		switch c {
		case '+':
			setting = true
			continue
		case '-':
			setting = false
			continue
		}

		switch c {
		case 'i':
			if ch.InviteOnly == setting {
				continue
			}
			ch.InviteOnly = setting
			muts = append(muts, modeMutation{sign(setting), 'i', ""})

		case 't':
			if ch.TopicOperOnly == setting {
				continue
			}
			ch.TopicOperOnly = setting
			muts = append(muts, modeMutation{sign(setting), 't', ""})

		case 'k':
			param := params[paramIdx]
			paramIdx++
			if setting {
				ch.Key = param
				ch.PassRequired = true
				muts = append(muts, modeMutation{'+', 'k', param})
			} else {
				if param != ch.Key {
					continue
				}
				ch.Key = ""
				ch.PassRequired = false
				muts = append(muts, modeMutation{'-', 'k', ""})
			}

		case 'l':
			if setting {
				param := params[paramIdx]
				paramIdx++
				n, err := strconv.Atoi(param)
				if err != nil || n < 0 {
					continue
				}
				ch.Limit = n
				ch.Limited = true
				muts = append(muts, modeMutation{'+', 'l', param})
			} else {
				if !ch.Limited {
					continue
				}
				ch.Limited = false
				muts = append(muts, modeMutation{'-', 'l', ""})
			}

		case 'o':
			nick := params[paramIdx]
			paramIdx++
			target, ok := lookupMember(ch, nick)
			if !ok {
				s.messageClient(issuer, errUserNotInChannel, []string{nick, ch.Name})
				continue
			}
			if setting {
				if ch.IsOperator(target) {
					continue
				}
				ch.Operators[target.ID] = target
				muts = append(muts, modeMutation{'+', 'o', target.Nick})
			} else {
				if !ch.IsOperator(target) {
					continue
				}
				delete(ch.Operators, target.ID)
				muts = append(muts, modeMutation{'-', 'o', target.Nick})
			}
		}
	}

	return muts, "", ""
}

func sign(setting bool) byte {
	if setting {
		return '+'
	}
	return '-'
}

func lookupMember(ch *Channel, nick string) (*Client, bool) {
	for _, m := range ch.Members {
		if ircmsg.EqualFold(m.Nick, nick) {
			return m, true
		}
	}
	return nil, false
}

// renderModeLine composes the aggregated "MODE chan <changes>" broadcast
// body from the list of mutations that actually took effect: signs are
// coalesced into runs, followed by the retained parameters in order, per
// spec section 4.4.
func renderModeLine(muts []modeMutation) (modeField string, params []string) {
	var lastSign byte
	for i, m := range muts {
		if i == 0 || m.sign != lastSign {
			modeField += string(m.sign)
			lastSign = m.sign
		}
		modeField += string(m.letter)
		if m.param != "" {
			params = append(params, m.param)
		}
	}
	return modeField, params
}
