package ircmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldCase(t *testing.T) {
	assert.Equal(t, "alice", Fold("ALICE"))
	assert.Equal(t, "alice", Fold("Alice"))
}

func TestFoldScandinavian(t *testing.T) {
	assert.Equal(t, "[[chan]]", Fold("{{chan}}"))
	assert.Equal(t, "a\\b", Fold("A|B"))
	assert.Equal(t, "a^b", Fold("A~B"))
}

func TestEqualFold(t *testing.T) {
	assert.True(t, EqualFold("Alice", "ALICE"))
	assert.True(t, EqualFold("{nick}", "[NICK]"))
	assert.False(t, EqualFold("alice", "bob"))
}

func TestIsValidNick(t *testing.T) {
	assert.True(t, IsValidNick("alice"))
	assert.True(t, IsValidNick("Alice99"))
	assert.False(t, IsValidNick(""))
	assert.False(t, IsValidNick("9alice"))
	assert.False(t, IsValidNick("ali ce"))
	assert.False(t, IsValidNick("ali,ce"))
	assert.False(t, IsValidNick("ali:ce"))
}

func TestIsValidChannel(t *testing.T) {
	assert.True(t, IsValidChannel("#general"))
	assert.False(t, IsValidChannel("general"))
	assert.False(t, IsValidChannel("#gen eral"))
	assert.False(t, IsValidChannel(""))
}

func TestSplitCommaList(t *testing.T) {
	assert.Equal(t, []string{"#a", "#b", "#c"}, SplitCommaList("#a,#b,#c"))
	assert.Nil(t, SplitCommaList(""))
	assert.Equal(t, []string{"#a"}, SplitCommaList("#a"))
}
