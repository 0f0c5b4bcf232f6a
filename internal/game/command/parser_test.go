package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTokenize_Empty(t *testing.T) {
	tokens := Tokenize("")
	assert.Equal(t, "", tokens.Key)
	assert.Nil(t, tokens.All)

	tokens = Tokenize("   \t ")
	assert.Equal(t, "", tokens.Key)
}

func TestTokenize_Lowercase(t *testing.T) {
	tokens := Tokenize("NORTH")
	assert.Equal(t, "north", tokens.Key)
	assert.Equal(t, []string{"north"}, tokens.All)
}

func TestTokenize_ExtraWhitespace(t *testing.T) {
	tokens := Tokenize("  say   Hello   World  ")
	assert.Equal(t, "say", tokens.Key)
	assert.Equal(t, []string{"say", "Hello", "World"}, tokens.All)
}

func TestParseCommand_Valid(t *testing.T) {
	cases := []struct {
		line          string
		authenticated bool
		want          Event
	}{
		{"register user1 pass1", false, Event{RegisterValid, Args{ArgUsername: "user1", ArgPassword: "pass1"}}},
		{"connect user pass", false, Event{LoginValid, Args{ArgUsername: "user", ArgPassword: "pass"}}},
		{"REGISTER Bob Secret", false, Event{RegisterValid, Args{ArgUsername: "Bob", ArgPassword: "Secret"}}},
		{"help", false, Event{HelpValid, Args{}}},
		{"help", true, Event{HelpValid, Args{}}},
		{"quit", true, Event{LogoutValid, Args{}}},
		{"exit", true, Event{LogoutValid, Args{}}},
		{"logout", true, Event{LogoutValid, Args{}}},
		{"look", true, Event{LookValid, Args{}}},
		{"l", true, Event{LookValid, Args{}}},
		{"say hello there", true, Event{SayValid, Args{ArgMessage: "hello there"}}},
		{"say hello Jim", true, Event{SayValid, Args{ArgMessage: "hello Jim"}}},
		{"say", true, Event{SayValid, Args{ArgMessage: ""}}},
		{"north", true, Event{MoveValid, Args{ArgDirection: "north"}}},
		{"south", true, Event{MoveValid, Args{ArgDirection: "south"}}},
		{"east", true, Event{MoveValid, Args{ArgDirection: "east"}}},
		{"west", true, Event{MoveValid, Args{ArgDirection: "west"}}},
		{"n", true, Event{MoveValid, Args{ArgDirection: "north"}}},
		{"s", true, Event{MoveValid, Args{ArgDirection: "south"}}},
		{"e", true, Event{MoveValid, Args{ArgDirection: "east"}}},
		{"w", true, Event{MoveValid, Args{ArgDirection: "west"}}},
		{"N", true, Event{MoveValid, Args{ArgDirection: "north"}}},
		{"north 1", true, Event{MoveValid, Args{ArgDirection: "north"}}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseCommand(tc.line, tc.authenticated), "line %q auth=%v", tc.line, tc.authenticated)
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	cases := []struct {
		line          string
		authenticated bool
		want          EventKind
	}{
		{"register user1", false, RegisterInvalid},
		{"register a b c", false, RegisterInvalid},
		{"connect", false, LoginInvalid},
		{"quit", false, InvalidCommand},
		{"exit", false, InvalidCommand},
		{"logout", false, InvalidCommand},
		{"look", false, InvalidCommand},
		{"say hello Jim", false, InvalidCommand},
		{"north", false, InvalidCommand},
		{"register a b", true, InvalidCommand},
		{"connect a b", true, InvalidCommand},
		{"dance", true, InvalidCommand},
		{"", true, InvalidCommand},
		{"   ", false, InvalidCommand},
	}
	for _, tc := range cases {
		got := ParseCommand(tc.line, tc.authenticated)
		assert.Equal(t, tc.want, got.Kind, "line %q auth=%v", tc.line, tc.authenticated)
		assert.Empty(t, got.Args, "line %q auth=%v", tc.line, tc.authenticated)
	}
}

// Property: the say message is the remaining tokens joined by one space.
func TestPropertySayJoinsTokens(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9!?.]{1,8}`), 0, 6).Draw(t, "words")
		sep := rapid.SampledFrom([]string{" ", "  ", "\t", " \t "}).Draw(t, "sep")
		line := "say" + sep + strings.Join(words, sep)

		ev := ParseCommand(line, true)
		if ev.Kind != SayValid {
			t.Fatalf("kind = %v, want say_valid", ev.Kind)
		}
		if want := strings.Join(words, " "); ev.Args[ArgMessage] != want {
			t.Fatalf("message = %q, want %q", ev.Args[ArgMessage], want)
		}
	})
}

// Property: parsing never panics and always yields a known event kind.
func TestPropertyParseCommandTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.String().Draw(t, "line")
		auth := rapid.Bool().Draw(t, "auth")
		ev := ParseCommand(line, auth)
		if ev.Kind.String() == "unknown" {
			t.Fatalf("unknown event kind %d for %q", ev.Kind, line)
		}
		if ev.Args == nil {
			t.Fatalf("nil args for %q", line)
		}
	})
}

func TestPropertyTokenizeAlwaysLowercasesKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[A-Za-z]{1,20}`).Draw(t, "word")
		tokens := Tokenize(word)
		if tokens.Key != strings.ToLower(word) {
			t.Fatalf("key %q is not the lowercase of %q", tokens.Key, word)
		}
	})
}
