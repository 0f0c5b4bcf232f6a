package command

import "strings"

// Tokens holds a command line split on whitespace.
type Tokens struct {
	// Key is the first word of the input, lowercased.
	Key string
	// All is every token, with the lowercased key at index 0.
	All []string
}

// Tokenize splits a line on whitespace and lowercases the command key.
//
// Postcondition: Returns Tokens; for empty or whitespace-only input Key is empty and All is nil.
func Tokenize(line string) Tokens {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Tokens{}
	}
	fields[0] = strings.ToLower(fields[0])
	return Tokens{Key: fields[0], All: fields}
}
