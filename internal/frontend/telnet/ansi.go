// Package telnet provides a Telnet front end for the MUD: line-based input,
// IAC filtering, and reply markup rendered as ANSI styling.
package telnet

import "strings"

// ANSI escape codes for the styles reply markup uses.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Italic = "\033[3m"
)

// markup maps the reply markup tags to terminal output.
var markup = strings.NewReplacer(
	"<b>", Bold,
	"</b>", Reset,
	"<i>", Italic,
	"</i>", Reset,
	"<br>", "\r\n",
	"\r\n", "\r\n",
	"\n", "\r\n",
	"&lt;", "<",
	"&gt;", ">",
	"&#34;", `"`,
	"&#39;", "'",
	"&amp;", "&",
)

// RenderMarkup converts reply markup to ANSI for a terminal client.
// Unknown tags pass through unchanged; bare newlines become CRLF. HTML
// escapes are decoded in the same pass, so escaped text is shown literally.
//
// Postcondition: Returns text with no <b>, <i> or <br> tags.
func RenderMarkup(text string) string {
	return markup.Replace(text)
}

// StripANSI removes all ANSI escape sequences from a string.
//
// Postcondition: Returns text with all \033[...m sequences removed.
func StripANSI(s string) string {
	result := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			// Skip past the 'm' terminator
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			if j < len(s) {
				i = j + 1
				continue
			}
		}
		result = append(result, s[i])
		i++
	}
	return string(result)
}
