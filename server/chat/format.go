package chat

import (
	"strings"
	"sync/atomic"

	"github.com/sandertv/gophertunnel/minecraft/text"
)

const (
	// AlternateCode is the character used by plugin authors to mark colour and
	// formatting codes in messages, for example "&cDenied".
	AlternateCode = '&'
	// FormattingCode is the character clients understand as a formatting prefix.
	FormattingCode = '§'
)

// formatCodes holds every character that may follow AlternateCode to form a
// valid formatting code.
const formatCodes = "0123456789AaBbCcDdEeFfGgKkLlMmNnOoRrXx"

var prefix atomic.Value // stores string

// SetPrefix sets the banner prepended to every formatted message. It is
// expected to be called once during startup, before any command runs.
func SetPrefix(p string) {
	prefix.Store(p)
}

// Prefix returns the banner set using SetPrefix.
func Prefix() string {
	if v, ok := prefix.Load().(string); ok {
		return v
	}
	return ""
}

// Translate replaces every AlternateCode that is followed by a valid
// formatting character with FormattingCode. The formatting character is
// lowercased. Ampersands that do not start a code are left untouched.
func Translate(message string) string {
	if !strings.ContainsRune(message, AlternateCode) {
		return message
	}
	runes := []rune(message)
	for i := 0; i < len(runes)-1; i++ {
		if runes[i] == AlternateCode && strings.ContainsRune(formatCodes, runes[i+1]) {
			runes[i] = FormattingCode
			runes[i+1] = toLower(runes[i+1])
		}
	}
	return string(runes)
}

// Format prepends the process-wide prefix to message and translates the
// result.
func Format(message string) string {
	if p := Prefix(); p != "" {
		message = p + " " + message
	}
	return Translate(message)
}

// ANSI translates message and converts the resulting formatting codes into
// ANSI escape sequences suitable for a terminal.
func ANSI(message string) string {
	return text.ANSI(Translate(message))
}

// Clean translates message and strips every formatting code from it.
func Clean(message string) string {
	return text.Clean(Translate(message))
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
