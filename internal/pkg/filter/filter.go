/*
Package filter is the content filter consulted before a text message is broadcast.
*/
package filter

import (
	"slices"

	goaway "github.com/TwiN/go-away"
)

// Filter decides whether text must be rejected. Implementations are pure and safe
// for concurrent use.
type Filter interface {
	IsProfane(text string) bool
}

// Func adapts a plain function to Filter.
type Func func(text string) bool

// IsProfane calls f.
func (f Func) IsProfane(text string) bool { return f(text) }

// Nop accepts every message.
var Nop Filter = Func(func(string) bool { return false })

// FalsePositives extends go-away's list with everyday words that contain a
// dictionary entry.
var FalsePositives = []string{
	"assess",
	"assist",
	"assum",
	"assert",
	"asset",
	"massage",
	"passage",
	"embassy",
	"cockpit",
	"scunthorpe",
}

type detector struct {
	d *goaway.ProfanityDetector
}

// New returns a Filter backed by go-away's default dictionaries plus
// FalsePositives. Leetspeak and special character rewriting are off: they turn
// digits and symbols in ordinary text into letters.
func New() Filter {
	return detector{
		d: goaway.NewProfanityDetector().
			WithSanitizeLeetSpeak(false).
			WithSanitizeSpecialCharacters(false).
			WithSanitizeAccents(true).
			WithCustomDictionary(
				goaway.DefaultProfanities,
				slices.Concat(goaway.DefaultFalsePositives, FalsePositives),
				goaway.DefaultFalseNegatives,
			),
	}
}

func (f detector) IsProfane(text string) bool {
	return f.d.IsProfane(text)
}
