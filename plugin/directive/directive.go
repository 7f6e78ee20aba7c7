// Package directive splits a chat message into the directives it carries.
package directive

import (
	"iter"
	"strings"
)

// Separator delimits directives within one message.
const Separator = ";"

// Command kinds understood by the executor.
const (
	KindRemindMe = "remindme"
	KindRename   = "rename"
	KindTime     = "time"
	KindRemove   = "remove"
	KindList     = "list"
	KindHelp     = "help"
)

// aliases fold alternative command words onto their canonical kind.
var aliases = map[string]string{
	"remind":   KindRemindMe,
	"reminder": KindRemindMe,
	"rm":       KindRemove,
	"delete":   KindRemove,
	"ls":       KindList,
}

// Directive is one unit of intent extracted from a message.
type Directive struct {
	// Kind is the lower-cased command word with aliases folded.
	Kind string
	// Args is the text after the command word, whitespace-normalized.
	Args string
	// Text is the whole trimmed directive.
	Text string
}

// Parse builds a Directive from a single directive string. ok is false for
// blank input.
func Parse(text string) (Directive, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Directive{}, false
	}
	return Directive{
		Kind: KindOf(fields[0]),
		Args: strings.Join(fields[1:], " "),
		Text: strings.Join(fields, " "),
	}, true
}

// KindOf normalizes a command word.
func KindOf(word string) string {
	kind := strings.ToLower(word)
	if canonical, ok := aliases[kind]; ok {
		return canonical
	}
	return kind
}

// Split returns the directives of message in first-seen order. Blank
// directives are dropped and each command kind is yielded at most once, so
// "help; list; help; list" yields help and list. The sequence is lazy and can
// be ranged over any number of times.
func Split(message string) iter.Seq[Directive] {
	return func(yield func(Directive) bool) {
		seen := make(map[string]struct{})
		for part := range strings.SplitSeq(message, Separator) {
			d, ok := Parse(part)
			if !ok {
				continue
			}
			if _, dup := seen[d.Kind]; dup {
				continue
			}
			seen[d.Kind] = struct{}{}
			if !yield(d) {
				return
			}
		}
	}
}

// Collect drains Split into a slice.
func Collect(message string) []Directive {
	var out []Directive
	for d := range Split(message) {
		out = append(out, d)
	}
	return out
}
