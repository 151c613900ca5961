package subtitles

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxWordsPerGroup    = 3
	DefaultSentenceTerminators = ".!?"
)

// closers may follow a terminator without hiding it, e.g. `said."` or `(really?)`.
const closers = `"')]}»”’`

// GroupOptions controls how words are partitioned into display groups.
type GroupOptions struct {
	MaxWords    int    // <= 0 uses DefaultMaxWordsPerGroup
	Terminators string // set of trailing characters; "" uses DefaultSentenceTerminators
}

func DefaultGroupOptions() GroupOptions {
	return GroupOptions{
		MaxWords:    DefaultMaxWordsPerGroup,
		Terminators: DefaultSentenceTerminators,
	}
}

// Group is a run of consecutive words shown on screen together. It is never empty.
type Group struct {
	Words []Word
}

func (g Group) Start() float64 { return g.Words[0].Start }
func (g Group) End() float64   { return g.Words[len(g.Words)-1].End }

// Text joins the group's words with single spaces, without markup.
func (g Group) Text() string {
	parts := make([]string, len(g.Words))
	for i, w := range g.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// GroupWords partitions words into display groups. A group closes after a word
// ending in a sentence terminator, or once it holds MaxWords words; the terminator
// check runs first, so a terminal word closes its group even when it is the first
// word of that group. The trailing group is flushed whatever its size.
func GroupWords(words []Word, opts GroupOptions) []Group {
	maxWords := opts.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultMaxWordsPerGroup
	}
	terminators := opts.Terminators
	if terminators == "" {
		terminators = DefaultSentenceTerminators
	}

	var groups []Group
	begin := 0
	for i, w := range words {
		if endsSentence(w.Text, terminators) || i+1-begin >= maxWords {
			groups = append(groups, Group{Words: words[begin : i+1 : i+1]})
			begin = i + 1
		}
	}
	if begin < len(words) {
		groups = append(groups, Group{Words: words[begin:len(words):len(words)]})
	}

	return groups
}

func endsSentence(text, terminators string) bool {
	text = strings.TrimRight(text, closers)
	if text == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	return strings.ContainsRune(terminators, last)
}
