package text

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"unicode/utf8"
)

// Newline selects how "\n" is written.
type Newline uint8

const (
	NewlineLF Newline = iota
	NewlineCRLF
	NewlineCR
)

func (n Newline) bytes() []byte {
	switch n {
	case NewlineCRLF:
		return []byte("\r\n")
	case NewlineCR:
		return []byte("\r")
	default:
		return []byte("\n")
	}
}

// InvalidPolicy selects what happens to byte sequences that are not valid
// in the external encoding.
type InvalidPolicy uint8

const (
	// Hand the raw bytes out as an invalid character.
	InvalidReturn InvalidPolicy = iota
	InvalidReplace
	InvalidError
)

// UndefinedPolicy selects what happens to characters the target encoding
// cannot represent.
type UndefinedPolicy uint8

const (
	UndefinedError UndefinedPolicy = iota
	UndefinedReplace
)

type Options struct {
	// Encoding of the bytes in the stream. Nil means Binary.
	External *Encoding
	// Encoding handed to readers and expected from writers. Nil means
	// the external encoding.
	Internal *Encoding

	// Read "\r", "\n" and "\r\n" as "\n".
	UniversalNewline bool
	// Newline sequence written for "\n".
	WriteNewline Newline

	Invalid   InvalidPolicy
	Undefined UndefinedPolicy
}

func (o Options) external() *Encoding {
	if o.External == nil {
		return Binary
	}
	return o.External
}

func (o Options) internal() *Encoding {
	if o.Internal == nil {
		return o.external()
	}
	return o.Internal
}

func (o Options) transcoding() bool {
	return !o.internal().Is(o.external()) || o.UniversalNewline || o.WriteNewline != NewlineLF
}

type ErrorKind uint8

const (
	InvalidSequence ErrorKind = iota
	IncompleteSequence
	UndefinedConversion
)

func (k ErrorKind) String() string {
	switch k {
	case IncompleteSequence:
		return "incomplete sequence"
	case UndefinedConversion:
		return "undefined conversion"
	default:
		return "invalid sequence"
	}
}

// DecodeError reports a character that could not be converted.
type DecodeError struct {
	Kind   ErrorKind
	Bytes  []byte
	Source string
	Target string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("text: %s %q from %s to %s", e.Kind, e.Bytes, e.Source, e.Target)
}

type separatorKind uint8

const (
	sepNone separatorKind = iota
	sepLiteral
	sepPattern
	sepParagraph
)

// Separator terminates lines. The zero value reads to the end of the
// stream.
type Separator struct {
	kind    separatorKind
	literal []byte
	pattern *regexp.Regexp
	// Longest match of pattern in bytes, or -1 when unbounded or when
	// matches depend on what precedes them.
	width int
}

func SeparatorNone() Separator {
	return Separator{}
}

// Literal separates lines on s, given in UTF-8 and matched in the
// internal encoding.
// An empty s selects paragraph mode.
func Literal(s string) Separator {
	if s == "" {
		return Paragraph()
	}
	return Separator{kind: sepLiteral, literal: []byte(s)}
}

// Pattern separates lines after the first non-empty match of re.
func Pattern(re *regexp.Regexp) Separator {
	width := -1
	if parsed, err := syntax.Parse(re.String(), syntax.Perl); err == nil {
		width = maxMatchWidth(parsed.Simplify())
	}
	return Separator{kind: sepPattern, pattern: re, width: width}
}

// maxMatchWidth bounds the bytes a match of re can span. It returns -1 for
// unbounded repetition and for assertions that look at the preceding text.
func maxMatchWidth(re *syntax.Regexp) int {
	switch re.Op {
	case syntax.OpNoMatch, syntax.OpEmptyMatch, syntax.OpEndLine, syntax.OpEndText:
		return 0
	case syntax.OpLiteral:
		return len(re.Rune) * utf8.UTFMax
	case syntax.OpCharClass, syntax.OpAnyCharNotNL, syntax.OpAnyChar:
		return utf8.UTFMax
	case syntax.OpCapture, syntax.OpQuest:
		return maxMatchWidth(re.Sub[0])
	case syntax.OpRepeat:
		if re.Max < 0 {
			return -1
		}
		w := maxMatchWidth(re.Sub[0])
		if w < 0 {
			return -1
		}
		return re.Max * w
	case syntax.OpConcat, syntax.OpAlternate:
		total := 0
		for _, sub := range re.Sub {
			w := maxMatchWidth(sub)
			if w < 0 {
				return -1
			}
			if re.Op == syntax.OpConcat {
				total += w
			} else if w > total {
				total = w
			}
		}
		return total
	}
	return -1
}

// Paragraph separates lines on blank lines. Runs of newlines around a
// paragraph are dropped.
func Paragraph() Separator {
	return Separator{kind: sepParagraph}
}

type LineOptions struct {
	Separator Separator
	// Stop at the first character boundary at or after Limit bytes.
	// Zero means no limit.
	Limit int
	// Strip the separator from the returned line.
	Chomp bool
	// Skip newlines before the line starts. Always on in paragraph mode.
	DiscardLeadingNewlines bool
}
