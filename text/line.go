package text

import (
	"bytes"
	"io"
	"sort"
)

// ReadLine returns the next line, separator included unless Chomp is set.
// Lines only ever end on character boundaries. At the end of the stream
// whatever was collected is a line; with nothing collected it returns
// io.EOF.
func (c *Codec) ReadLine(opts LineOptions) ([]byte, error) {
	if err := c.checkRead(); err != nil {
		return nil, err
	}
	sep := opts.Separator
	var literal []byte
	switch sep.kind {
	case sepLiteral:
		literal = encodeOr(c.target, string(sep.literal), sep.literal)
	case sepParagraph:
		literal = append(append([]byte(nil), c.newline...), c.newline...)
	}
	discardLeading := opts.DiscardLeadingNewlines || sep.kind == sepParagraph

	var (
		line    []byte
		taken   []unit
		starts  []int
		cut     = -1
		match   []int
		scanned int
	)
	// boundary reports whether off falls between two characters of line.
	boundary := func(off int) bool {
		if off == len(line) {
			return true
		}
		i := sort.SearchInts(starts, off)
		return i < len(starts) && starts[i] == off
	}
	// findPattern sets match to the first match on character boundaries.
	// A match reaching the end of line is only taken when final is set,
	// since more input could extend it; deferred reports one. A bounded
	// pattern is only searched where a new match can start.
	findPattern := func(final bool) (found, deferred bool) {
		from := 0
		if sep.width >= 0 && scanned > sep.width {
			from = scanned - sep.width
		}
		scanned = len(line)
		for _, loc := range sep.pattern.FindAllIndex(line[from:], -1) {
			start, end := from+loc[0], from+loc[1]
			if start == end || !boundary(start) || !boundary(end) {
				continue
			}
			if end == len(line) && !final {
				return false, true
			}
			match = []int{start, end}
			return true, false
		}
		return false, false
	}

	for {
		u, err := c.next()
		if err == io.EOF && len(line) > 0 {
			if sep.kind == sepPattern {
				if found, _ := findPattern(true); found {
					cut = match[1]
				}
			}
			break
		}
		if err != nil {
			c.pushFront(taken)
			return nil, err
		}
		if u.err != nil {
			c.pushFront(taken)
			return nil, u.err
		}
		if discardLeading && len(line) == 0 && c.isNewline(u) {
			continue
		}
		starts = append(starts, len(line))
		taken = append(taken, u)
		line = append(line, u.b...)

		if literal != nil {
			if at := len(line) - len(literal); at >= 0 && bytes.Equal(line[at:], literal) && boundary(at) {
				break
			}
		} else if sep.kind == sepPattern {
			found, deferred := findPattern(false)
			if !found && deferred && c.drained() {
				found, _ = findPattern(true)
			}
			if found {
				cut = match[1]
				break
			}
		}
		if opts.Limit > 0 && len(line) >= opts.Limit {
			break
		}
	}

	if cut >= 0 && cut < len(line) {
		i := sort.SearchInts(starts, cut)
		c.pushFront(taken[i:])
		line = line[:cut]
	}
	if sep.kind == sepParagraph {
		for len(c.units) > 0 && c.isNewline(c.units[0]) {
			c.units = c.units[1:]
		}
	}
	if opts.Chomp {
		line = c.chomp(line, sep, literal)
	}
	c.lineno++
	return line, nil
}

func (c *Codec) chomp(line []byte, sep Separator, literal []byte) []byte {
	switch sep.kind {
	case sepLiteral:
		return bytes.TrimSuffix(line, literal)
	case sepParagraph:
		for bytes.HasSuffix(line, c.newline) {
			line = line[:len(line)-len(c.newline)]
		}
	case sepPattern:
		if loc := sep.pattern.FindAllIndex(line, -1); len(loc) > 0 {
			if last := loc[len(loc)-1]; last[1] == len(line) && last[0] < last[1] {
				return line[:last[0]]
			}
		}
	}
	return line
}
