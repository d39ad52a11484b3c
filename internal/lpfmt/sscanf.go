// Package lpfmt implements the sscanf matching rule from spec §4.9/§9:
// "%s" directives are greedy, splitting at the LAST occurrence of the
// literal text that follows them rather than the first. It has no
// dependency on the object or interp packages so the interpreter can
// call it directly for sscanf's by-reference output parameters without
// introducing an import cycle through the efun registry.
package lpfmt

import (
	"strconv"
	"strings"
)

// Result holds one matched output value, tagged by its directive kind.
type Result struct {
	Kind byte // 's' or 'd'
	Str  string
	Int  int64
}

type token struct {
	literal bool
	text    string
	verb    byte
}

func tokenize(format string) []token {
	var toks []token
	var lit strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '%' && i+1 < len(format) {
			next := format[i+1]
			if next == '%' {
				lit.WriteByte('%')
				i++
				continue
			}
			if next == 's' || next == 'd' {
				if lit.Len() > 0 {
					toks = append(toks, token{literal: true, text: lit.String()})
					lit.Reset()
				}
				toks = append(toks, token{verb: next})
				i++
				continue
			}
		}
		lit.WriteByte(c)
	}
	if lit.Len() > 0 {
		toks = append(toks, token{literal: true, text: lit.String()})
	}
	return toks
}

// DirectiveKinds returns the ordered sequence of output directive kinds
// ('s' or 'd') in format, independent of how much of a subject actually
// matches — used to type unmatched trailing outputs at zero.
func DirectiveKinds(format string) []byte {
	var kinds []byte
	for _, t := range tokenize(format) {
		if !t.literal {
			kinds = append(kinds, t.verb)
		}
	}
	return kinds
}

// Sscanf matches subject against format and returns one Result per
// directive successfully matched, stopping at the first directive or
// literal that fails to match. A "%s" directive immediately followed by
// a literal consumes up to that literal's last occurrence in the
// remaining subject, per spec §8's "sscanf from" example; a trailing
// "%s" with nothing after it consumes the rest of the subject. A "%d"
// directive consumes an optional leading '-' and a run of digits.
func Sscanf(subject, format string) []Result {
	toks := tokenize(format)
	var results []Result
	pos := 0
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.literal {
			if !strings.HasPrefix(subject[pos:], tok.text) {
				return results
			}
			pos += len(tok.text)
			continue
		}
		switch tok.verb {
		case 's':
			if i+1 < len(toks) && toks[i+1].literal {
				lit := toks[i+1].text
				rest := subject[pos:]
				idx := strings.LastIndex(rest, lit)
				if idx < 0 {
					return results
				}
				results = append(results, Result{Kind: 's', Str: rest[:idx]})
				pos += idx
			} else {
				results = append(results, Result{Kind: 's', Str: subject[pos:]})
				pos = len(subject)
			}
		case 'd':
			j := pos
			if j < len(subject) && subject[j] == '-' {
				j++
			}
			start := j
			for j < len(subject) && subject[j] >= '0' && subject[j] <= '9' {
				j++
			}
			if j == start {
				return results
			}
			n, err := strconv.ParseInt(subject[pos:j], 10, 64)
			if err != nil {
				return results
			}
			results = append(results, Result{Kind: 'd', Int: n})
			pos = j
		}
	}
	return results
}
