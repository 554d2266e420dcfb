package pghmri

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

const (
	formFeed = '\014'
	endOfHdr = '\032'
)

// scanner reads header bytes and tracks the position.
type scanner struct {
	r   *bufio.Reader
	pos int64
}

func (s *scanner) readByte() (byte, bool) {
	c, err := s.r.ReadByte()
	if err != nil {
		return 0, false
	}
	s.pos++
	return c, true
}

func (s *scanner) unread() {
	if s.r.UnreadByte() == nil {
		s.pos--
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// readHeader parses key = value pairs up to the end of the file or the
// end-of-header marker. It returns the pairs and the header length.
func readHeader(r io.Reader) (map[string]string, int64, error) {
	s := &scanner{r: bufio.NewReader(r)}
	keys := make(map[string]string)
	for {
		c, ok := s.readByte()
		for ok && isSpace(c) {
			c, ok = s.readByte()
		}
		if !ok || c == endOfHdr {
			return keys, s.pos, nil
		}
		s.unread()

		key, err := s.readString()
		if err != nil {
			return nil, 0, err
		}
		c, ok = s.readByte()
		for ok && isSpace(c) {
			c, ok = s.readByte()
		}
		if !ok || c != '=' {
			return nil, 0, errors.Errorf("%w: = not found after key %q", ErrSyntax, key)
		}
		value, err := s.readString()
		if err != nil {
			return nil, 0, err
		}
		if _, dup := keys[key]; dup {
			return nil, 0, errors.Errorf("%w: duplicate key %q", ErrSyntax, key)
		}
		keys[key] = value
	}
}

// readString reads a bare or quoted token. Bare tokens run over printable
// characters and tabs, stop at '=' and lose trailing white space.
func (s *scanner) readString() (string, error) {
	c, ok := s.readByte()
	for ok && isSpace(c) && c != '\n' {
		c, ok = s.readByte()
	}
	if ok && c == '"' {
		return s.readQuoted()
	}
	if ok {
		s.unread()
	}

	var b strings.Builder
	for {
		c, ok = s.readByte()
		if !ok {
			break
		}
		if (c < 32 || c > 126 || c == '=') && c != '\t' {
			s.unread()
			break
		}
		b.WriteByte(c)
	}
	return strings.TrimRight(b.String(), " \t\n\v\f\r"), nil
}

func (s *scanner) readQuoted() (string, error) {
	var b strings.Builder
	for {
		c, ok := s.readByte()
		if !ok {
			return "", errors.Errorf("%w: end of file inside quoted string", ErrSyntax)
		}
		if c == '"' {
			return b.String(), nil
		}
		if c == '\\' {
			c = s.readEscape()
		}
		if c != 0 {
			b.WriteByte(c)
		}
	}
}

func (s *scanner) readEscape() byte {
	c, ok := s.readByte()
	if !ok {
		return 0
	}
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case '0', '1', '2', '3':
		v := (c - '0') << 6
		for _, shift := range []uint{3, 0} {
			d, ok := s.readByte()
			if !ok || d < '0' || d > '7' {
				return 0
			}
			v |= (d - '0') << shift
		}
		return v
	case '\n':
		return 0
	}
	return c
}

// needsQuotes reports whether v cannot be written bare.
func needsQuotes(v string) bool {
	if v == "" {
		return true
	}
	for i := 0; i < len(v); i++ {
		if c := v[i]; c < 32 || c > 126 || c == ' ' || c == '=' {
			return true
		}
	}
	return false
}

func quote(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c >= 32 && c <= 126:
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte('\\')
			o := strconv.FormatUint(uint64(c), 8)
			b.WriteString(strings.Repeat("0", 3-len(o)) + o)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatToken(v string) string {
	if needsQuotes(v) {
		return quote(v)
	}
	return v
}

// renderHeader writes the pairs in sorted key order. A separator marks the
// end of the header when chunk data follows it in the same file.
func renderHeader(keys map[string]string, separator bool) []byte {
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(formatToken(k))
		b.WriteString(" = ")
		b.WriteString(formatToken(keys[k]))
		b.WriteByte('\n')
	}
	if separator {
		b.WriteByte(formFeed)
		b.WriteByte(endOfHdr)
	}
	return []byte(b.String())
}
