// Package layout parses column layout descriptors and decodes raw record
// buffers into positional column values.
//
// Three layouts are supported. Positional layouts ("2,2,4+[2]*N") describe
// fixed-width and marker-prefixed columns. Tagged layouts ("v4,lv,tlv20,tail")
// read leading positional columns and then scan TLV fields, routing known tags
// to output slots. Delimited layouts split text records on a separator.
package layout

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/tlv"
)

// Kind identifies how a column is read from the buffer.
type Kind uint8

const (
	// Fixed columns have a constant width.
	Fixed Kind = iota
	// Prefixed columns have a base width plus Unit bytes per marker count,
	// where the marker is the signed byte at the column's first position.
	Prefixed
	// LV columns carry a 2-byte big-endian length before the value.
	LV
	// Tag columns receive the value of a TLV field with a matching tag.
	Tag
	// Tail occupies an output slot but is never filled.
	Tail
)

// Mode is the overall layout scheme.
type Mode uint8

const (
	Positional Mode = iota
	Tagged
	Delimited
)

func (m Mode) String() string {
	switch m {
	case Tagged:
		return "tagged"
	case Delimited:
		return "delimited"
	default:
		return "positional"
	}
}

// Column is one entry of a layout descriptor.
type Column struct {
	Kind  Kind
	Width int
	Unit  int
	Tag   uint16
}

func (c Column) String() string {
	switch c.Kind {
	case Prefixed:
		return strconv.Itoa(c.Width) + "+[" + strconv.Itoa(c.Unit) + "]*N"
	case LV:
		return "lv"
	case Tag:
		return "tlv" + strconv.Itoa(int(c.Tag))
	case Tail:
		return "tail"
	default:
		return strconv.Itoa(c.Width)
	}
}

// Descriptor is an immutable, parsed layout. It is safe for concurrent use.
type Descriptor struct {
	mode    Mode
	columns []Column
	// number of positional columns read before the TLV scan
	leading int
	// output slot per tag, -1 when the tag is not requested
	slots []int
	delim []byte
}

var prefixedPattern = regexp.MustCompile(`^(\d+)\+\[(\d+)]\*N$`)

// ParseFixed parses a positional layout: comma-separated widths "N" or
// marker-prefixed columns "B+[U]*N".
func ParseFixed(spec string) (*Descriptor, error) {
	tokens, err := split(spec)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{mode: Positional, columns: make([]Column, 0, len(tokens))}
	for i, tok := range tokens {
		col, err := parsePositional(tok, i)
		if err != nil {
			return nil, err
		}
		d.columns = append(d.columns, col)
	}
	d.leading = len(d.columns)
	return d, nil
}

// ParseTagged parses a tagged layout of "v<N>", "lv", "tlv<TAG>" and "tail"
// tokens. Positional tokens must precede every tlv and tail token; the
// output slot of each token is its position in the list.
func ParseTagged(spec string) (*Descriptor, error) {
	tokens, err := split(spec)
	if err != nil {
		return nil, err
	}
	d := &Descriptor{mode: Tagged, columns: make([]Column, 0, len(tokens))}
	d.slots = make([]int, tlv.MaxTag+1)
	for i := range d.slots {
		d.slots[i] = -1
	}

	scanning := false
	for i, tok := range tokens {
		var col Column
		switch {
		case tok == "tail":
			col = Column{Kind: Tail}
		case strings.HasPrefix(tok, "tlv"):
			tag, err := strconv.Atoi(tok[3:])
			if err != nil || tag < 0 || tag > tlv.MaxTag {
				return nil, tokenError(tok, i, "tag must be an integer in [0, 4095]")
			}
			if d.slots[tag] >= 0 {
				return nil, tokenError(tok, i, "duplicate tag").WithDetail("first_slot", d.slots[tag])
			}
			d.slots[tag] = i
			col = Column{Kind: Tag, Tag: uint16(tag)}
		case tok == "lv":
			col = Column{Kind: LV}
		case strings.HasPrefix(tok, "v"):
			width, err := strconv.Atoi(tok[1:])
			if err != nil || width <= 0 {
				return nil, tokenError(tok, i, "value width must be a positive integer")
			}
			col = Column{Kind: Fixed, Width: width}
		default:
			var err error
			if col, err = parsePositional(tok, i); err != nil {
				return nil, tokenError(tok, i, "unrecognized token")
			}
		}

		positional := col.Kind == Fixed || col.Kind == Prefixed || col.Kind == LV
		if positional && scanning {
			return nil, tokenError(tok, i, "positional column after tlv section")
		}
		if !positional {
			scanning = true
		} else {
			d.leading++
		}
		d.columns = append(d.columns, col)
	}
	return d, nil
}

// ParseDelimited describes a text record of columns fields separated by
// delimiter.
func ParseDelimited(columns int, delimiter string) (*Descriptor, error) {
	if columns <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "input-column-num must be positive, got %d", columns)
	}
	if delimiter == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "input-column-delimiter must not be empty")
	}
	d := &Descriptor{
		mode:    Delimited,
		columns: make([]Column, columns),
		delim:   []byte(delimiter),
	}
	return d, nil
}

func parsePositional(tok string, index int) (Column, error) {
	if m := prefixedPattern.FindStringSubmatch(tok); m != nil {
		base, _ := strconv.Atoi(m[1])
		unit, _ := strconv.Atoi(m[2])
		if unit <= 0 {
			return Column{}, tokenError(tok, index, "unit width must be positive")
		}
		return Column{Kind: Prefixed, Width: base, Unit: unit}, nil
	}
	width, err := strconv.Atoi(tok)
	if err != nil || width <= 0 {
		return Column{}, tokenError(tok, index, "width must be a positive integer")
	}
	return Column{Kind: Fixed, Width: width}, nil
}

func split(spec string) ([]string, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "empty column layout")
	}
	tokens := strings.Split(spec, ",")
	for i, tok := range tokens {
		tokens[i] = strings.TrimSpace(tok)
		if tokens[i] == "" {
			return nil, tokenError(tok, i, "empty token")
		}
	}
	return tokens, nil
}

func tokenError(tok string, index int, reason string) *errors.Error {
	return errors.Newf(errors.ErrorTypeConfig, "layout token %q at %d: %s", tok, index, reason).
		WithDetail("token", tok).
		WithDetail("index", index)
}

// Mode returns the layout scheme.
func (d *Descriptor) Mode() Mode { return d.mode }

// NumColumns returns the number of output slots.
func (d *Descriptor) NumColumns() int { return len(d.columns) }

// Columns returns a copy of the column list.
func (d *Descriptor) Columns() []Column {
	out := make([]Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// Slot returns the output slot assigned to tag.
func (d *Descriptor) Slot(tag uint16) (int, bool) {
	if d.slots == nil || int(tag) >= len(d.slots) || d.slots[tag] < 0 {
		return 0, false
	}
	return d.slots[tag], true
}

// String renders the descriptor back in its grammar.
func (d *Descriptor) String() string {
	switch d.mode {
	case Delimited:
		return strconv.Itoa(len(d.columns)) + " columns delimited by " + strconv.Quote(string(d.delim))
	case Tagged:
		parts := make([]string, len(d.columns))
		for i, c := range d.columns {
			if c.Kind == Fixed {
				parts[i] = "v" + strconv.Itoa(c.Width)
				continue
			}
			parts[i] = c.String()
		}
		return strings.Join(parts, ",")
	default:
		parts := make([]string, len(d.columns))
		for i, c := range d.columns {
			parts[i] = c.String()
		}
		return strings.Join(parts, ",")
	}
}
