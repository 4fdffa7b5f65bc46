package layout

import (
	"bytes"

	"github.com/ajitpratap0/xdrflow/pkg/column"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/tlv"
)

// Decode splits buf into column values according to the descriptor. dst is
// reused when it has enough capacity. Values are views into buf and are
// only valid until buf is reused.
//
// It returns the row and the number of bytes consumed. Positional layouts
// may leave trailing bytes unread; tagged and delimited layouts consume the
// whole buffer. A buffer shorter than the layout requires is a decode error.
func (d *Descriptor) Decode(buf []byte, dst column.Row) (column.Row, int, error) {
	row := resize(dst, len(d.columns))

	switch d.mode {
	case Delimited:
		d.decodeDelimited(buf, row)
		return row, len(buf), nil
	case Tagged:
		cursor, err := d.decodeLeading(buf, row)
		if err != nil {
			return row, cursor, err
		}
		cursor, err = d.scan(buf, cursor, row)
		return row, cursor, err
	default:
		cursor, err := d.decodeLeading(buf, row)
		return row, cursor, err
	}
}

func resize(dst column.Row, n int) column.Row {
	if cap(dst) < n {
		return make(column.Row, n)
	}
	row := dst[:n]
	row.Reset()
	return row
}

func (d *Descriptor) decodeLeading(buf []byte, row column.Row) (int, error) {
	cursor := 0
	for i, c := range d.columns[:d.leading] {
		var start, end int
		switch c.Kind {
		case Fixed:
			start, end = cursor, cursor+c.Width
		case Prefixed:
			if cursor >= len(buf) {
				return cursor, columnUnderrun(i, c, cursor, 1, len(buf))
			}
			length := c.Width
			// markers >= 0x80 are negative as signed bytes and add nothing
			if m := int8(buf[cursor]); m > 0 {
				length += int(m) * c.Unit
			}
			start, end = cursor, cursor+length
		case LV:
			var err error
			if start, end, err = tlv.LVField(buf, cursor); err != nil {
				return cursor, errors.Wrapf(err, errors.ErrorTypeDecode, "column %d (lv)", i).
					WithDetail("column", i)
			}
		}
		if end > len(buf) {
			return cursor, columnUnderrun(i, c, start, end-start, len(buf))
		}
		row[i] = column.BytesValue(buf[start:end:end])
		cursor = end
	}
	return cursor, nil
}

func (d *Descriptor) scan(buf []byte, cursor int, row column.Row) (int, error) {
	for cursor < len(buf) {
		tag, start, end, err := tlv.Field(buf, cursor)
		if err != nil {
			return cursor, errors.Wrapf(err, errors.ErrorTypeDecode, "tlv field at offset %d", cursor).
				WithDetail("offset", cursor)
		}
		if slot := d.slots[tag]; slot >= 0 {
			row[slot] = column.BytesValue(buf[start:end:end])
		}
		cursor = end
	}
	return cursor, nil
}

func (d *Descriptor) decodeDelimited(buf []byte, row column.Row) {
	rest := buf
	for i := range row {
		if rest == nil {
			return
		}
		j := bytes.Index(rest, d.delim)
		if j < 0 {
			row[i] = column.TextValue(rest[:len(rest):len(rest)])
			rest = nil
			continue
		}
		row[i] = column.TextValue(rest[:j:j])
		rest = rest[j+len(d.delim):]
	}
}

func columnUnderrun(index int, c Column, off, need, size int) *errors.Error {
	return errors.Newf(errors.ErrorTypeDecode,
		"column %d (%s) needs %d bytes at offset %d, buffer has %d", index, c, need, off, size).
		WithDetail("column", index).
		WithDetail("offset", off)
}
