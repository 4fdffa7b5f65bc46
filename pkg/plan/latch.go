package plan

import "github.com/ajitpratap0/xdrflow/pkg/column"

type latchState uint8

const (
	latchIdle latchState = iota
	latchPrimed
	latchWritten
)

// latchViolation is the panic value for latch misuse. It is re-raised by
// the executor's recover so that misuse is never reported as a record error.
type latchViolation string

func (v latchViolation) Error() string { return "plan: " + string(v) }

// Latch is a single-slot, write-once-read-once result cell. Each execution
// primes it, the sink writes at most one row into it and the executor takes
// the row out.
type Latch struct {
	state latchState
	row   column.Row
}

func (l *Latch) prime() {
	if l.state == latchWritten {
		panic(latchViolation("latch primed while holding an unread result"))
	}
	l.state = latchPrimed
	l.row = nil
}

func (l *Latch) put(row column.Row) {
	if l.state != latchPrimed {
		panic(latchViolation("latch written without a pending execute"))
	}
	l.row = row
	l.state = latchWritten
}

// take returns the captured row, or false when the record was filtered out.
func (l *Latch) take() (column.Row, bool) {
	switch l.state {
	case latchWritten:
		row := l.row
		l.row = nil
		l.state = latchIdle
		return row, true
	case latchPrimed:
		l.state = latchIdle
		return nil, false
	default:
		panic(latchViolation("latch read twice without an intervening execute"))
	}
}

func (l *Latch) abort() {
	l.state = latchIdle
	l.row = nil
}
