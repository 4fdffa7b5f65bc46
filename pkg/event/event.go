// Package event defines the envelope records travel in between sources,
// the interceptor chain and sinks.
package event

// Event is one record envelope: string headers and an opaque body.
type Event struct {
	Headers map[string]string
	Body    []byte
}

// New returns an event with a copy of headers.
func New(body []byte, headers map[string]string) *Event {
	ev := &Event{Body: body}
	if len(headers) > 0 {
		ev.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			ev.Headers[k] = v
		}
	}
	return ev
}

// Header returns the header value for key.
func (e *Event) Header(key string) (string, bool) {
	v, ok := e.Headers[key]
	return v, ok
}

// SetHeader sets a header, allocating the map on first use.
func (e *Event) SetHeader(key, value string) {
	if e.Headers == nil {
		e.Headers = make(map[string]string)
	}
	e.Headers[key] = value
}

// Clone returns a deep copy whose body and headers do not alias e.
func (e *Event) Clone() *Event {
	c := New(nil, e.Headers)
	if e.Body != nil {
		c.Body = append([]byte(nil), e.Body...)
	}
	return c
}
