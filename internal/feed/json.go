package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/pfrederiksen/measurecamp-ics/internal/event"
)

// JSONFeed decodes raw field-sets from either a JSON array or a stream of
// whitespace-separated JSON objects (JSON lines).
type JSONFeed struct {
	r io.Reader
}

// NewJSONFeed creates a feed reading from r. The reader is consumed once.
func NewJSONFeed(r io.Reader) *JSONFeed {
	return &JSONFeed{r: r}
}

// Items streams the decoded objects. An object whose fields have the wrong
// type is reported as an item error and decoding continues; malformed JSON
// ends the feed with an error.
func (f *JSONFeed) Items(ctx context.Context) iter.Seq2[event.RawFields, error] {
	return func(yield func(event.RawFields, error) bool) {
		br := bufio.NewReader(f.r)

		first, err := peekNonSpace(br)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(event.RawFields{}, fmt.Errorf("reading feed: %w", err))
			return
		}

		dec := json.NewDecoder(br)
		array := first == '['
		if array {
			if _, err := dec.Token(); err != nil {
				yield(event.RawFields{}, fmt.Errorf("decoding feed: %w", err))
				return
			}
		}

		for n := 1; ; n++ {
			if ctx.Err() != nil {
				return
			}
			if array && !dec.More() {
				return
			}

			var raw event.RawFields
			err := dec.Decode(&raw)
			if !array && errors.Is(err, io.EOF) {
				return
			}

			var typeErr *json.UnmarshalTypeError
			switch {
			case err == nil:
				if !yield(raw, nil) {
					return
				}
			case errors.As(err, &typeErr):
				if !yield(raw, fmt.Errorf("decoding item %d: %w", n, err)) {
					return
				}
			default:
				yield(event.RawFields{}, fmt.Errorf("decoding item %d: %w", n, err))
				return
			}
		}
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}
