package events

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dmagro/novax/internal/address"
)

// ErrMalformedHit is returned when a hit cannot be mapped to a record. A
// malformed hit fails the whole query.
var ErrMalformedHit = errors.New("events: malformed hit")

// Metadata locates an event.
type Metadata struct {
	TxHash     string
	Timestamp  time.Time
	Address    address.Address
	Identifier string
	// Order is the position of the event within its transaction logs.
	Order uint64
}

// Record is a decoded event with its metadata.
type Record[T any] struct {
	Event    T
	Metadata Metadata
}

// Decoder maps the indexed fields and data of an event to T. fields
// excludes the identifier topic.
type Decoder[T any] interface {
	DecodeEvent(fields [][]byte, data []byte) (T, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc[T any] func(fields [][]byte, data []byte) (T, error)

// DecodeEvent implements Decoder.
func (f DecoderFunc[T]) DecodeEvent(fields [][]byte, data []byte) (T, error) {
	return f(fields, data)
}

// Raw is the undecoded form of an event.
type Raw struct {
	Fields [][]byte
	Data   []byte
}

// RawDecoder keeps events undecoded.
var RawDecoder Decoder[Raw] = DecoderFunc[Raw](func(fields [][]byte, data []byte) (Raw, error) {
	return Raw{Fields: fields, Data: data}, nil
})

// Executor runs event queries against a Searcher.
type Executor struct {
	searcher Searcher
}

// NewExecutor creates an executor over s.
func NewExecutor(s Searcher) *Executor {
	return &Executor{searcher: s}
}

// Execute fetches the identifier events emitted by contract that match
// every filter, and decodes them with dec.
func Execute[T any](ctx context.Context, e *Executor, dec Decoder[T], contract address.Address, identifier string, opts Options, filters ...Filter) ([]Record[T], error) {
	q, err := buildQuery(contract, identifier, opts, filters)
	if err != nil {
		return nil, err
	}
	resp, err := e.searcher.Search(ctx, q.body)
	if err != nil {
		return nil, err
	}
	return parseHits(resp, q.topics, dec)
}

func parseHits[T any](resp []byte, topics []topicFilter, dec Decoder[T]) ([]Record[T], error) {
	if !gjson.ValidBytes(resp) {
		return nil, fmt.Errorf("%w: response is not JSON", ErrSearch)
	}
	hits := gjson.GetBytes(resp, "hits.hits")
	if !hits.IsArray() {
		return nil, fmt.Errorf("%w: response has no hits", ErrSearch)
	}

	records := []Record[T]{}
	var failed error
	hits.ForEach(func(i, hit gjson.Result) bool {
		src := hit.Get("_source")
		if !src.IsObject() {
			failed = fmt.Errorf("%w %d: no source document", ErrMalformedHit, i.Int())
			return false
		}
		rec, match, err := parseSource(src, topics, dec)
		if err != nil {
			failed = fmt.Errorf("%w %d (%s): %w", ErrMalformedHit, i.Int(), hit.Get("_id").String(), err)
			return false
		}
		if match {
			records = append(records, rec)
		}
		return true
	})
	if failed != nil {
		return nil, failed
	}
	return records, nil
}

// parseSource maps one source document. match is false when the topics do
// not hold the filtered values at their positions.
func parseSource[T any](src gjson.Result, want []topicFilter, dec Decoder[T]) (rec Record[T], match bool, err error) {
	txHash := src.Get("txHash")
	if txHash.Type != gjson.String || txHash.String() == "" {
		return rec, false, errors.New("missing txHash")
	}
	identifier := src.Get("identifier").String()
	if identifier == "" {
		return rec, false, errors.New("missing identifier")
	}
	addr, err := address.FromBech32(src.Get("address").String())
	if err != nil {
		return rec, false, fmt.Errorf("address: %w", err)
	}
	ts := src.Get("timestamp")
	if ts.Type != gjson.Number {
		return rec, false, errors.New("missing timestamp")
	}

	rawTopics := src.Get("topics")
	if !rawTopics.IsArray() {
		return rec, false, errors.New("missing topics")
	}
	var topics [][]byte
	for _, t := range rawTopics.Array() {
		b, err := hex.DecodeString(t.String())
		if err != nil {
			return rec, false, fmt.Errorf("topic %d: %w", len(topics), err)
		}
		topics = append(topics, b)
	}
	for _, w := range want {
		if w.index >= len(topics) || hex.EncodeToString(topics[w.index]) != w.value {
			return rec, false, nil
		}
	}

	var data []byte
	if d := src.Get("data").String(); d != "" {
		if data, err = hex.DecodeString(d); err != nil {
			return rec, false, fmt.Errorf("data: %w", err)
		}
	}

	event, err := dec.DecodeEvent(topics[1:], data)
	if err != nil {
		return rec, false, fmt.Errorf("decode: %w", err)
	}
	return Record[T]{
		Event: event,
		Metadata: Metadata{
			TxHash:     txHash.String(),
			Timestamp:  time.Unix(ts.Int(), 0).UTC(),
			Address:    addr,
			Identifier: identifier,
			Order:      src.Get("order").Uint(),
		},
	}, true, nil
}
