// Package events queries contract events stored in an Elasticsearch
// compatible index and maps the hits to typed records.
package events

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmagro/novax/internal/address"
)

// Order is a sort direction.
type Order string

// Sort directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ErrInvalidQuery is returned for options the index cannot express.
var ErrInvalidQuery = errors.New("events: invalid query")

// Sort orders hits by a document field.
type Sort struct {
	Field string
	Order Order
}

// TimestampRange bounds the event timestamp, both ends inclusive. A zero
// bound is open.
type TimestampRange struct {
	From time.Time
	To   time.Time
}

// Options paginates, sorts and bounds a query. Zero values are omitted from
// the query, leaving the index defaults.
//
// From and Size apply to index hits before filter positions are checked, so
// a page may hold fewer than Size records while later pages still have
// some, and From counts hits that were dropped. Advance From by Size, not by
// the number of records returned.
type Options struct {
	From      int
	Size      int
	Sort      *Sort
	Timestamp *TimestampRange
}

// Filter requires the indexed field at Position to equal Value. Positions
// count the indexed fields of the event, the identifier excluded.
type Filter struct {
	Position int
	Value    []byte
}

// Document field names of the events index.
const (
	fieldAddress    = "address"
	fieldIdentifier = "identifier"
	fieldTopics     = "topics"
	fieldTimestamp  = "timestamp"
)

// topicFilter matches a topic at a given position. The index stores topics as
// an array, so besides the term match the position is checked on every hit.
type topicFilter struct {
	index int
	value string
}

// query is a built search request.
type query struct {
	body   []byte
	topics []topicFilter
}

// buildQuery builds the search body for the events named identifier emitted
// by contract. Topic 0 is the identifier, so filter positions are shifted by
// one.
func buildQuery(contract address.Address, identifier string, opts Options, filters []Filter) (*query, error) {
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty event identifier", ErrInvalidQuery)
	}
	if opts.From < 0 || opts.Size < 0 {
		return nil, fmt.Errorf("%w: negative pagination window", ErrInvalidQuery)
	}

	q := &query{topics: []topicFilter{{0, hex.EncodeToString([]byte(identifier))}}}
	for _, f := range filters {
		if f.Position < 0 {
			return nil, fmt.Errorf("%w: filter position %d", ErrInvalidQuery, f.Position)
		}
		q.topics = append(q.topics, topicFilter{f.Position + 1, hex.EncodeToString(f.Value)})
	}

	must := []any{
		term(fieldAddress, contract.Bech32()),
		term(fieldIdentifier, identifier),
	}
	for _, t := range q.topics {
		must = append(must, term(fieldTopics, t.value))
	}
	if r := opts.Timestamp; r != nil {
		bounds := map[string]int64{}
		if !r.From.IsZero() {
			bounds["gte"] = r.From.Unix()
		}
		if !r.To.IsZero() {
			bounds["lte"] = r.To.Unix()
		}
		if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
			return nil, fmt.Errorf("%w: timestamp range ends before it starts", ErrInvalidQuery)
		}
		if len(bounds) > 0 {
			must = append(must, map[string]any{"range": map[string]any{fieldTimestamp: bounds}})
		}
	}

	body := map[string]any{
		"query": map[string]any{"bool": map[string]any{"filter": must}},
	}
	if s := opts.Sort; s != nil {
		if s.Field == "" {
			return nil, fmt.Errorf("%w: sort without a field", ErrInvalidQuery)
		}
		order := s.Order
		if order == "" {
			order = Asc
		}
		if order != Asc && order != Desc {
			return nil, fmt.Errorf("%w: sort order %q", ErrInvalidQuery, s.Order)
		}
		body["sort"] = []any{map[string]any{s.Field: map[string]any{"order": order}}}
	}
	if opts.From > 0 {
		body["from"] = opts.From
	}
	if opts.Size > 0 {
		body["size"] = opts.Size
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("events: encode query: %w", err)
	}
	q.body = b
	return q, nil
}

func term(field, value string) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}
