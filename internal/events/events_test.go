package events

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/novax/internal/address"
)

func testContract(t *testing.T) address.Address {
	t.Helper()
	b := make([]byte, 32)
	b[8], b[9] = 0x05, 0x00
	for i := 10; i < 32; i++ {
		b[i] = 0x05
	}
	a, err := address.FromBytes(b)
	require.NoError(t, err)
	return a
}

func TestBuildQuery(t *testing.T) {
	contract := testContract(t)
	from := time.Unix(1700000000, 0)
	to := time.Unix(1700003600, 0)

	q, err := buildQuery(contract, "swap", Options{
		From:      20,
		Size:      10,
		Sort:      &Sort{Field: "timestamp", Order: Desc},
		Timestamp: &TimestampRange{From: from, To: to},
	}, []Filter{{Position: 1, Value: []byte{0x2a}}})
	require.NoError(t, err)

	want := fmt.Sprintf(`{
		"query": {"bool": {"filter": [
			{"term": {"address": %q}},
			{"term": {"identifier": "swap"}},
			{"term": {"topics": "73776170"}},
			{"term": {"topics": "2a"}},
			{"range": {"timestamp": {"gte": 1700000000, "lte": 1700003600}}}
		]}},
		"sort": [{"timestamp": {"order": "desc"}}],
		"from": 20,
		"size": 10
	}`, contract.Bech32())
	assert.JSONEq(t, want, string(q.body))
	assert.Equal(t, []topicFilter{{0, "73776170"}, {2, "2a"}}, q.topics)
}

func TestBuildQueryMinimal(t *testing.T) {
	contract := testContract(t)
	q, err := buildQuery(contract, "swap", Options{Timestamp: &TimestampRange{}}, nil)
	require.NoError(t, err)
	want := fmt.Sprintf(`{"query": {"bool": {"filter": [
		{"term": {"address": %q}},
		{"term": {"identifier": "swap"}},
		{"term": {"topics": "73776170"}}
	]}}}`, contract.Bech32())
	assert.JSONEq(t, want, string(q.body))
}

func TestBuildQueryInvalid(t *testing.T) {
	contract := testContract(t)
	tests := []struct {
		name       string
		identifier string
		opts       Options
		filters    []Filter
	}{
		{"empty identifier", "", Options{}, nil},
		{"negative size", "swap", Options{Size: -1}, nil},
		{"negative position", "swap", Options{}, []Filter{{Position: -1}}},
		{"sort without field", "swap", Options{Sort: &Sort{Order: Asc}}, nil},
		{"bad order", "swap", Options{Sort: &Sort{Field: "timestamp", Order: "up"}}, nil},
		{"inverted range", "swap", Options{Timestamp: &TimestampRange{From: time.Unix(10, 0), To: time.Unix(5, 0)}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildQuery(contract, tt.identifier, tt.opts, tt.filters)
			require.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

type fakeSearcher struct {
	response string
	err      error
	body     []byte
}

func (f *fakeSearcher) Search(_ context.Context, body []byte) ([]byte, error) {
	f.body = body
	return []byte(f.response), f.err
}

func hit(t *testing.T, id string, topics []string, data string) string {
	t.Helper()
	return fmt.Sprintf(`{"_id":%q,"_source":{"txHash":"tx-%s","address":%q,"identifier":"swap","topics":[%s],"data":%q,"order":2,"timestamp":1700000000}}`,
		id, id, testContract(t).Bech32(), `"`+strings.Join(topics, `","`)+`"`, data)
}

func hitsResponse(hits ...string) string {
	return `{"took":1,"hits":{"total":{"value":` + fmt.Sprint(len(hits)) + `},"hits":[` + strings.Join(hits, ",") + `]}}`
}

type swap struct {
	Pair   string
	Amount *big.Int
}

var swapDecoder = DecoderFunc[swap](func(fields [][]byte, data []byte) (swap, error) {
	if len(fields) != 1 {
		return swap{}, fmt.Errorf("expected 1 field, got %d", len(fields))
	}
	return swap{Pair: string(fields[0]), Amount: new(big.Int).SetBytes(data)}, nil
})

func TestExecute(t *testing.T) {
	swapHex := hex.EncodeToString([]byte("swap"))
	pairA := hex.EncodeToString([]byte("A-B"))
	s := &fakeSearcher{response: hitsResponse(
		hit(t, "1", []string{swapHex, pairA}, "64"),
		hit(t, "2", []string{swapHex, hex.EncodeToString([]byte("C-D"))}, "01"),
	)}

	records, err := Execute(context.Background(), NewExecutor(s), swapDecoder, testContract(t), "swap", Options{Size: 5})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "A-B", records[0].Event.Pair)
	assert.Equal(t, int64(100), records[0].Event.Amount.Int64())
	assert.Equal(t, Metadata{
		TxHash:     "tx-1",
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		Address:    testContract(t),
		Identifier: "swap",
		Order:      2,
	}, records[0].Metadata)
	assert.Equal(t, "C-D", records[1].Event.Pair)
	assert.Contains(t, string(s.body), `"size":5`)
}

func TestExecuteChecksTopicPositions(t *testing.T) {
	swapHex := hex.EncodeToString([]byte("swap"))
	target := hex.EncodeToString([]byte("A-B"))
	s := &fakeSearcher{response: hitsResponse(
		hit(t, "1", []string{swapHex, target}, ""),
		hit(t, "2", []string{target, swapHex}, ""),
		hit(t, "3", []string{swapHex}, ""),
	)}

	records, err := Execute(context.Background(), NewExecutor(s), RawDecoder, testContract(t), "swap", Options{},
		Filter{Position: 0, Value: []byte("A-B")})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tx-1", records[0].Metadata.TxHash)
	assert.Equal(t, [][]byte{[]byte("A-B")}, records[0].Event.Fields)
}

func TestExecuteShortPage(t *testing.T) {
	swapHex := hex.EncodeToString([]byte("swap"))
	target := hex.EncodeToString([]byte("A-B"))
	s := &fakeSearcher{response: hitsResponse(
		hit(t, "1", []string{swapHex, "00", target}, ""),
		hit(t, "2", []string{swapHex, target}, ""),
	)}

	records, err := Execute(context.Background(), NewExecutor(s), RawDecoder, testContract(t), "swap", Options{From: 10, Size: 2},
		Filter{Position: 0, Value: []byte("A-B")})
	require.NoError(t, err)
	require.Len(t, records, 1, "the hit with the value at another position is dropped after paging")
	assert.Equal(t, "tx-2", records[0].Metadata.TxHash)
	assert.Contains(t, string(s.body), `"from":10`)
	assert.Contains(t, string(s.body), `"size":2`)
}

func TestExecuteEmpty(t *testing.T) {
	s := &fakeSearcher{response: hitsResponse()}
	records, err := Execute(context.Background(), NewExecutor(s), RawDecoder, testContract(t), "swap", Options{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExecuteMalformedHit(t *testing.T) {
	swapHex := hex.EncodeToString([]byte("swap"))
	good := hit(t, "1", []string{swapHex, "00"}, "")
	tests := []struct {
		name string
		hit  string
	}{
		{"no source", `{"_id":"x"}`},
		{"no tx hash", `{"_source":{"identifier":"swap","address":"` + testContract(t).Bech32() + `","topics":[],"timestamp":1}}`},
		{"bad address", strings.Replace(good, testContract(t).Bech32(), "erd1nope", 1)},
		{"bad topic", hit(t, "1", []string{swapHex, "zz"}, "")},
		{"bad data", hit(t, "1", []string{swapHex, "00"}, "xyz")},
		{"string timestamp", strings.Replace(good, `"timestamp":1700000000`, `"timestamp":"soon"`, 1)},
		{"decoder failure", hit(t, "1", []string{swapHex}, "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearcher{response: hitsResponse(good, tt.hit)}
			_, err := Execute(context.Background(), NewExecutor(s), swapDecoder, testContract(t), "swap", Options{})
			require.ErrorIs(t, err, ErrMalformedHit)
		})
	}
}

func TestExecuteBadResponse(t *testing.T) {
	for _, resp := range []string{`not json`, `{"hits":{}}`} {
		s := &fakeSearcher{response: resp}
		_, err := Execute(context.Background(), NewExecutor(s), RawDecoder, testContract(t), "swap", Options{})
		require.ErrorIs(t, err, ErrSearch)
		require.False(t, errors.Is(err, ErrMalformedHit))
	}
}

func TestHTTPSearcher(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/events/_search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"size":1}`, string(body))
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, hitsResponse())
	}))
	defer srv.Close()

	s := NewHTTPSearcher(SearcherConfig{URL: srv.URL + "/", Index: "events", MaxRetries: 2})
	resp, err := s.Search(context.Background(), []byte(`{"size":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, hitsResponse(), string(resp))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSearcherClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"parsing_exception","reason":"unknown query [nope]"},"status":400}`)
	}))
	defer srv.Close()

	s := NewHTTPSearcher(SearcherConfig{URL: srv.URL, Index: "events", MaxRetries: 3})
	_, err := s.Search(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, ErrSearch)
	assert.Contains(t, err.Error(), "unknown query [nope]")
	assert.Equal(t, int32(1), calls.Load())
}
