package executor

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/gateway"
	"github.com/dmagro/novax/internal/wallet"
)

// fakeGateway answers the gateway endpoints the backends use with canned
// data and records what it receives.
type fakeGateway struct {
	t *testing.T

	mu sync.Mutex

	nonce           uint64
	pendingPolls    int
	alwaysPending   bool
	failSend        bool
	transactionJSON string
	simulationJSON  string
	queryJSON       string

	sent      []gateway.Transaction
	simulated []gateway.Transaction
	queries   []gateway.VMQuery
	polls     int
}

const testNetworkConfig = `{"config":{"erd_chain_id":"T","erd_min_gas_price":1000000000,"erd_min_gas_limit":50000,"erd_gas_per_data_byte":1500,"erd_min_transaction_version":1,"erd_round_duration":6000}}`

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/network/config":
		writeData(w, testNetworkConfig)

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/address/"):
		addr := strings.TrimPrefix(path, "/address/")
		writeData(w, `{"account":{"address":"`+addr+`","nonce":`+itoa(f.nonce)+`,"balance":"0"}}`)

	case r.Method == http.MethodPost && path == "/transaction/send":
		var tx gateway.Transaction
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&tx))
		f.sent = append(f.sent, tx)
		if f.failSend {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeData(w, `{"txHash":"h1"}`)

	case r.Method == http.MethodPost && path == "/transaction/simulate":
		var tx gateway.Transaction
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&tx))
		f.simulated = append(f.simulated, tx)
		writeData(w, f.simulationJSON)

	case r.Method == http.MethodGet && path == "/transaction/h1/process-status":
		f.polls++
		if f.alwaysPending || f.polls <= f.pendingPolls {
			writeData(w, `{"status":"pending"}`)
			return
		}
		writeData(w, `{"status":"success"}`)

	case r.Method == http.MethodGet && path == "/transaction/h1":
		writeData(w, `{"transaction":`+f.transactionJSON+`}`)

	case r.Method == http.MethodPost && path == "/vm-values/query":
		var q gateway.VMQuery
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&q))
		f.queries = append(f.queries, q)
		writeData(w, f.queryJSON)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGateway) sentTransactions() []gateway.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Transaction(nil), f.sent...)
}

func (f *fakeGateway) simulatedTransactions() []gateway.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Transaction(nil), f.simulated...)
}

func (f *fakeGateway) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeGateway) seenQueries() []gateway.VMQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.VMQuery(nil), f.queries...)
}

func writeData(w http.ResponseWriter, data string) {
	_, _ = io.WriteString(w, `{"data":`+data+`,"error":"","code":"successful"}`)
}

func itoa(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func startGateway(t *testing.T, f *fakeGateway) *gateway.Client {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return gateway.NewClient(gateway.ClientConfig{URL: srv.URL, Timeout: time.Second, Logger: zerolog.Nop()})
}

func testWallet(t *testing.T) *wallet.KeyWallet {
	t.Helper()
	w, err := wallet.FromSeed(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)
	return w
}

func testContract(t *testing.T) address.Address {
	t.Helper()
	b := append(make([]byte, 8), bytes.Repeat([]byte{0x05}, 24)...)
	a, err := address.FromBytes(b)
	require.NoError(t, err)
	return a
}
