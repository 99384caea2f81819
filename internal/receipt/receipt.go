// Package receipt models transaction receipts returned by a backend and
// extracts call outcomes from them: success verdict, smart-contract result
// data and deployed contract addresses.
package receipt

// Status values reported for a processed transaction.
const (
	StatusSuccess    = "success"
	StatusSuccessful = "successful"
	StatusExecuted   = "executed"
	StatusFail       = "fail"
	StatusInvalid    = "invalid"
	StatusPending    = "pending"
)

// Event identifiers the extractor understands.
const (
	EventSignalError      = "signalError"
	EventInternalVMErrors = "internalVMErrors"
	EventSCDeploy         = "SCDeploy"
	EventWriteLog         = "writeLog"
	EventCompletedTx      = "completedTxEvent"
)

// SmartContractResult is a follow-up transaction generated by the network
// to carry a call's return data, or a gas refund.
type SmartContractResult struct {
	Hash          string `json:"hash,omitempty"`
	Nonce         uint64 `json:"nonce"`
	Sender        string `json:"sender,omitempty"`
	Receiver      string `json:"receiver,omitempty"`
	Data          string `json:"data"`
	IsRefund      bool   `json:"isRefund,omitempty"`
	ReturnMessage string `json:"returnMessage,omitempty"`
}

// Event is an entry of the event-log block. Topics and Data are base64 in
// JSON, as the gateway sends them.
type Event struct {
	Address    string   `json:"address"`
	Identifier string   `json:"identifier"`
	Topics     [][]byte `json:"topics"`
	Data       []byte   `json:"data,omitempty"`
}

// Logs is the event-log block of a transaction.
type Logs struct {
	Address string  `json:"address"`
	Events  []Event `json:"events"`
}

// Receipt is the processed form of a transaction. It is produced by a
// backend and must not be modified afterwards.
type Receipt struct {
	Hash                 string                `json:"hash,omitempty"`
	Status               string                `json:"status"`
	SmartContractResults []SmartContractResult `json:"smartContractResults,omitempty"`
	Logs                 *Logs                 `json:"logs,omitempty"`
}

// IsFinal reports whether status is terminal, i.e. polling can stop.
func IsFinal(status string) bool {
	switch status {
	case StatusSuccess, StatusSuccessful, StatusExecuted, StatusFail, StatusInvalid:
		return true
	default:
		return false
	}
}

func isSuccessStatus(status string) bool {
	switch status {
	case StatusSuccess, StatusSuccessful, StatusExecuted:
		return true
	default:
		return false
	}
}

func isErrorEvent(identifier string) bool {
	return identifier == EventSignalError || identifier == EventInternalVMErrors
}

// events returns the receipt events in order, an empty slice without logs.
func (r *Receipt) events() []Event {
	if r.Logs == nil {
		return nil
	}
	return r.Logs.Events
}
