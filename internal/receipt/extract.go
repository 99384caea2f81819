package receipt

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmagro/novax/internal/address"
	"github.com/dmagro/novax/internal/codec"
)

var (
	// ErrNoSmartContractResult is returned when no result entry carries
	// decodable return data.
	ErrNoSmartContractResult = errors.New("receipt: no smart contract result in the response")

	// ErrNoSCDeployLogInTheResponse is returned when a deploy receipt has no
	// SCDeploy event.
	ErrNoSCDeployLogInTheResponse = errors.New("receipt: no SCDeploy log in the response")

	// ErrMalformedResult is returned when a result entry announces return data
	// that cannot be read.
	ErrMalformedResult = errors.New("receipt: malformed smart contract result")
)

// okReturnCode is "ok" hex encoded, the first segment of successful return data.
const okReturnCode = "6f6b"

// IsSuccess reports whether the top-level status is a success status and no
// error-signalling event was logged. An error event overrides the status.
func IsSuccess(r *Receipt) bool {
	if r == nil || !isSuccessStatus(r.Status) {
		return false
	}
	for _, e := range r.events() {
		if isErrorEvent(e.Identifier) {
			return false
		}
	}
	return true
}

// FindSmartContractResult returns the return-data parts of the first
// non-refund result entry whose data starts with the "ok" return code. When no
// result transaction carries them, a writeLog event is searched for the same
// data.
func FindSmartContractResult(r *Receipt) ([][]byte, error) {
	if r == nil {
		return nil, ErrNoSmartContractResult
	}

	for _, scr := range r.SmartContractResults {
		if scr.IsRefund {
			continue
		}
		parts, ok, err := parseReturnData(scr.Data)
		if err != nil {
			return nil, fmt.Errorf("result %s: %w", scr.Hash, err)
		}
		if ok {
			return parts, nil
		}
	}

	for _, e := range r.events() {
		if e.Identifier != EventWriteLog {
			continue
		}
		parts, ok, err := parseReturnData(string(e.Data))
		if err != nil {
			return nil, fmt.Errorf("writeLog event: %w", err)
		}
		if ok {
			return parts, nil
		}
	}

	return nil, ErrNoSmartContractResult
}

// parseReturnData splits "@6f6b@<hex>@<hex>..." into decoded parts. ok is
// false when data is not ok-prefixed return data.
func parseReturnData(data string) (parts [][]byte, ok bool, err error) {
	if !strings.HasPrefix(data, "@") {
		return nil, false, nil
	}
	segments := strings.Split(data[1:], "@")
	if segments[0] != okReturnCode {
		return nil, false, nil
	}

	parts = make([][]byte, 0, len(segments)-1)
	for i, s := range segments[1:] {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, false, fmt.Errorf("%w: segment %d: %v", ErrMalformedResult, i+1, err)
		}
		parts = append(parts, b)
	}
	return parts, true, nil
}

// FindDeployedAddress returns the contract address announced by the SCDeploy
// event.
func FindDeployedAddress(r *Receipt) (address.Address, error) {
	if r == nil {
		return address.Address{}, ErrNoSCDeployLogInTheResponse
	}
	for _, e := range r.events() {
		if e.Identifier != EventSCDeploy {
			continue
		}
		if len(e.Topics) == 0 {
			return address.Address{}, fmt.Errorf("%w: SCDeploy event without topics", ErrMalformedResult)
		}
		a, err := address.FromBytes(e.Topics[0])
		if err != nil {
			return address.Address{}, fmt.Errorf("SCDeploy address topic: %w", err)
		}
		return a, nil
	}
	return address.Address{}, ErrNoSCDeployLogInTheResponse
}

// Decode finds the result data and decodes it as shape.
func Decode(r *Receipt, shape codec.Type) (any, error) {
	parts, err := FindSmartContractResult(r)
	if err != nil {
		return nil, err
	}
	return codec.DecodeMulti(parts, shape)
}

// ErrorMessage returns the failure reason recorded in the receipt, or "" if
// none is found.
func ErrorMessage(r *Receipt) string {
	if r == nil {
		return ""
	}
	for _, e := range r.events() {
		if !isErrorEvent(e.Identifier) {
			continue
		}
		if len(e.Topics) > 1 && len(e.Topics[1]) > 0 {
			return string(e.Topics[1])
		}
		if len(e.Data) > 0 {
			return string(e.Data)
		}
	}
	for _, scr := range r.SmartContractResults {
		if scr.ReturnMessage != "" {
			return scr.ReturnMessage
		}
	}
	return ""
}
