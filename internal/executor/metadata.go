package executor

import (
	"fmt"
	"strings"
)

// CodeMetadata are the properties of deployed contract code.
type CodeMetadata struct {
	Upgradeable bool `json:"upgradeable" yaml:"upgradeable"`
	Readable    bool `json:"readable" yaml:"readable"`
	Payable     bool `json:"payable" yaml:"payable"`
	PayableBySC bool `json:"payable_by_sc" yaml:"payable_by_sc"`
}

// DefaultCodeMetadata is upgradeable and readable.
var DefaultCodeMetadata = CodeMetadata{Upgradeable: true, Readable: true}

const (
	metaUpgradeable = 0x01 // first byte
	metaReadable    = 0x04 // first byte
	metaPayable     = 0x02 // second byte
	metaPayableBySC = 0x04 // second byte
)

// Bytes returns the two-byte wire form.
func (m CodeMetadata) Bytes() [2]byte {
	var b [2]byte
	if m.Upgradeable {
		b[0] |= metaUpgradeable
	}
	if m.Readable {
		b[0] |= metaReadable
	}
	if m.Payable {
		b[1] |= metaPayable
	}
	if m.PayableBySC {
		b[1] |= metaPayableBySC
	}
	return b
}

// ParseCodeMetadata reads the two-byte wire form.
func ParseCodeMetadata(b []byte) (CodeMetadata, error) {
	if len(b) != 2 {
		return CodeMetadata{}, fmt.Errorf("executor: code metadata must be 2 bytes, got %d", len(b))
	}
	return CodeMetadata{
		Upgradeable: b[0]&metaUpgradeable != 0,
		Readable:    b[0]&metaReadable != 0,
		Payable:     b[1]&metaPayable != 0,
		PayableBySC: b[1]&metaPayableBySC != 0,
	}, nil
}

func (m CodeMetadata) String() string {
	var flags []string
	if m.Upgradeable {
		flags = append(flags, "upgradeable")
	}
	if m.Readable {
		flags = append(flags, "readable")
	}
	if m.Payable {
		flags = append(flags, "payable")
	}
	if m.PayableBySC {
		flags = append(flags, "payable-by-sc")
	}
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ",")
}
