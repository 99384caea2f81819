package output

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dmagro/novax/internal/address"
)

// Format selects a renderer.
type Format string

// Output formats.
const (
	Terminal Format = "terminal"
	JSON     Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case Terminal, JSON:
		return f, nil
	case "":
		return Terminal, nil
	default:
		return "", fmt.Errorf("invalid format %q (expected terminal or json)", s)
	}
}

// Value renders a decoded value as text: integers in decimal, bytes in hex,
// addresses in bech32, lists in brackets.
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return "<none>"
	case *big.Int:
		if x == nil {
			return "<none>"
		}
		return x.String()
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case string:
		return fmt.Sprintf("%q", x)
	case address.Address:
		return x.Bech32()
	case [][]byte:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = Value(p)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = Value(p)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}

// jsonValue maps a decoded value to a JSON-friendly form: big integers as
// decimal strings, bytes as hex strings.
func jsonValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil
		}
		return x.String()
	case []byte:
		return hex.EncodeToString(x)
	case [][]byte:
		out := make([]any, len(x))
		for i, p := range x {
			out[i] = jsonValue(p)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, p := range x {
			out[i] = jsonValue(p)
		}
		return out
	default:
		return x
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "—"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func truncateHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:8] + "…" + hash[len(hash)-6:]
}
