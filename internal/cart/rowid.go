package cart

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// IdentityField names a line item attribute that distinguishes rows.
type IdentityField string

const (
	FieldID       IdentityField = "id"
	FieldName     IdentityField = "name"
	FieldPrice    IdentityField = "price"
	FieldQuantity IdentityField = "quantity"
)

// DefaultIdentityFields makes two adds of the same product id and name merge.
var DefaultIdentityFields = []IdentityField{FieldID, FieldName}

// ParseIdentityFields validates a configured field list. Duplicates are
// dropped and an empty list yields DefaultIdentityFields.
func ParseIdentityFields(names []string) ([]IdentityField, error) {
	seen := make(map[IdentityField]bool, len(names))
	out := make([]IdentityField, 0, len(names))
	for _, n := range names {
		f := IdentityField(strings.ToLower(strings.TrimSpace(n)))
		switch f {
		case "":
			continue
		case FieldID, FieldName, FieldPrice, FieldQuantity:
		default:
			return nil, fmt.Errorf("unknown identity field %q", n)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return DefaultIdentityFields, nil
	}
	return out, nil
}

// IdentityFor picks the configured fields out of an add request.
func IdentityFor(fields []IdentityField, id, name string, price, quantity float64) map[string]any {
	identity := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f {
		case FieldID:
			identity[string(f)] = id
		case FieldName:
			identity[string(f)] = name
		case FieldPrice:
			identity[string(f)] = price
		case FieldQuantity:
			identity[string(f)] = quantity
		}
	}
	return identity
}

// GenerateRowID derives a stable row key: the hex MD5 of id followed by the
// identity map serialized with sorted keys. Equal inputs always produce the
// same 32-character ID. It is not collision resistant against crafted input.
func GenerateRowID(id string, identity map[string]any) string {
	// encoding/json writes map keys in sorted order.
	canonical, err := json.Marshal(identity)
	if err != nil {
		canonical = []byte(fmt.Sprint(identity))
	}
	sum := md5.Sum(append([]byte(id), canonical...)) // #nosec G401 -- row key, not a security boundary
	return hex.EncodeToString(sum[:])
}
