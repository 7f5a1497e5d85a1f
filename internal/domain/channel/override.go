package channel

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Override is a per-channel display field that is either Unset (fall back to
// the user's defaults) or Custom(value). It is stored as a nullable column and
// serialized as JSON null or a string.
type Override struct {
	value string
	set   bool
}

func Unset() Override { return Override{} }

func Custom(v string) Override { return Override{value: v, set: true} }

// ParseOverride maps request input to an Override. The empty string clears.
func ParseOverride(v string) Override {
	if v == "" {
		return Unset()
	}
	return Custom(v)
}

func (o Override) IsSet() bool { return o.set }

func (o Override) Get() (string, bool) { return o.value, o.set }

// Or returns the custom value, or fallback when unset.
func (o Override) Or(fallback string) string {
	if o.set {
		return o.value
	}
	return fallback
}

func (o Override) String() string {
	if !o.set {
		return "<unset>"
	}
	return o.value
}

func (o Override) Value() (driver.Value, error) {
	if !o.set {
		return nil, nil
	}
	return o.value, nil
}

func (o *Override) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = Unset()
	case string:
		*o = Custom(v)
	case []byte:
		*o = Custom(string(v))
	default:
		return fmt.Errorf("override: unsupported scan type %T", src)
	}
	return nil
}

func (o Override) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Override) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Unset()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*o = ParseOverride(s)
	return nil
}
