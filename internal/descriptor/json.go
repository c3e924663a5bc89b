package descriptor

import (
	"encoding/json"
	"fmt"
	"time"
)

// MarshalJSON renders a FileType as its snake_case wire form ("pe", "elf", "mach").
func (t FileType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the snake_case wire form of a FileType.
func (t *FileType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseFileType(s)
	if !ok {
		return fmt.Errorf("descriptor: unknown file_type %q", s)
	}
	*t = parsed
	return nil
}

// architectureJSON is the on-disk shape for Architecture: known values
// round-trip through their name, unknown ones keep the raw machine value so
// sidecars never lose information about a binary we couldn't classify.
type architectureJSON struct {
	Name string  `json:"name"`
	Raw  *uint32 `json:"raw,omitempty"`
}

// MarshalJSON renders an Architecture as its snake_case name, or as
// {"name":"unknown","raw":N} when the underlying machine value was not
// recognized.
func (a Architecture) MarshalJSON() ([]byte, error) {
	if a.kind == archUnknown && a.raw != 0 {
		raw := a.raw
		return json.Marshal(architectureJSON{Name: "unknown", Raw: &raw})
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either the bare string form or the
// {"name":...,"raw":...} object form produced by MarshalJSON.
func (a *Architecture) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, ok := ParseArchitecture(s)
		if !ok {
			*a = Architecture{kind: archUnknown}
			return nil
		}
		*a = parsed
		return nil
	}

	var obj architectureJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("descriptor: invalid architecture: %w", err)
	}
	if obj.Name == "unknown" || obj.Name == "" {
		var raw uint32
		if obj.Raw != nil {
			raw = *obj.Raw
		}
		*a = ArchUnknown(raw)
		return nil
	}
	parsed, ok := ParseArchitecture(obj.Name)
	if !ok {
		return fmt.Errorf("descriptor: unknown architecture %q", obj.Name)
	}
	*a = parsed
	return nil
}

// timestampLayout stores createdAt at microsecond precision without a zone
// offset, matching spec.md's "UTC, microsecond precision, stored without
// zone" requirement for Variant.createdAt.
const timestampLayout = "2006-01-02T15:04:05.000000"

// MarshalTimestamp renders t at the wire precision used for createdAt fields.
func MarshalTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses the wire form produced by MarshalTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, time.UTC)
}

// MarshalJSON renders CreatedAt without a zone suffix, at microsecond precision.
func (v Variant) MarshalJSON() ([]byte, error) {
	type wire struct {
		Digest     string     `json:"digest"`
		Signature  string     `json:"signature"`
		CreatedAt  string     `json:"created_at"`
		Descriptor Descriptor `json:"descriptor"`
	}
	return json.Marshal(wire{
		Digest:     v.Digest,
		Signature:  v.Signature,
		CreatedAt:  MarshalTimestamp(v.CreatedAt),
		Descriptor: v.Descriptor,
	})
}

// UnmarshalJSON parses the wire form produced by MarshalJSON.
func (v *Variant) UnmarshalJSON(data []byte) error {
	var wire struct {
		Digest     string     `json:"digest"`
		Signature  string     `json:"signature"`
		CreatedAt  string     `json:"created_at"`
		Descriptor Descriptor `json:"descriptor"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	createdAt, err := ParseTimestamp(wire.CreatedAt)
	if err != nil {
		return fmt.Errorf("descriptor: invalid created_at: %w", err)
	}
	*v = Variant{
		Digest:     wire.Digest,
		Signature:  wire.Signature,
		CreatedAt:  createdAt,
		Descriptor: wire.Descriptor,
	}
	return nil
}

type metadataWire struct {
	Digest      string       `json:"digest"`
	Signature   string       `json:"signature"`
	CreatedAt   string       `json:"created_at"`
	Descriptors []Descriptor `json:"descriptors"`
}

// MarshalJSON renders CreatedAt without a zone suffix, at microsecond precision.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataWire{
		Digest:      m.Digest,
		Signature:   m.Signature,
		CreatedAt:   MarshalTimestamp(m.CreatedAt),
		Descriptors: m.Descriptors,
	})
}

// UnmarshalJSON parses the wire form produced by MarshalJSON.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var wire metadataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	createdAt, err := ParseTimestamp(wire.CreatedAt)
	if err != nil {
		return fmt.Errorf("descriptor: invalid created_at: %w", err)
	}
	*m = Metadata{
		Digest:      wire.Digest,
		Signature:   wire.Signature,
		CreatedAt:   createdAt,
		Descriptors: wire.Descriptors,
	}
	return nil
}
