package store

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const (
	versionsKey = "versions"
	codeKey     = "code"
	encodingKey = "encoding"

	// base64Encoding marks a code that is not valid UTF-8 and is stored
	// base64-encoded so it round-trips byte for byte.
	base64Encoding = "base64"
)

// newUnit returns an empty unit for id.
func newUnit(id string) ([]byte, error) {
	unit, err := sjson.SetBytes([]byte(`{}`), "id", id)
	if err != nil {
		return nil, err
	}
	unit, err = sjson.SetRawBytes(unit, "metadata", []byte(`{}`))
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(unit, versionsKey, []byte(`{}`))
}

// validUnit reports whether unit is a JSON object whose versions member,
// when present, is an object.
func validUnit(unit []byte) error {
	if !gjson.ValidBytes(unit) {
		return fmt.Errorf("%w: invalid JSON", ErrCorrupt)
	}
	root := gjson.ParseBytes(unit)
	if !root.IsObject() {
		return fmt.Errorf("%w: unit is not an object", ErrCorrupt)
	}
	if v := root.Get(versionsKey); v.Exists() && !v.IsObject() {
		return fmt.Errorf("%w: versions is not an object", ErrCorrupt)
	}
	return nil
}

// setVersion upserts versions.<variant>.code in unit and returns the
// formatted result. A nil unit starts a fresh one.
func setVersion(unit []byte, id, variant, content string) ([]byte, error) {
	var err error
	if unit == nil {
		if unit, err = newUnit(id); err != nil {
			return nil, err
		}
	} else if err := validUnit(unit); err != nil {
		return nil, err
	}

	// sjson creates arrays for numeric path components unless the parent
	// already exists as an object.
	if !gjson.GetBytes(unit, versionsKey).Exists() {
		if unit, err = sjson.SetRawBytes(unit, versionsKey, []byte(`{}`)); err != nil {
			return nil, err
		}
	}
	if !gjson.GetBytes(unit, "id").Exists() {
		if unit, err = sjson.SetBytes(unit, "id", id); err != nil {
			return nil, err
		}
	}

	path := versionsKey + "." + escapePath(versionKey(unit, variant))
	if !gjson.GetBytes(unit, path).IsObject() {
		if unit, err = sjson.SetRawBytes(unit, path, []byte(`{}`)); err != nil {
			return nil, err
		}
	}

	code, encoding := encodeCode(content)
	if unit, err = sjson.SetBytes(unit, path+"."+codeKey, code); err != nil {
		return nil, err
	}
	switch {
	case encoding != "":
		unit, err = sjson.SetBytes(unit, path+"."+encodingKey, encoding)
	case gjson.GetBytes(unit, path+"."+encodingKey).Exists():
		unit, err = sjson.DeleteBytes(unit, path+"."+encodingKey)
	}
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(unit), nil
}

// versionKey returns the key variant is stored under in unit: the exact
// name when present, else an existing key equal to it ignoring case, else
// the name itself. Units written by the IDE plugin use upper-case keys
// such as "USER".
func versionKey(unit []byte, variant string) string {
	versions := gjson.GetBytes(unit, versionsKey)
	if versions.Get(escapePath(variant)).Exists() {
		return variant
	}
	key := variant
	versions.ForEach(func(k, _ gjson.Result) bool {
		if strings.EqualFold(k.String(), variant) {
			key = k.String()
			return false
		}
		return true
	})
	return key
}

// encodeCode returns content as stored in a unit. JSON strings cannot hold
// arbitrary bytes, so content that is not valid UTF-8 is base64-encoded.
func encodeCode(content string) (code, encoding string) {
	if utf8.ValidString(content) {
		return content, ""
	}
	return base64.StdEncoding.EncodeToString([]byte(content)), base64Encoding
}

// decodeCode reverses encodeCode for one version object.
func decodeCode(version gjson.Result) (string, error) {
	code := version.Get(codeKey)
	if code.Type != gjson.String {
		return "", fmt.Errorf("%w: code is not a string", ErrCorrupt)
	}
	switch enc := version.Get(encodingKey).String(); enc {
	case "":
		return code.String(), nil
	case base64Encoding:
		data, err := base64.StdEncoding.DecodeString(code.String())
		if err != nil {
			return "", fmt.Errorf("%w: bad base64 code: %v", ErrCorrupt, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: unknown code encoding %q", ErrCorrupt, enc)
	}
}

// getVersion reads versions.<variant>.code from unit.
func getVersion(unit []byte, variant string) (string, bool, error) {
	if err := validUnit(unit); err != nil {
		return "", false, err
	}
	version := gjson.GetBytes(unit, versionsKey+"."+escapePath(versionKey(unit, variant)))
	if !version.Get(codeKey).Exists() {
		return "", false, nil
	}
	content, err := decodeCode(version)
	if err != nil {
		return "", false, fmt.Errorf("variant %q: %w", variant, err)
	}
	return content, true, nil
}

// decodeRecord converts unit into a Record. Versions whose code cannot be
// decoded are skipped.
func decodeRecord(unit []byte, fallbackID string) (Record, error) {
	if err := validUnit(unit); err != nil {
		return Record{}, err
	}
	root := gjson.ParseBytes(unit)

	rec := Record{
		ID:       root.Get("id").String(),
		Metadata: map[string]any{},
		Versions: map[string]Version{},
	}
	if rec.ID == "" {
		rec.ID = fallbackID
	}
	if md, ok := root.Get("metadata").Value().(map[string]any); ok {
		rec.Metadata = md
	}
	root.Get(versionsKey).ForEach(func(key, value gjson.Result) bool {
		if code, err := decodeCode(value); err == nil {
			rec.Versions[key.String()] = Version{Code: code}
		}
		return true
	})
	return rec, nil
}

// escapePath escapes ASCII punctuation so a variant name is a single
// literal gjson/sjson path component.
func escapePath(component string) string {
	var b strings.Builder
	for _, r := range component {
		if r < 0x80 && !isPlain(byte(r)) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isPlain(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}
