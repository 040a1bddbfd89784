package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// jsonNormalizer canonicalizes JSON: sorted object keys, no insignificant
// whitespace, numeric literal text preserved verbatim.
type jsonNormalizer struct{}

func (jsonNormalizer) Kind() string { return "json" }

func (jsonNormalizer) Normalize(content []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, wrapError(KindParse, "NORM-JSON-001", "json does not parse", err)
	}
	if dec.More() {
		return nil, newError(KindParse, "NORM-JSON-002", "trailing data after json value")
	}
	var sb strings.Builder
	if err := writeCanonicalJSON(&sb, v); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// yamlNormalizer canonicalizes YAML by decoding it and re-encoding the value
// tree as canonical JSON. Two YAML files with the same meaning (regardless of
// comments, quoting style, or flow vs block layout) normalize identically.
type yamlNormalizer struct{}

func (yamlNormalizer) Kind() string { return "yaml" }

func (yamlNormalizer) Normalize(content []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(content, &v); err != nil {
		return nil, wrapError(KindParse, "NORM-YAML-001", "yaml does not parse", err)
	}
	var sb strings.Builder
	if err := writeCanonicalJSON(&sb, v); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func writeCanonicalJSON(sb *strings.Builder, v any) error {
	switch x := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if x {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case json.Number:
		sb.WriteString(x.String())
	case string:
		b, err := json.Marshal(x)
		if err != nil {
			return wrapError(KindEncode, "NORM-ENC-001", "string encode failed", err)
		}
		sb.Write(b)
	case int:
		sb.WriteString(strconv.Itoa(x))
	case int64:
		sb.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		sb.WriteString(strconv.FormatUint(x, 10))
	case float64:
		sb.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	case time.Time:
		sb.WriteString(strconv.Quote(x.UTC().Format(time.RFC3339Nano)))
	case []any:
		sb.WriteString("[")
		for i, e := range x {
			if i > 0 {
				sb.WriteString(",")
			}
			if err := writeCanonicalJSON(sb, e); err != nil {
				return err
			}
		}
		sb.WriteString("]")
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(",")
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return wrapError(KindEncode, "NORM-ENC-001", "key encode failed", err)
			}
			sb.Write(kb)
			sb.WriteString(":")
			if err := writeCanonicalJSON(sb, x[k]); err != nil {
				return err
			}
		}
		sb.WriteString("}")
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			ks, ok := k.(string)
			if !ok {
				return newError(KindParse, "NORM-ENC-002", "non-string mapping key")
			}
			m[ks] = e
		}
		return writeCanonicalJSON(sb, m)
	default:
		return newError(KindEncode, "NORM-ENC-003", fmt.Sprintf("unsupported value type %T", v))
	}
	return nil
}
