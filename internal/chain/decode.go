package chain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/skillforge/skillbridge/internal/skills"
)

// recordFields lists the registry tuple components in positional order.
var recordFields = []string{"skillId", "creator", "pricePerUse", "metadataURI", "isActive", "totalCalls"}

// DecodeRecords decodes a slice of registry entries. Each element may be a
// struct with named fields, a positional []interface{} tuple or a map.
func DecodeRecords(v interface{}) ([]skills.Record, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list of skills, got %T", v)
	}

	records := make([]skills.Record, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		rec, err := DecodeRecord(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("skill at index %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeRecord decodes one registry entry from either its named-field or
// positional-tuple form. Numeric fields are kept as exact integers.
func DecodeRecord(v interface{}) (skills.Record, error) {
	fields, err := fieldsOf(v)
	if err != nil {
		return skills.Record{}, err
	}

	var rec skills.Record
	if rec.ID, err = toBigInt(fields["skillId"]); err != nil {
		return skills.Record{}, fmt.Errorf("skillId: %w", err)
	}
	if rec.Creator, err = toAddress(fields["creator"]); err != nil {
		return skills.Record{}, fmt.Errorf("creator: %w", err)
	}
	if rec.PricePerUse, err = toBigInt(fields["pricePerUse"]); err != nil {
		return skills.Record{}, fmt.Errorf("pricePerUse: %w", err)
	}
	if rec.MetadataURI, err = toString(fields["metadataURI"]); err != nil {
		return skills.Record{}, fmt.Errorf("metadataURI: %w", err)
	}
	if rec.IsActive, err = toBool(fields["isActive"]); err != nil {
		return skills.Record{}, fmt.Errorf("isActive: %w", err)
	}
	if rec.TotalCalls, err = toBigInt(fields["totalCalls"]); err != nil {
		return skills.Record{}, fmt.Errorf("totalCalls: %w", err)
	}
	return rec, nil
}

func fieldsOf(v interface{}) (map[string]interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("empty skill entry")
	case []interface{}:
		if len(t) < len(recordFields) {
			return nil, fmt.Errorf("tuple has %d fields, want %d", len(t), len(recordFields))
		}
		fields := make(map[string]interface{}, len(recordFields))
		for i, name := range recordFields {
			fields[name] = t[i]
		}
		return fields, nil
	case map[string]interface{}:
		fields := make(map[string]interface{}, len(recordFields))
		for _, name := range recordFields {
			for k, val := range t {
				if strings.EqualFold(k, name) {
					fields[name] = val
					break
				}
			}
		}
		return fields, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("empty skill entry")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("unsupported skill entry type %T", v)
	}

	fields := make(map[string]interface{}, len(recordFields))
	for _, name := range recordFields {
		fv := rv.FieldByNameFunc(func(field string) bool { return strings.EqualFold(field, name) })
		if fv.IsValid() && fv.CanInterface() {
			fields[name] = fv.Interface()
		}
	}
	return fields, nil
}

func toBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case nil:
		return new(big.Int), nil
	case *big.Int:
		if n == nil {
			return new(big.Int), nil
		}
		return new(big.Int).Set(n), nil
	case big.Int:
		return new(big.Int).Set(&n), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case uint:
		return new(big.Int).SetUint64(uint64(n)), nil
	case int8:
		return big.NewInt(int64(n)), nil
	case int16:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case json.Number:
		return parseInt(n.String())
	case string:
		return parseInt(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return nil, fmt.Errorf("%v is not an integer", n)
		}
		out, _ := big.NewFloat(n).Int(nil)
		return out, nil
	}
	return nil, fmt.Errorf("unsupported numeric type %T", v)
}

func parseInt(s string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return out, nil
}

func toAddress(v interface{}) (string, error) {
	switch a := v.(type) {
	case nil:
		return common.Address{}.Hex(), nil
	case common.Address:
		return a.Hex(), nil
	case *common.Address:
		if a == nil {
			return common.Address{}.Hex(), nil
		}
		return a.Hex(), nil
	case [20]byte:
		return common.Address(a).Hex(), nil
	case string:
		if !common.IsHexAddress(a) {
			return "", fmt.Errorf("invalid address %q", a)
		}
		return common.HexToAddress(a).Hex(), nil
	}
	return "", fmt.Errorf("unsupported address type %T", v)
}

func toString(v interface{}) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", fmt.Errorf("unsupported string type %T", v)
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("unsupported boolean value %v", v)
}
