package chain

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var creator = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

type namedSkill struct {
	SkillId     *big.Int
	Creator     common.Address
	PricePerUse *big.Int
	MetadataURI string
	IsActive    bool
	TotalCalls  *big.Int
}

func TestDecodeRecordShapes(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	tests := []struct {
		name  string
		input interface{}
	}{
		{
			name: "named struct",
			input: namedSkill{
				SkillId: big.NewInt(7), Creator: creator, PricePerUse: huge,
				MetadataURI: "ipfs://QmA", IsActive: true, TotalCalls: big.NewInt(12),
			},
		},
		{
			name: "pointer to named struct",
			input: &namedSkill{
				SkillId: big.NewInt(7), Creator: creator, PricePerUse: huge,
				MetadataURI: "ipfs://QmA", IsActive: true, TotalCalls: big.NewInt(12),
			},
		},
		{
			name:  "positional tuple",
			input: []interface{}{big.NewInt(7), creator, huge, "ipfs://QmA", true, big.NewInt(12)},
		},
		{
			name: "map with json numbers",
			input: map[string]interface{}{
				"skillId":     json.Number("7"),
				"creator":     creator.Hex(),
				"pricePerUse": "123456789012345678901234567890",
				"metadataURI": "ipfs://QmA",
				"isActive":    true,
				"totalCalls":  float64(12),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := DecodeRecord(tt.input)
			require.NoError(t, err)

			assert.Equal(t, "7", rec.Key())
			assert.Equal(t, creator.Hex(), rec.Creator)
			assert.Equal(t, 0, huge.Cmp(rec.PricePerUse), "price must keep full precision")
			assert.Equal(t, "ipfs://QmA", rec.MetadataURI)
			assert.True(t, rec.IsActive)
			assert.Equal(t, int64(12), rec.TotalCalls.Int64())
		})
	}
}

func TestDecodeRecordErrors(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
	}{
		{name: "nil", input: nil},
		{name: "short tuple", input: []interface{}{big.NewInt(1), creator}},
		{name: "fractional id", input: []interface{}{1.5, creator, big.NewInt(0), "", true, big.NewInt(0)}},
		{name: "bad address", input: []interface{}{big.NewInt(1), "not-an-address", big.NewInt(0), "", true, big.NewInt(0)}},
		{name: "unsupported type", input: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestDecodeRecordsPreservesOrder(t *testing.T) {
	input := []namedSkill{
		{SkillId: big.NewInt(3), IsActive: true},
		{SkillId: big.NewInt(1), IsActive: false},
		{SkillId: big.NewInt(2), IsActive: true},
	}

	records, err := DecodeRecords(input)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "3", records[0].Key())
	assert.Equal(t, "1", records[1].Key())
	assert.Equal(t, "2", records[2].Key())
	assert.False(t, records[1].IsActive)
	assert.Equal(t, int64(0), records[1].PricePerUse.Int64())

	_, err = DecodeRecords("nope")
	assert.Error(t, err)
}
