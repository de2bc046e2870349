package solana

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleParsedTransfer = `{
  "slot": 250000000,
  "blockTime": 1700000000,
  "meta": {"err": null, "fee": 5000},
  "transaction": {
    "signatures": ["5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"],
    "message": {
      "instructions": [
        {"programId": "ComputeBudget111111111111111111111111111111", "accounts": [], "data": "3DTZbgwsozUF"},
        {"program": "spl-memo", "programId": "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr", "parsed": "order-42"},
        {"program": "system", "programId": "11111111111111111111111111111111",
         "parsed": {"type": "transfer", "info": {"source": "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", "destination": "DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy", "lamports": 2500000000}}}
      ]
    }
  }
}`

func TestDecodeTransactionResult_Null(t *testing.T) {
	res, err := DecodeTransactionResult([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = DecodeTransactionResult(nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestDecodeTransactionResult_Invalid(t *testing.T) {
	_, err := DecodeTransactionResult([]byte("{not json"))
	assert.Error(t, err)
}

func TestToRawTransaction(t *testing.T) {
	res, err := DecodeTransactionResult([]byte(sampleParsedTransfer))
	require.NoError(t, err)
	require.NotNil(t, res)

	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	bt := solana.UnixTimeSeconds(1_700_000_000)
	entry := &rpc.TransactionSignature{Signature: sig, Slot: 250000000, BlockTime: &bt}

	raw := toRawTransaction(entry, res)

	assert.Equal(t, sig.String(), raw.Signature)
	assert.Equal(t, uint64(250000000), raw.Slot)
	assert.False(t, raw.Failed)
	require.NotNil(t, raw.BlockTime)
	assert.True(t, raw.BlockTime.Equal(time.Unix(1_700_000_000, 0)))
	require.NotNil(t, raw.Meta)
	assert.Equal(t, uint64(5000), raw.Meta.Fee)
	assert.NotEmpty(t, raw.Raw)

	require.Len(t, raw.Instructions, 3)

	assert.False(t, raw.Instructions[0].Parsed)
	assert.Equal(t, "ComputeBudget111111111111111111111111111111", raw.Instructions[0].ProgramID)

	assert.True(t, raw.Instructions[1].Parsed, "memo string payload counts as parsed")
	assert.Empty(t, raw.Instructions[1].Type)

	assert.True(t, raw.Instructions[2].Parsed)
	assert.Equal(t, "transfer", raw.Instructions[2].Type)
	assert.Equal(t, json.Number("2500000000"), raw.Instructions[2].Info["lamports"])
}

func TestToRawTransaction_FailedAndMissingMeta(t *testing.T) {
	res := &TransactionResult{}
	entry := &rpc.TransactionSignature{
		Signature: solana.MustSignatureFromBase58("2TgM4N8qCMqLvfR8dxqTQgKygPNzT5KQkN5b5sT7eZPEkdxyLTXGnNQB3j7KG4DPFg5Qez5yNJBQRQ5r7DDnFfjG"),
		Err:       map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
	}

	raw := toRawTransaction(entry, res)
	assert.True(t, raw.Failed)
	assert.Nil(t, raw.Meta)
	assert.Nil(t, raw.BlockTime)

	_, ok := Classify(raw, testWallet)
	assert.False(t, ok)
}

func TestDecodeThenClassify(t *testing.T) {
	res, err := DecodeTransactionResult([]byte(sampleParsedTransfer))
	require.NoError(t, err)

	sig := solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
	tx, ok := Classify(toRawTransaction(&rpc.TransactionSignature{Signature: sig}, res), testWallet)
	require.True(t, ok)

	assert.Equal(t, CategorySOLTransfer, tx.Category)
	require.NotNil(t, tx.Amount)
	assert.Equal(t, "2.5", *tx.Amount)
}
