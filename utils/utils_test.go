package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmjones1979/ampersend-sdk/types"
)

const anvilKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		price   string
		want    string
		wantErr bool
	}{
		{"$0.001", "1000", false},
		{"0.001", "1000", false},
		{"$1", "1000000", false},
		{"$1,000.5", "1000500000", false},
		{"$0.0000001", "", true},
		{"$0", "", true},
		{"-1", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			got, err := ParsePrice(tt.price, types.USDCDecimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAmountAtLeast(t *testing.T) {
	ok, err := AmountAtLeast("1000", "999")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AmountAtLeast("999", "1000")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = AmountAtLeast("1.5", "1")
	assert.Error(t, err, "atomic amounts are integers")

	_, err = AmountAtLeast("-1", "1")
	assert.Error(t, err)

	_, err = AmountAtLeast("x", "1")
	assert.Error(t, err)
}

func TestPersonalMessageRoundTrip(t *testing.T) {
	key, err := PrivateKeyFromHex(anvilKey)
	require.NoError(t, err)

	sig, err := SignPersonalMessage("hello", key)
	require.NoError(t, err)
	assert.Len(t, sig, 132)

	ok, err := VerifyPersonalMessage("hello", sig, crypto.PubkeyToAddress(key.PublicKey))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPersonalMessage("other", sig, crypto.PubkeyToAddress(key.PublicKey))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandomNonceUnique(t *testing.T) {
	a, err := RandomNonce()
	require.NoError(t, err)
	b, err := RandomNonce()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParseConfig(t *testing.T) {
	valid := `{
		"logLevel": "debug",
		"wallet": {"privateKey": "0xabc"},
		"api": {"baseUrl": "https://api.example.com/", "timeoutMs": 5000},
		"facilitator": {"url": "https://x402.org/facilitator", "maxRetries": 2}
	}`
	cfg, err := ParseConfig([]byte(valid))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5000, cfg.API.TimeoutMs)

	tests := map[string]string{
		"missing key":         `{"wallet": {}}`,
		"bad level":           `{"logLevel": "loud", "wallet": {"privateKey": "0xabc"}}`,
		"bad api url":         `{"wallet": {"privateKey": "0xabc"}, "api": {"baseUrl": "nope"}}`,
		"smart w/o validator": `{"wallet": {"privateKey": "0xabc", "smartAccountAddress": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"}}`,
		"bad json":            `{`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(body))
			require.Error(t, err)
			assert.True(t, types.IsCode(err, types.ErrConfigError))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"wallet": {"privateKey": "0xabc"}}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, types.IsCode(err, types.ErrConfigError))
}

func TestValidateRequirements(t *testing.T) {
	err := ValidateRequirements(&types.PaymentRequirements{Scheme: "exact"})
	assert.True(t, types.IsCode(err, types.ErrInvalidRequirements))

	err = ValidateRequirements(&types.PaymentRequirements{
		Scheme: "exact", Network: "base-sepolia", MaxAmountRequired: "1000",
		PayTo: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", MaxTimeoutSeconds: 600,
		Asset: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	})
	assert.NoError(t, err)
}

func TestChecksumAddress(t *testing.T) {
	got, ok := ChecksumAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	require.True(t, ok)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", got)

	_, ok = ChecksumAddress("0x123")
	assert.False(t, ok)
}
