package identity

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s, err := GenerateSigner()
	require.NoError(t, err)

	msg := []byte(`{"side":"YES","amount":10}`)
	sig, err := s.SignMessageHex(msg)
	require.NoError(t, err)

	ok, err := VerifySignature(msg, sig, s.Address())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySignature([]byte("tampered"), sig, s.Address())
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := Authenticate(msg, strings.ToLower(s.AddressHex()), sig)
	require.NoError(t, err)
	assert.Equal(t, s.AddressHex(), got)

	other, err := GenerateSigner()
	require.NoError(t, err)
	_, err = Authenticate(msg, other.AddressHex(), sig)
	require.ErrorIs(t, err, ErrSignerMismatch)
}

func TestNewSignerFromHex(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	s, err := NewSigner(hexKey)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.Address())

	_, err = NewSigner("zz")
	require.Error(t, err)
}

func TestRecoverRejectsMalformedSignatures(t *testing.T) {
	for _, sig := range []string{"0xnothex", "0x1234", ""} {
		_, err := Recover([]byte("m"), sig)
		require.ErrorIs(t, err, ErrInvalidSignature, sig)
	}
}

func TestAddressMatcher(t *testing.T) {
	const addr = "0x52908400098527886E0F7030069857D2E4169EE7"
	m := AddressMatcher{}

	assert.True(t, m.SignerMatches(strings.ToLower(addr), addr))
	assert.False(t, m.SignerMatches("0x0000000000000000000000000000000000000001", addr))
	assert.True(t, m.SignerMatches("oracle-service", "oracle-service"))
	assert.False(t, m.SignerMatches("", ""))

	norm, err := NormalizeAddress(strings.ToLower(addr))
	require.NoError(t, err)
	assert.Equal(t, addr, norm)

	_, err = NormalizeAddress("0x123")
	require.ErrorIs(t, err, ErrInvalidAddress)
}
