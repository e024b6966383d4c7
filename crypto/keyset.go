package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// mint url to keyset id to keyset
type KeysetsMap map[string]map[string]WalletKeyset

// WalletKeyset holds the public keys of a keyset from a mint.
type WalletKeyset struct {
	Id         string
	MintURL    string
	Unit       string
	Active     bool
	PublicKeys map[uint64]*secp256k1.PublicKey
}

// DeriveKeysetId computes the keyset id from the keyset's public keys
// as specified in NUT-02.
func DeriveKeysetId(keys map[uint64]*secp256k1.PublicKey) string {
	amounts := make([]uint64, len(keys))
	i := 0
	for amount := range keys {
		amounts[i] = amount
		i++
	}
	sort.Slice(amounts, func(i, j int) bool {
		return amounts[i] < amounts[j]
	})

	pubkeys := make([]byte, 0)
	for _, amount := range amounts {
		pubkeys = append(pubkeys, keys[amount].SerializeCompressed()...)
	}
	hash := sha256.Sum256(pubkeys)

	return "00" + hex.EncodeToString(hash[:])[:14]
}

type walletKeysetTemp struct {
	Id         string
	MintURL    string
	Unit       string
	Active     bool
	PublicKeys map[uint64]string
}

func (wk *WalletKeyset) MarshalJSON() ([]byte, error) {
	temp := walletKeysetTemp{
		Id:      wk.Id,
		MintURL: wk.MintURL,
		Unit:    wk.Unit,
		Active:  wk.Active,
	}

	temp.PublicKeys = make(map[uint64]string, len(wk.PublicKeys))
	for amount, key := range wk.PublicKeys {
		temp.PublicKeys[amount] = hex.EncodeToString(key.SerializeCompressed())
	}

	return json.Marshal(temp)
}

func (wk *WalletKeyset) UnmarshalJSON(data []byte) error {
	var temp walletKeysetTemp
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	wk.Id = temp.Id
	wk.MintURL = temp.MintURL
	wk.Unit = temp.Unit
	wk.Active = temp.Active

	wk.PublicKeys = make(map[uint64]*secp256k1.PublicKey, len(temp.PublicKeys))
	for amount, keyHex := range temp.PublicKeys {
		keyBytes, err := hex.DecodeString(keyHex)
		if err != nil {
			return err
		}
		key, err := secp256k1.ParsePubKey(keyBytes)
		if err != nil {
			return err
		}
		wk.PublicKeys[amount] = key
	}

	return nil
}
