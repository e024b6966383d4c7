package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/chestnut-wallet/chestnut/crypto"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

type getKeysResponse struct {
	Keysets []struct {
		Id   string            `json:"id"`
		Unit string            `json:"unit"`
		Keys map[uint64]string `json:"keys"`
	} `json:"keysets"`
}

// GetMintActiveKeyset returns the mint's active keyset for the unit.
func GetMintActiveKeyset(mintURL, unit string) (*crypto.WalletKeyset, error) {
	resp, err := get(mintURL + "/v1/keys")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var keysResponse getKeysResponse
	if err := json.Unmarshal(body, &keysResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	for _, keyset := range keysResponse.Keysets {
		if keyset.Unit != unit {
			continue
		}

		publicKeys := make(map[uint64]*secp256k1.PublicKey, len(keyset.Keys))
		for amount, key := range keyset.Keys {
			pkbytes, err := hex.DecodeString(key)
			if err != nil {
				return nil, fmt.Errorf("invalid public key from mint: %v", err)
			}
			publicKey, err := secp256k1.ParsePubKey(pkbytes)
			if err != nil {
				return nil, fmt.Errorf("invalid public key from mint: %v", err)
			}
			publicKeys[amount] = publicKey
		}

		// derive id locally and check the mint is not lying about its keys
		id := crypto.DeriveKeysetId(publicKeys)
		if id != keyset.Id {
			return nil, fmt.Errorf("mint returned keyset with invalid id: expected '%v' but got '%v'",
				id, keyset.Id)
		}

		return &crypto.WalletKeyset{
			Id:         id,
			MintURL:    mintURL,
			Unit:       unit,
			Active:     true,
			PublicKeys: publicKeys,
		}, nil
	}

	return nil, errors.New("mint does not have an active keyset for unit")
}
