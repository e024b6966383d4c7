package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"testing"

	"github.com/chestnut-wallet/chestnut/cashu"
	"github.com/chestnut-wallet/chestnut/crypto"
	"github.com/chestnut-wallet/chestnut/wallet/storage"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// testMintKeys derives a deterministic private key per amount so tests
// can sign blinded messages the way a mint would.
func testMintKeys(amounts []uint64) map[uint64]*secp256k1.PrivateKey {
	keys := make(map[uint64]*secp256k1.PrivateKey, len(amounts))
	for _, amount := range amounts {
		hash := sha256.Sum256([]byte(fmt.Sprintf("testmintkey_%d", amount)))
		keys[amount] = secp256k1.PrivKeyFromBytes(hash[:])
	}
	return keys
}

func signBlindedMessage(B_ *secp256k1.PublicKey, k *secp256k1.PrivateKey) *secp256k1.PublicKey {
	var bpoint, result secp256k1.JacobianPoint
	B_.AsJacobian(&bpoint)

	secp256k1.ScalarMultNonConst(&k.Key, &bpoint, &result)
	result.ToAffine()

	return secp256k1.NewPublicKey(&result.X, &result.Y)
}

func testWallet(keysetId string) *Wallet {
	return &Wallet{keyset: &crypto.WalletKeyset{Id: keysetId}}
}

func TestCreateBlindedMessages(t *testing.T) {
	keysetId := "009a1f293253e41e"
	wallet := testWallet(keysetId)

	amounts := []uint64{420, 10000000, 2500}
	for _, amount := range amounts {
		blindedMessages, secrets, rs, err := wallet.createBlindedMessages(amount)
		if err != nil {
			t.Fatalf("error creating blinded messages: %v", err)
		}

		if blindedMessages.Amount() != amount {
			t.Errorf("expected '%v' but got '%v' instead", amount, blindedMessages.Amount())
		}
		if len(secrets) != len(blindedMessages) || len(rs) != len(blindedMessages) {
			t.Errorf("expected '%v' secrets and blinding factors but got '%v' and '%v'",
				len(blindedMessages), len(secrets), len(rs))
		}

		for _, message := range blindedMessages {
			if message.Id != keysetId {
				t.Errorf("expected '%v' but got '%v' instead", keysetId, message.Id)
			}
		}
	}
}

func TestConstructProofs(t *testing.T) {
	keysetId := "00b3e89101cc0ec3"
	wallet := testWallet(keysetId)

	var amount uint64 = 10
	blindedMessages, secrets, rs, err := wallet.createBlindedMessages(amount)
	if err != nil {
		t.Fatalf("error creating blinded messages: %v", err)
	}

	mintKeys := testMintKeys(cashu.AmountSplit(amount))
	keyset := &crypto.WalletKeyset{
		Id:         keysetId,
		PublicKeys: make(map[uint64]*secp256k1.PublicKey),
	}
	for amt, k := range mintKeys {
		keyset.PublicKeys[amt] = k.PubKey()
	}

	signatures := make(cashu.BlindedSignatures, len(blindedMessages))
	for i, message := range blindedMessages {
		B_bytes, err := hex.DecodeString(message.B_)
		if err != nil {
			t.Fatal(err)
		}
		B_, err := secp256k1.ParsePubKey(B_bytes)
		if err != nil {
			t.Fatal(err)
		}

		C_ := signBlindedMessage(B_, mintKeys[message.Amount])
		signatures[i] = cashu.BlindedSignature{
			Amount: message.Amount,
			C_:     hex.EncodeToString(C_.SerializeCompressed()),
			Id:     keysetId,
		}
	}

	proofs, err := constructProofs(signatures, secrets, rs, keyset)
	if err != nil {
		t.Fatalf("error constructing proofs: %v", err)
	}

	if proofs.Amount() != amount {
		t.Errorf("expected '%v' but got '%v' instead", amount, proofs.Amount())
	}
	for i, proof := range proofs {
		Cbytes, err := hex.DecodeString(proof.C)
		if err != nil {
			t.Fatal(err)
		}
		C, err := secp256k1.ParsePubKey(Cbytes)
		if err != nil {
			t.Fatal(err)
		}

		if !crypto.Verify(secrets[i], mintKeys[proof.Amount], C) {
			t.Errorf("proof for amount '%v' failed verification", proof.Amount)
		}
	}
}

func TestConstructProofsError(t *testing.T) {
	keyset := &crypto.WalletKeyset{
		Id:         "00b3e89101cc0ec3",
		PublicKeys: make(map[uint64]*secp256k1.PublicKey),
	}

	signatures := cashu.BlindedSignatures{
		{
			Amount: 2,
			C_:     "02762f5e23574da3527af71a3b5ab4119eb06d2aede26773ceb94c0dd90bd595e3",
			Id:     "00b3e89101cc0ec3",
		},
	}
	secrets := []string{
		"11e932dc8645669eb65305114a40fef80147393aa4cd8e01c254ebdd7efa4f62",
	}

	// no blinding factors
	if _, err := constructProofs(signatures, secrets, []*secp256k1.PrivateKey{}, keyset); err == nil {
		t.Error("expected error but got nil")
	}

	// keyset without a key for the signature amount
	r, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := constructProofs(signatures, secrets, []*secp256k1.PrivateKey{r}, keyset); err == nil {
		t.Error("expected error but got nil")
	}
}

func TestRestoreProofs(t *testing.T) {
	db, err := storage.InitBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	wallet := &Wallet{db: db, logger: slog.Default()}

	proofs := cashu.Proofs{
		{
			Amount: 2,
			Id:     "009a1f293253e41e",
			Secret: "407915bc212be61a77e3e6d2aeb4c727980bda51cd06a6afc29e2861768a7837",
			C:      "02bc9097997d81afb2cc7346b5e4345a9346bd2a506eb7958598a72f0cf85163ea",
		},
		{
			Amount: 8,
			Id:     "009a1f293253e41e",
			Secret: "fe15109314e61d7756b0f8ee0f23a624acaa3f4e042f61433c728c7057b931be",
			C:      "029e8e5050b890a7d6c0968db16bc1d5d5fa040ea1de284f6ec69d61299f671059",
		},
	}

	wallet.restoreProofs(proofs)
	if wallet.GetBalance() != 10 {
		t.Errorf("expected '%v' but got '%v' instead", 10, wallet.GetBalance())
	}

	// restoring after storage closed only logs; the cache must not
	// claim proofs that were not persisted
	db.Close()
	wallet.restoreProofs(cashu.Proofs{{Amount: 4, Id: "009a1f293253e41e", Secret: "s", C: "c"}})
	if wallet.GetBalance() != 10 {
		t.Errorf("expected '%v' but got '%v' instead", 10, wallet.GetBalance())
	}
}

func TestGetBalanceByMints(t *testing.T) {
	db, err := storage.InitBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mintURL := "http://127.0.0.1:3338"
	keyset := &crypto.WalletKeyset{
		Id:      "009a1f293253e41e",
		MintURL: mintURL,
		Unit:    cashu.Sat,
		Active:  true,
	}
	if err := db.SaveKeyset(keyset); err != nil {
		t.Fatal(err)
	}

	proofs := cashu.Proofs{
		{
			Amount: 2,
			Id:     keyset.Id,
			Secret: "407915bc212be61a77e3e6d2aeb4c727980bda51cd06a6afc29e2861768a7837",
			C:      "02bc9097997d81afb2cc7346b5e4345a9346bd2a506eb7958598a72f0cf85163ea",
		},
		{
			Amount: 8,
			Id:     keyset.Id,
			Secret: "fe15109314e61d7756b0f8ee0f23a624acaa3f4e042f61433c728c7057b931be",
			C:      "029e8e5050b890a7d6c0968db16bc1d5d5fa040ea1de284f6ec69d61299f671059",
		},
	}
	if err := db.SaveProofs(proofs); err != nil {
		t.Fatal(err)
	}

	wallet := &Wallet{db: db}
	balanceByMints := wallet.GetBalanceByMints()
	if len(balanceByMints) != 1 {
		t.Fatalf("expected balance for '%v' mint but got '%v'", 1, len(balanceByMints))
	}
	if balanceByMints[mintURL] != 10 {
		t.Errorf("expected '%v' but got '%v' instead", 10, balanceByMints[mintURL])
	}
}
