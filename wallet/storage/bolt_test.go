package storage

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/chestnut-wallet/chestnut/cashu"
	"github.com/chestnut-wallet/chestnut/cashu/nut04"
)

var (
	db *BoltDB
)

func TestMain(m *testing.M) {
	code, err := testMain(m)
	if err != nil {
		log.Println(err)
	}
	os.Exit(code)
}

func testMain(m *testing.M) (int, error) {
	dbpath := "./testdbbolt"
	err := os.MkdirAll(dbpath, 0750)
	if err != nil {
		return 1, err
	}
	db, err = InitBolt(dbpath)
	if err != nil {
		return 1, err
	}
	defer os.RemoveAll(dbpath)

	return m.Run(), nil
}

func TestProofs(t *testing.T) {
	keysetId1 := "009a1f293253e41e"
	numProofsKeysetId1 := 25
	randomProofs1 := generateRandomProofs(keysetId1, numProofsKeysetId1)

	if err := db.SaveProofs(randomProofs1); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}

	proofs := db.GetProofs()
	if len(proofs) != numProofsKeysetId1 {
		t.Fatalf("expected '%v' proofs from db but got '%v'", numProofsKeysetId1, len(proofs))
	}

	keysetId2 := "00b3e89101cc0ec3"
	numProofsKeysetId2 := 40
	randomProofs2 := generateRandomProofs(keysetId2, numProofsKeysetId2)

	if err := db.SaveProofs(randomProofs2); err != nil {
		t.Fatalf("error saving proofs: %v", err)
	}

	proofsById := db.GetProofsByKeysetId(keysetId1)
	if len(proofsById) != numProofsKeysetId1 {
		t.Fatalf("expected '%v' proofs from db for keyset '%v' but got '%v'",
			numProofsKeysetId1, keysetId1, len(proofsById))
	}

	sortProofs(randomProofs1)
	sortProofs(proofsById)
	if !reflect.DeepEqual(randomProofs1, proofsById) {
		t.Fatal("proofs from db do not match randomly generated ones saved to db")
	}

	numToDelete := 3
	for i := 0; i < numToDelete; i++ {
		if err := db.DeleteProof(randomProofs1[i].Secret); err != nil {
			t.Fatalf("error deleting proof: %v", err)
		}
	}

	proofsById = db.GetProofsByKeysetId(keysetId1)
	expectedNumProofs := numProofsKeysetId1 - numToDelete
	if len(proofsById) != expectedNumProofs {
		t.Fatalf("expected '%v' proofs from db for keyset '%v' but got '%v'",
			expectedNumProofs, keysetId1, len(proofsById))
	}

	if err := db.DeleteProof("nonexistent"); err == nil {
		t.Fatal("expected error deleting proof that does not exist but got nil")
	}
}

func TestMintQuotes(t *testing.T) {
	quote := MintQuote{
		QuoteId:        "quote1234",
		Mint:           "http://127.0.0.1:3338",
		PaymentRequest: "lnbc100n1fake",
		Amount:         21,
		State:          nut04.Unpaid,
		CreatedAt:      time.Now().Unix(),
		QuoteExpiry:    uint64(time.Now().Add(time.Minute * 10).Unix()),
	}

	if err := db.SaveMintQuote(quote); err != nil {
		t.Fatalf("error saving mint quote: %v", err)
	}

	quoteFromDb := db.GetMintQuote(quote.QuoteId)
	if quoteFromDb == nil {
		t.Fatal("expected mint quote from db but got nil")
	}
	if !reflect.DeepEqual(quote, *quoteFromDb) {
		t.Fatal("mint quote from db does not match the one saved")
	}

	if err := db.UpdateMintQuoteState(quote.QuoteId, nut04.Issued); err != nil {
		t.Fatalf("error updating mint quote state: %v", err)
	}

	quoteFromDb = db.GetMintQuote(quote.QuoteId)
	if quoteFromDb.State != nut04.Issued {
		t.Errorf("expected '%v' but got '%v' instead", nut04.Issued, quoteFromDb.State)
	}

	if quoteFromDb := db.GetMintQuote("idontexist"); quoteFromDb != nil {
		t.Errorf("expected nil quote but got '%v'", quoteFromDb)
	}

	if err := db.UpdateMintQuoteState("idontexist", nut04.Paid); err == nil {
		t.Error("expected error updating quote that does not exist but got nil")
	}

	quote2 := quote
	quote2.QuoteId = "quote5678"
	if err := db.SaveMintQuote(quote2); err != nil {
		t.Fatalf("error saving mint quote: %v", err)
	}

	quotes := db.GetMintQuotes()
	if len(quotes) != 2 {
		t.Fatalf("expected '%v' mint quotes from db but got '%v'", 2, len(quotes))
	}
}

func generateRandomProofs(keysetId string, num int) cashu.Proofs {
	proofs := make(cashu.Proofs, num)

	for i := 0; i < num; i++ {
		secretBytes := make([]byte, 32)
		rand.Read(secretBytes)

		proof := cashu.Proof{
			Amount: 1,
			Id:     keysetId,
			Secret: hex.EncodeToString(secretBytes),
			C:      hex.EncodeToString(secretBytes),
		}
		proofs[i] = proof
	}

	return proofs
}

func sortProofs(proofs cashu.Proofs) {
	sort.Slice(proofs, func(i, j int) bool {
		return proofs[i].Secret < proofs[j].Secret
	})
}
