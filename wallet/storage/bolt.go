package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chestnut-wallet/chestnut/cashu"
	"github.com/chestnut-wallet/chestnut/cashu/nut04"
	"github.com/chestnut-wallet/chestnut/crypto"
	bolt "go.etcd.io/bbolt"
)

const (
	keysetsBucket    = "keysets"
	proofsBucket     = "proofs"
	mintQuotesBucket = "mint_quotes"
)

var ErrQuoteNotFound = errors.New("mint quote not found")

type BoltDB struct {
	bolt *bolt.DB
}

func InitBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(filepath.Join(path, "wallet.db"), 0600,
		&bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening wallet db: %v", err)
	}

	boltdb := &BoltDB{bolt: db}
	if err := boltdb.initWalletBuckets(); err != nil {
		return nil, fmt.Errorf("error setting up wallet db: %v", err)
	}

	return boltdb, nil
}

func (db *BoltDB) initWalletBuckets() error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(proofsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(keysetsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(mintQuotesBucket)); err != nil {
			return err
		}
		return nil
	})
}

func (db *BoltDB) SaveProofs(proofs cashu.Proofs) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		for _, proof := range proofs {
			key := []byte(proof.Secret)
			jsonProof, err := json.Marshal(proof)
			if err != nil {
				return fmt.Errorf("invalid proof: %v", err)
			}
			if err := proofsb.Put(key, jsonProof); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) GetProofs() cashu.Proofs {
	proofs := cashu.Proofs{}

	if err := db.bolt.View(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))

		return proofsb.ForEach(func(k, v []byte) error {
			var proof cashu.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				return err
			}
			proofs = append(proofs, proof)
			return nil
		})
	}); err != nil {
		return cashu.Proofs{}
	}

	return proofs
}

func (db *BoltDB) GetProofsByKeysetId(id string) cashu.Proofs {
	proofs := cashu.Proofs{}

	if err := db.bolt.View(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))

		return proofsb.ForEach(func(k, v []byte) error {
			var proof cashu.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				return err
			}
			if proof.Id == id {
				proofs = append(proofs, proof)
			}
			return nil
		})
	}); err != nil {
		return cashu.Proofs{}
	}

	return proofs
}

func (db *BoltDB) DeleteProof(secret string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		val := proofsb.Get([]byte(secret))
		if val == nil {
			return errors.New("proof does not exist")
		}
		return proofsb.Delete([]byte(secret))
	})
}

func (db *BoltDB) SaveKeyset(keyset *crypto.WalletKeyset) error {
	jsonKeyset, err := json.Marshal(keyset)
	if err != nil {
		return fmt.Errorf("invalid keyset: %v", err)
	}

	return db.bolt.Update(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))
		mintBucket, err := keysetsb.CreateBucketIfNotExists([]byte(keyset.MintURL))
		if err != nil {
			return err
		}
		return mintBucket.Put([]byte(keyset.Id), jsonKeyset)
	})
}

func (db *BoltDB) GetKeysets() crypto.KeysetsMap {
	keysets := make(crypto.KeysetsMap)

	if err := db.bolt.View(func(tx *bolt.Tx) error {
		keysetsb := tx.Bucket([]byte(keysetsBucket))

		return keysetsb.ForEachBucket(func(mintURL []byte) error {
			mintKeysets := make(map[string]crypto.WalletKeyset)
			mintBucket := keysetsb.Bucket(mintURL)

			if err := mintBucket.ForEach(func(k, v []byte) error {
				var keyset crypto.WalletKeyset
				if err := json.Unmarshal(v, &keyset); err != nil {
					return err
				}
				mintKeysets[keyset.Id] = keyset
				return nil
			}); err != nil {
				return err
			}

			keysets[string(mintURL)] = mintKeysets
			return nil
		})
	}); err != nil {
		return nil
	}

	return keysets
}

func (db *BoltDB) SaveMintQuote(quote MintQuote) error {
	jsonQuote, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("invalid mint quote: %v", err)
	}

	return db.bolt.Update(func(tx *bolt.Tx) error {
		quotesb := tx.Bucket([]byte(mintQuotesBucket))
		return quotesb.Put([]byte(quote.QuoteId), jsonQuote)
	})
}

func (db *BoltDB) GetMintQuote(quoteId string) *MintQuote {
	var quote *MintQuote

	if err := db.bolt.View(func(tx *bolt.Tx) error {
		quotesb := tx.Bucket([]byte(mintQuotesBucket))
		quoteBytes := quotesb.Get([]byte(quoteId))
		if quoteBytes == nil {
			return ErrQuoteNotFound
		}

		var q MintQuote
		if err := json.Unmarshal(quoteBytes, &q); err != nil {
			return err
		}
		quote = &q
		return nil
	}); err != nil {
		return nil
	}

	return quote
}

func (db *BoltDB) GetMintQuotes() []MintQuote {
	quotes := []MintQuote{}

	if err := db.bolt.View(func(tx *bolt.Tx) error {
		quotesb := tx.Bucket([]byte(mintQuotesBucket))

		return quotesb.ForEach(func(k, v []byte) error {
			var quote MintQuote
			if err := json.Unmarshal(v, &quote); err != nil {
				return err
			}
			quotes = append(quotes, quote)
			return nil
		})
	}); err != nil {
		return []MintQuote{}
	}

	return quotes
}

func (db *BoltDB) UpdateMintQuoteState(quoteId string, state nut04.State) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		quotesb := tx.Bucket([]byte(mintQuotesBucket))
		quoteBytes := quotesb.Get([]byte(quoteId))
		if quoteBytes == nil {
			return ErrQuoteNotFound
		}

		var quote MintQuote
		if err := json.Unmarshal(quoteBytes, &quote); err != nil {
			return err
		}

		quote.State = state
		jsonQuote, err := json.Marshal(quote)
		if err != nil {
			return err
		}
		return quotesb.Put([]byte(quoteId), jsonQuote)
	})
}

func (db *BoltDB) Close() error {
	return db.bolt.Close()
}
