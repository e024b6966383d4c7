package storage

import (
	"github.com/chestnut-wallet/chestnut/cashu"
	"github.com/chestnut-wallet/chestnut/cashu/nut04"
	"github.com/chestnut-wallet/chestnut/crypto"
)

type WalletDB interface {
	SaveProofs(cashu.Proofs) error
	GetProofs() cashu.Proofs
	GetProofsByKeysetId(string) cashu.Proofs
	DeleteProof(string) error

	SaveKeyset(*crypto.WalletKeyset) error
	GetKeysets() crypto.KeysetsMap

	SaveMintQuote(MintQuote) error
	GetMintQuote(string) *MintQuote
	GetMintQuotes() []MintQuote
	UpdateMintQuoteState(quoteId string, state nut04.State) error

	Close() error
}

// MintQuote is a local record of a quote requested from a mint.
// The state field is a cache of the last state the wallet observed;
// the mint remains the authority on the quote's lifecycle.
type MintQuote struct {
	QuoteId        string
	Mint           string
	PaymentRequest string
	Amount         uint64
	State          nut04.State
	CreatedAt      int64
	QuoteExpiry    uint64
}
