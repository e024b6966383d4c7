package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/chestnut-wallet/chestnut/cashu"
	"github.com/chestnut-wallet/chestnut/cashu/nut04"
	"github.com/chestnut-wallet/chestnut/cashu/nut05"
	"github.com/chestnut-wallet/chestnut/crypto"
	"github.com/chestnut-wallet/chestnut/wallet/storage"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

var (
	ErrQuoteNotFound  = errors.New("mint quote not found in wallet")
	ErrQuoteOtherMint = errors.New("mint quote is from a different mint")
)

type Config struct {
	WalletPath     string
	CurrentMintURL string
}

type Wallet struct {
	db     storage.WalletDB
	logger *slog.Logger

	// current mint url
	currentMint string
	// active sat keyset from current mint
	keyset *crypto.WalletKeyset

	// proofs cache is shared with the background quote
	// watcher so access goes through the mutex
	mu     sync.Mutex
	proofs cashu.Proofs

	// closed when the background quote watcher finishes
	watcherDone chan struct{}
}

func InitStorage(path string) (storage.WalletDB, error) {
	// bolt db atm
	return storage.InitBolt(path)
}

func LoadWallet(config Config) (*Wallet, error) {
	db, err := InitStorage(config.WalletPath)
	if err != nil {
		return nil, fmt.Errorf("InitStorage: %v", err)
	}

	mintURL, err := url.Parse(config.CurrentMintURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mint url: %v", err)
	}

	wallet := &Wallet{
		db:          db,
		logger:      slog.Default(),
		currentMint: mintURL.String(),
	}

	keyset, err := GetMintActiveKeyset(wallet.currentMint, cashu.Sat)
	if err != nil {
		return nil, fmt.Errorf("error getting active keyset from mint: %v", err)
	}
	wallet.keyset = keyset

	// save keyset if new
	allKeysets := db.GetKeysets()
	if _, ok := allKeysets[keyset.MintURL][keyset.Id]; !ok {
		if err := db.SaveKeyset(keyset); err != nil {
			return nil, fmt.Errorf("error setting up wallet: %v", err)
		}
	}

	wallet.proofs = db.GetProofs()

	// check in the background if any previously pending
	// quotes got paid while the wallet was not running
	wallet.watcherDone = make(chan struct{})
	go wallet.checkPendingQuotes()

	return wallet, nil
}

// Shutdown waits for the background quote watcher to finish and closes
// the wallet storage. The mint issues ecash at most once per quote, so
// exiting while the watcher is between redeeming a quote and storing
// its proofs would lose the ecash. Callers must shut down before the
// process exits.
func (w *Wallet) Shutdown() error {
	if w.watcherDone != nil {
		<-w.watcherDone
	}
	return w.db.Close()
}

func (w *Wallet) CurrentMint() string {
	return w.currentMint
}

func (w *Wallet) GetBalance() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.proofs.Amount()
}

// GetBalanceByMints returns the stored balance broken down by mint.
func (w *Wallet) GetBalanceByMints() map[string]uint64 {
	balanceByMints := make(map[string]uint64)

	for mintURL, keysets := range w.db.GetKeysets() {
		for keysetId := range keysets {
			proofs := w.db.GetProofsByKeysetId(keysetId)
			balanceByMints[mintURL] += proofs.Amount()
		}
	}

	return balanceByMints
}

// RequestMint requests a quote from the current mint for the amount
// and saves the quote in the wallet for later redemption.
func (w *Wallet) RequestMint(amount uint64) (*nut04.PostMintQuoteBolt11Response, error) {
	mintRequest := nut04.PostMintQuoteBolt11Request{Amount: amount, Unit: cashu.Sat}
	mintResponse, err := PostMintQuoteBolt11(w.currentMint, mintRequest)
	if err != nil {
		return nil, err
	}

	quote := storage.MintQuote{
		QuoteId:        mintResponse.Quote,
		Mint:           w.currentMint,
		PaymentRequest: mintResponse.Request,
		Amount:         amount,
		State:          mintResponse.State,
		CreatedAt:      time.Now().Unix(),
		QuoteExpiry:    mintResponse.Expiry,
	}
	if err := w.db.SaveMintQuote(quote); err != nil {
		return nil, fmt.Errorf("error saving mint quote: %v", err)
	}

	return mintResponse, nil
}

// MintProofs redeems a paid quote: it asks the mint to sign blinded
// messages for the quote amount and stores the resulting proofs.
// The mint only issues ecash once per quote, so a concurrent
// redemption by another actor surfaces here as an error from
// the mint.
func (w *Wallet) MintProofs(quoteId string) error {
	quote := w.db.GetMintQuote(quoteId)
	if quote == nil {
		return ErrQuoteNotFound
	}
	if quote.Mint != w.currentMint {
		return ErrQuoteOtherMint
	}

	blindedMessages, secrets, rs, err := w.createBlindedMessages(quote.Amount)
	if err != nil {
		return fmt.Errorf("error creating blinded messages: %v", err)
	}

	mintRequest := nut04.PostMintBolt11Request{Quote: quoteId, Outputs: blindedMessages}
	mintResponse, err := PostMintBolt11(quote.Mint, mintRequest)
	if err != nil {
		return err
	}

	proofs, err := constructProofs(mintResponse.Signatures, secrets, rs, w.keyset)
	if err != nil {
		return fmt.Errorf("error constructing proofs: %v", err)
	}

	if err := w.storeProofs(proofs); err != nil {
		return fmt.Errorf("error storing proofs: %v", err)
	}

	if err := w.db.UpdateMintQuoteState(quoteId, nut04.Issued); err != nil {
		return fmt.Errorf("error updating mint quote: %v", err)
	}

	return nil
}

// GetMintQuote returns the wallet's local record of a quote.
func (w *Wallet) GetMintQuote(quoteId string) *storage.MintQuote {
	return w.db.GetMintQuote(quoteId)
}

// GetMintQuotes returns all quotes stored in the wallet.
func (w *Wallet) GetMintQuotes() []storage.MintQuote {
	return w.db.GetMintQuotes()
}

// Send selects proofs for the amount and returns them as a
// serialized token.
func (w *Wallet) Send(amount uint64) (string, error) {
	proofsToSend, err := w.getProofsForAmount(amount)
	if err != nil {
		return "", err
	}

	token, err := cashu.NewToken(proofsToSend, w.currentMint, cashu.Sat)
	if err != nil {
		return "", err
	}

	return token.Serialize()
}

// Receive swaps the proofs in the token for fresh ones from the mint
// and stores them. It returns the amount received.
func (w *Wallet) Receive(token cashu.Token) (uint64, error) {
	if token.Mint() != w.currentMint {
		return 0, fmt.Errorf("token is from mint '%v'. Set it as the current mint to receive", token.Mint())
	}

	outputs, secrets, rs, err := w.createBlindedMessages(token.TotalAmount())
	if err != nil {
		return 0, fmt.Errorf("error creating blinded messages: %v", err)
	}

	signatures, err := PostSwap(w.currentMint, token.Proofs(), outputs)
	if err != nil {
		return 0, err
	}

	proofs, err := constructProofs(signatures, secrets, rs, w.keyset)
	if err != nil {
		return 0, fmt.Errorf("error constructing proofs: %v", err)
	}

	if err := w.storeProofs(proofs); err != nil {
		return 0, fmt.Errorf("error storing proofs: %v", err)
	}

	return proofs.Amount(), nil
}

// Melt pays a Lightning invoice with proofs from the wallet.
func (w *Wallet) Melt(request string) (*nut05.PostMeltQuoteBolt11Response, error) {
	bolt11, err := decodepay.Decodepay(request)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice: %v", err)
	}
	if bolt11.MSatoshi == 0 {
		return nil, errors.New("invoice has no amount")
	}

	meltQuoteRequest := nut05.PostMeltQuoteBolt11Request{Request: request, Unit: cashu.Sat}
	meltQuoteResponse, err := PostMeltQuoteBolt11(w.currentMint, meltQuoteRequest)
	if err != nil {
		return nil, err
	}

	amountNeeded := meltQuoteResponse.Amount + meltQuoteResponse.FeeReserve
	proofs, err := w.getProofsForAmount(amountNeeded)
	if err != nil {
		return nil, err
	}

	meltRequest := nut05.PostMeltBolt11Request{Quote: meltQuoteResponse.Quote, Inputs: proofs}
	meltResponse, err := PostMeltBolt11(w.currentMint, meltRequest)
	if err != nil {
		// save proofs back since the payment did not happen
		w.restoreProofs(proofs)
		return nil, err
	}

	if meltResponse.State != "PAID" && !meltResponse.Paid {
		w.restoreProofs(proofs)
	}

	return meltResponse, nil
}

// restoreProofs saves proofs back to the wallet after a payment they
// were selected for did not happen.
func (w *Wallet) restoreProofs(proofs cashu.Proofs) {
	if err := w.storeProofs(proofs); err != nil {
		w.logger.Error("could not restore proofs",
			slog.Uint64("amount", proofs.Amount()), slog.String("error", err.Error()))
	}
}

// getProofsForAmount selects proofs and swaps them with the mint
// for proofs matching the exact amount. Change from the swap is
// stored back in the wallet.
func (w *Wallet) getProofsForAmount(amount uint64) (cashu.Proofs, error) {
	w.mu.Lock()
	balance := w.proofs.Amount()
	if balance < amount {
		w.mu.Unlock()
		return nil, errors.New("not enough funds")
	}

	selectedProofs := cashu.Proofs{}
	var selectedAmount uint64 = 0
	for _, proof := range w.proofs {
		selectedProofs = append(selectedProofs, proof)
		selectedAmount += proof.Amount
		if selectedAmount >= amount {
			break
		}
	}
	w.mu.Unlock()

	send, secrets, rs, err := w.createBlindedMessages(amount)
	if err != nil {
		return nil, err
	}

	change, changeSecrets, changeRs, err := w.createBlindedMessages(selectedAmount - amount)
	if err != nil {
		return nil, err
	}

	blindedMessages := make(cashu.BlindedMessages, len(send))
	copy(blindedMessages, send)
	blindedMessages = append(blindedMessages, change...)
	secrets = append(secrets, changeSecrets...)
	rs = append(rs, changeRs...)

	signatures, err := PostSwap(w.currentMint, selectedProofs, blindedMessages)
	if err != nil {
		return nil, err
	}

	if err := w.removeProofs(selectedProofs); err != nil {
		return nil, err
	}

	proofs, err := constructProofs(signatures, secrets, rs, w.keyset)
	if err != nil {
		return nil, fmt.Errorf("error constructing proofs: %v", err)
	}

	// first len(send) outputs carry the amounts to send; the mint
	// signs outputs in order so the rest are change
	proofsToSend := make(cashu.Proofs, len(send))
	copy(proofsToSend, proofs[:len(send)])

	if err := w.storeProofs(proofs[len(send):]); err != nil {
		return nil, fmt.Errorf("error storing proofs: %v", err)
	}

	return proofsToSend, nil
}

// returns blinded messages, secrets and blinding factors
func (w *Wallet) createBlindedMessages(amount uint64) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {
	splitAmounts := cashu.AmountSplit(amount)
	splitLen := len(splitAmounts)

	blindedMessages := make(cashu.BlindedMessages, splitLen)
	secrets := make([]string, splitLen)
	rs := make([]*secp256k1.PrivateKey, splitLen)

	for i, amt := range splitAmounts {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return nil, nil, nil, err
		}
		secret := hex.EncodeToString(secretBytes)

		r, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, nil, nil, err
		}

		B_, r := crypto.BlindMessage(secret, r)
		blindedMessages[i] = cashu.NewBlindedMessage(w.keyset.Id, amt, B_)
		secrets[i] = secret
		rs[i] = r
	}

	return blindedMessages, secrets, rs, nil
}

func constructProofs(blindedSignatures cashu.BlindedSignatures,
	secrets []string, rs []*secp256k1.PrivateKey, keyset *crypto.WalletKeyset) (cashu.Proofs, error) {

	sigsLen := len(blindedSignatures)
	if sigsLen != len(secrets) || sigsLen != len(rs) {
		return nil, errors.New("lengths do not match")
	}

	proofs := make(cashu.Proofs, sigsLen)
	for i, blindedSignature := range blindedSignatures {
		C_bytes, err := hex.DecodeString(blindedSignature.C_)
		if err != nil {
			return nil, err
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			return nil, err
		}

		K, ok := keyset.PublicKeys[blindedSignature.Amount]
		if !ok {
			return nil, errors.New("mint signed with unknown key")
		}

		C := crypto.UnblindSignature(C_, rs[i], K)

		proofs[i] = cashu.Proof{
			Amount: blindedSignature.Amount,
			Id:     blindedSignature.Id,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
	}

	return proofs, nil
}

func (w *Wallet) storeProofs(proofs cashu.Proofs) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.db.SaveProofs(proofs); err != nil {
		return err
	}
	w.proofs = append(w.proofs, proofs...)
	return nil
}

func (w *Wallet) removeProofs(proofs cashu.Proofs) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, proof := range proofs {
		if err := w.db.DeleteProof(proof.Secret); err != nil {
			return err
		}
	}

	remaining := make(cashu.Proofs, 0, len(w.proofs))
	for _, proof := range w.proofs {
		deleted := false
		for _, deletedProof := range proofs {
			if proof.Secret == deletedProof.Secret {
				deleted = true
				break
			}
		}
		if !deleted {
			remaining = append(remaining, proof)
		}
	}
	w.proofs = remaining

	return nil
}
