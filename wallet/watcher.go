package wallet

import (
	"log/slog"
	"time"

	"github.com/chestnut-wallet/chestnut/cashu/nut04"
)

// checkPendingQuotes runs in the background when the wallet loads and
// tries to redeem quotes whose invoices got paid while the wallet was
// not running. It may race with a concurrent WaitForInvoicePayment on
// the same quote; both sides tolerate losing that race.
func (w *Wallet) checkPendingQuotes() {
	defer close(w.watcherDone)

	now := time.Now().Unix()

	for _, quote := range w.db.GetMintQuotes() {
		if quote.State == nut04.Issued {
			continue
		}
		if quote.Mint != w.currentMint {
			w.logger.Debug("skipping pending quote from another mint",
				slog.String("quote", quote.QuoteId), slog.String("mint", quote.Mint))
			continue
		}
		if quote.QuoteExpiry > 0 && int64(quote.QuoteExpiry) < now {
			w.logger.Debug("skipping expired quote", slog.String("quote", quote.QuoteId))
			continue
		}

		outcome, err := w.CheckMintQuote(quote.QuoteId)
		if err != nil {
			w.logger.Error("could not check pending quote",
				slog.String("quote", quote.QuoteId), slog.String("error", err.Error()))
			continue
		}

		switch outcome.Reason {
		case JustRedeemed:
			w.logger.Info("redeemed pending quote", slog.String("quote", quote.QuoteId),
				slog.Uint64("amount", quote.Amount))
		case AlreadyIssued:
			w.logger.Debug("pending quote was already redeemed", slog.String("quote", quote.QuoteId))
		case StillPending:
			w.logger.Debug("quote invoice still unpaid", slog.String("quote", quote.QuoteId))
		}
	}
}
