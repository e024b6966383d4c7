package wallet

import (
	"log/slog"
	"strings"
	"time"

	"github.com/chestnut-wallet/chestnut/cashu/nut04"
	"github.com/lightningnetwork/lnd/clock"
)

// ResolveReason says how a mint quote got resolved, or why it did not.
type ResolveReason int

const (
	// AlreadyIssued means ecash for the quote was already issued,
	// either by a previous run or by the background quote watcher.
	AlreadyIssued ResolveReason = iota
	// JustRedeemed means this call redeemed the quote.
	JustRedeemed
	// StillPending means the invoice for the quote has not been
	// paid yet.
	StillPending
	// TimedOut means the wait loop gave up before the invoice got
	// paid. The quote can still be redeemed later.
	TimedOut
)

func (r ResolveReason) String() string {
	switch r {
	case AlreadyIssued:
		return "already issued"
	case JustRedeemed:
		return "just redeemed"
	case StillPending:
		return "still pending"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// ReconcileOutcome is the result of one attempt to resolve a mint quote.
type ReconcileOutcome struct {
	QuoteId string
	Reason  ResolveReason
}

// Resolved reports whether ecash for the quote is in the wallet.
func (o ReconcileOutcome) Resolved() bool {
	return o.Reason == AlreadyIssued || o.Reason == JustRedeemed
}

// quoteOps is the slice of mint operations the reconciliation
// logic drives.
type quoteOps interface {
	// quoteState reads the current lifecycle state of the quote.
	quoteState(quoteId string) (nut04.State, error)
	// redeem attempts to convert the paid quote into ecash.
	// The mint issues ecash at most once per quote.
	redeem(quoteId string) error
}

type reconciler struct {
	ops   quoteOps
	clock clock.Clock
	sleep func(time.Duration)
}

func newReconciler(ops quoteOps) *reconciler {
	return &reconciler{
		ops:   ops,
		clock: clock.NewDefaultClock(),
		sleep: time.Sleep,
	}
}

type redeemErrorClass int

const (
	// redeemErrDuplicate signals the quote was redeemed before,
	// possibly by someone else.
	redeemErrDuplicate redeemErrorClass = iota
	// redeemErrPending signals the invoice has not been paid yet.
	redeemErrPending
	// redeemErrFatal is any error not recognized as duplicate or
	// pending. Assumed non-transient.
	redeemErrFatal
)

// classifyRedeemError maps the message of an error returned on a mint
// call to a recovery action. Mints do not report error codes
// consistently across implementations, so the message text is the
// only usable signal. All matching lives here so the wait loop and
// the manual check can never disagree on what an error means.
func classifyRedeemError(err error) redeemErrorClass {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "already issued"),
		strings.Contains(msg, "already spent"),
		strings.Contains(msg, "already minted"):
		return redeemErrDuplicate
	case strings.Contains(msg, "pending"),
		strings.Contains(msg, "not paid"),
		strings.Contains(msg, "not been paid"),
		strings.Contains(msg, "unpaid"):
		return redeemErrPending
	default:
		return redeemErrFatal
	}
}

// resolveOnce makes a single attempt at resolving the quote. It returns
// an error only for failures classified as fatal; a quote redeemed by
// a concurrent actor resolves as AlreadyIssued, never as an error.
func (r *reconciler) resolveOnce(quoteId string) (ReconcileOutcome, error) {
	state, err := r.ops.quoteState(quoteId)
	if err != nil {
		return ReconcileOutcome{}, err
	}

	// already redeemed, a mint call would only return a duplicate error
	if state == nut04.Issued {
		return ReconcileOutcome{QuoteId: quoteId, Reason: AlreadyIssued}, nil
	}

	err = r.ops.redeem(quoteId)
	if err == nil {
		return ReconcileOutcome{QuoteId: quoteId, Reason: JustRedeemed}, nil
	}

	switch classifyRedeemError(err) {
	case redeemErrDuplicate:
		// someone else may have just redeemed the quote. The quote
		// state settles it: ISSUED confirms the ecash exists, anything
		// else means the duplicate signal was ambiguous and the quote
		// is treated as pending rather than failing the caller
		if state, err := r.ops.quoteState(quoteId); err == nil && state == nut04.Issued {
			return ReconcileOutcome{QuoteId: quoteId, Reason: AlreadyIssued}, nil
		}
		return ReconcileOutcome{QuoteId: quoteId, Reason: StillPending}, nil
	case redeemErrPending:
		return ReconcileOutcome{QuoteId: quoteId, Reason: StillPending}, nil
	default:
		return ReconcileOutcome{}, err
	}
}

// waitForPayment polls until the quote resolves, a fatal error occurs
// or the timeout elapses. Timing out is not an error: the outcome
// tells the caller to check the quote again later.
func (r *reconciler) waitForPayment(quoteId string, timeout, pollInterval time.Duration) (ReconcileOutcome, error) {
	deadline := r.clock.Now().Add(timeout)

	for {
		r.sleep(pollInterval)
		if r.clock.Now().After(deadline) {
			return ReconcileOutcome{QuoteId: quoteId, Reason: TimedOut}, nil
		}

		outcome, err := r.resolveOnce(quoteId)
		if err != nil {
			return ReconcileOutcome{}, err
		}
		if outcome.Reason != StillPending {
			return outcome, nil
		}
	}
}

// WaitForInvoicePayment waits for the invoice of a previously requested
// quote to be paid and redeems it. It tolerates the quote being
// redeemed concurrently by the background quote watcher or another
// wallet process: a quote redeemed by someone else still resolves
// as AlreadyIssued.
func (w *Wallet) WaitForInvoicePayment(quoteId string, timeout, pollInterval time.Duration) (ReconcileOutcome, error) {
	outcome, err := newReconciler(w).waitForPayment(quoteId, timeout, pollInterval)
	if err != nil {
		return ReconcileOutcome{}, err
	}

	w.syncQuoteRecord(outcome)
	return outcome, nil
}

// CheckMintQuote makes a single attempt at resolving a quote. It is
// used to resume a quote after WaitForInvoicePayment timed out or the
// process was restarted, and is safe to call repeatedly: checking an
// already redeemed quote resolves as AlreadyIssued.
func (w *Wallet) CheckMintQuote(quoteId string) (ReconcileOutcome, error) {
	outcome, err := newReconciler(w).resolveOnce(quoteId)
	if err != nil {
		return ReconcileOutcome{}, err
	}

	w.syncQuoteRecord(outcome)
	return outcome, nil
}

// syncQuoteRecord updates the wallet's local record of a quote that
// got resolved without a mint call from this process. The local state
// is only a cache of what the mint reported.
func (w *Wallet) syncQuoteRecord(outcome ReconcileOutcome) {
	if outcome.Reason != AlreadyIssued {
		return
	}
	if quote := w.db.GetMintQuote(outcome.QuoteId); quote != nil && quote.State != nut04.Issued {
		if err := w.db.UpdateMintQuoteState(outcome.QuoteId, nut04.Issued); err != nil {
			w.logger.Error("could not update mint quote", slog.String("quote", outcome.QuoteId),
				slog.String("error", err.Error()))
		}
	}
}

func (w *Wallet) quoteState(quoteId string) (nut04.State, error) {
	quoteResponse, err := GetMintQuoteState(w.currentMint, quoteId)
	if err != nil {
		return nut04.Unknown, err
	}
	return quoteResponse.State, nil
}

func (w *Wallet) redeem(quoteId string) error {
	return w.MintProofs(quoteId)
}
