// Package nut04 has the types to request minting of new ecash.
// See https://github.com/cashubtc/nuts/blob/main/04.md
package nut04

import (
	"encoding/json"

	"github.com/chestnut-wallet/chestnut/cashu"
)

// State is the lifecycle state of a mint quote as reported by the mint.
type State int

const (
	// Unpaid means the invoice for the quote has not been paid.
	Unpaid State = iota
	// Paid means the invoice was paid but ecash has not been issued.
	Paid
	// Issued means ecash was already issued for the quote. Terminal.
	Issued
	Unknown
)

func (state State) String() string {
	switch state {
	case Unpaid:
		return "UNPAID"
	case Paid:
		return "PAID"
	case Issued:
		return "ISSUED"
	default:
		return "unknown"
	}
}

func StringToState(state string) State {
	switch state {
	case "UNPAID":
		return Unpaid
	case "PAID":
		return Paid
	case "ISSUED":
		return Issued
	}
	return Unknown
}

type PostMintQuoteBolt11Request struct {
	Amount uint64 `json:"amount"`
	Unit   string `json:"unit"`
}

type PostMintQuoteBolt11Response struct {
	Quote   string `json:"quote"`
	Request string `json:"request"`
	State   State  `json:"state"`
	Expiry  uint64 `json:"expiry"`
}

type temporaryQuoteResponse struct {
	Quote   string `json:"quote"`
	Request string `json:"request"`
	State   string `json:"state"`
	// older mints only report a paid bool
	Paid   *bool  `json:"paid,omitempty"`
	Expiry uint64 `json:"expiry"`
}

func (quoteResponse *PostMintQuoteBolt11Response) MarshalJSON() ([]byte, error) {
	var temp temporaryQuoteResponse = temporaryQuoteResponse{
		Quote:   quoteResponse.Quote,
		Request: quoteResponse.Request,
		State:   quoteResponse.State.String(),
		Expiry:  quoteResponse.Expiry,
	}
	return json.Marshal(temp)
}

func (quoteResponse *PostMintQuoteBolt11Response) UnmarshalJSON(data []byte) error {
	var temp temporaryQuoteResponse
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	quoteResponse.Quote = temp.Quote
	quoteResponse.Request = temp.Request
	quoteResponse.Expiry = temp.Expiry

	if len(temp.State) > 0 {
		quoteResponse.State = StringToState(temp.State)
	} else if temp.Paid != nil {
		// derive state from legacy paid field
		if *temp.Paid {
			quoteResponse.State = Paid
		} else {
			quoteResponse.State = Unpaid
		}
	} else {
		quoteResponse.State = Unknown
	}

	return nil
}

type PostMintBolt11Request struct {
	Quote   string                `json:"quote"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostMintBolt11Response struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}
