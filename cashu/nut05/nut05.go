// Package nut05 has the types to melt ecash into a Lightning payment.
// See https://github.com/cashubtc/nuts/blob/main/05.md
package nut05

import "github.com/chestnut-wallet/chestnut/cashu"

type PostMeltQuoteBolt11Request struct {
	Request string `json:"request"`
	Unit    string `json:"unit"`
}

type PostMeltQuoteBolt11Response struct {
	Quote      string `json:"quote"`
	Amount     uint64 `json:"amount"`
	FeeReserve uint64 `json:"fee_reserve"`
	State      string `json:"state"`
	Paid       bool   `json:"paid"`
	Expiry     uint64 `json:"expiry"`
	Preimage   string `json:"payment_preimage,omitempty"`
}

type PostMeltBolt11Request struct {
	Quote  string       `json:"quote"`
	Inputs cashu.Proofs `json:"inputs"`
}
