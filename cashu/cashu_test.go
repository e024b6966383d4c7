package cashu

import (
	"reflect"
	"testing"
)

func TestAmountSplit(t *testing.T) {
	tests := []struct {
		amount   uint64
		expected []uint64
	}{
		{13, []uint64{1, 4, 8}},
		{64, []uint64{64}},
		{2500, []uint64{4, 64, 128, 256, 2048}},
		{0, []uint64{}},
	}

	for _, test := range tests {
		split := AmountSplit(test.amount)
		if !reflect.DeepEqual(split, test.expected) {
			t.Errorf("expected '%v' but got '%v' instead", test.expected, split)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	proofs := Proofs{
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

	token, err := NewToken(proofs, "https://8333.space:3338", Sat)
	if err != nil {
		t.Fatal(err)
	}

	if token.TotalAmount() != 10 {
		t.Errorf("expected '%v' but got '%v' instead", 10, token.TotalAmount())
	}

	tokenstr, err := token.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if tokenstr[:len(TokenV3Prefix)] != TokenV3Prefix {
		t.Errorf("expected token prefix '%v' but got '%v' instead", TokenV3Prefix, tokenstr[:len(TokenV3Prefix)])
	}

	decoded, err := DecodeToken(tokenstr)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Mint() != "https://8333.space:3338" {
		t.Errorf("expected '%v' but got '%v' instead", "https://8333.space:3338", decoded.Mint())
	}

	if !reflect.DeepEqual(decoded.Proofs(), proofs) {
		t.Errorf("expected '%v' but got '%v' instead", proofs, decoded.Proofs())
	}
}

func TestDecodeTokenV3(t *testing.T) {
	// token serialized by another wallet, with base64 padding
	tokenWithPadding := "cashuAeyJ0b2tlbiI6W3sibWludCI6Imh0dHBzOi8vODMzMy5zcGFjZTozMzM4IiwicHJvb2ZzIjpbeyJhbW91bnQiOjIsImlkIjoiMDA5YTFmMjkzMjUzZTQxZSIsInNlY3JldCI6IjQwNzkxNWJjMjEyYmU2MWE3N2UzZTZkMmFlYjRjNzI3OTgwYmRhNTFjZDA2YTZhZmMyOWUyODYxNzY4YTc4MzciLCJDIjoiMDJiYzkwOTc5OTdkODFhZmIyY2M3MzQ2YjVlNDM0NWE5MzQ2YmQyYTUwNmViNzk1ODU5OGE3MmYwY2Y4NTE2M2VhIn0seyJhbW91bnQiOjgsImlkIjoiMDA5YTFmMjkzMjUzZTQxZSIsInNlY3JldCI6ImZlMTUxMDkzMTRlNjFkNzc1NmIwZjhlZTBmMjNhNjI0YWNhYTNmNGUwNDJmNjE0MzNjNzI4YzcwNTdiOTMxYmUiLCJDIjoiMDI5ZThlNTA1MGI4OTBhN2Q2YzA5NjhkYjE2YmMxZDVkNWZhMDQwZWExZGUyODRmNmVjNjlkNjEyOTlmNjcxMDU5In1dfV0sInVuaXQiOiJzYXQiLCJtZW1vIjoiVGhhbmsgeW91IHZlcnkgbXVjaC4ifQ=="

	token, err := DecodeToken(tokenWithPadding)
	if err != nil {
		t.Fatal(err)
	}

	if token.Unit != Sat {
		t.Errorf("expected '%v' but got '%v' instead", Sat, token.Unit)
	}

	if token.Memo != "Thank you very much." {
		t.Errorf("expected '%v' but got '%v' instead", "Thank you very much.", token.Memo)
	}

	if token.TotalAmount() != 10 {
		t.Errorf("expected '%v' but got '%v' instead", 10, token.TotalAmount())
	}

	// same token without padding should decode to the same value
	tokenNoPadding := tokenWithPadding[:len(tokenWithPadding)-2]
	decoded, err := DecodeToken(tokenNoPadding)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(token, decoded) {
		t.Error("decoded tokens do not match")
	}
}

func TestDecodeTokenErrors(t *testing.T) {
	tests := []string{
		"",
		"cashuA",
		"cashuB1234",
		"notatoken",
		"cashuA%%%%",
	}

	for _, test := range tests {
		if _, err := DecodeToken(test); err == nil {
			t.Errorf("expected error decoding '%v' but got nil", test)
		}
	}
}
