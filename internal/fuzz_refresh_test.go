package internal

import (
	"testing"
	"time"
)

// FuzzDecodeRefreshToken exercises refresh token decoding with arbitrary strings.
func FuzzDecodeRefreshToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add(".")
	f.Add("01ARZ3NDEKTSV4RRFFQ69G5FAV.")
	f.Add("not-a-ulid.deadbeefdeadbeefdeadbeefdeadbeef")

	if id, err := NewRowID(time.Now()); err == nil {
		if secret, err := NewRefreshSecret(RefreshSecretSize); err == nil {
			f.Add(EncodeRefreshToken(id, secret))
		}
	}

	f.Fuzz(func(t *testing.T, input string) {
		rowID, secret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}

		id2, secret2, err := DecodeRefreshToken(EncodeRefreshToken(rowID, secret))
		if err != nil {
			t.Fatalf("roundtrip decode failed: %v", err)
		}
		if id2 != rowID || secret2 != secret {
			t.Fatalf("roundtrip mismatch: %q/%q vs %q/%q", id2, secret2, rowID, secret)
		}
	})
}
