package shopify

import (
	"errors"
	"testing"

	"taxvault-webhook-layer/internal/domain"
)

func TestVerify(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id": 555, "order_number": 1, "total_price": "10.00"}`)
	secret := "s3cr3t"
	valid := Sign(body, secret)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{name: "valid", body: body, signature: valid, secret: secret, want: true},
		{name: "empty body is valid input", body: []byte{}, signature: Sign([]byte{}, secret), secret: secret, want: true},
		{name: "empty signature", body: body, signature: "", secret: secret, want: false},
		{name: "empty secret", body: body, signature: valid, secret: "", want: false},
		{name: "wrong secret", body: body, signature: valid, secret: "other", want: false},
		{name: "tampered body", body: append([]byte(`{"id": 556`), body[10:]...), signature: valid, secret: secret, want: false},
		{name: "truncated signature", body: body, signature: valid[:len(valid)-2], secret: secret, want: false},
		{name: "garbage signature", body: body, signature: "not base64 !!", secret: secret, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Verify(tt.body, tt.signature, tt.secret); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyRejectsSingleBitFlip(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":1}`)
	sig := Sign(body, "s3cr3t")
	for i := range body {
		flipped := append([]byte(nil), body...)
		flipped[i] ^= 0x01
		if Verify(flipped, sig, "s3cr3t") {
			t.Fatalf("flipping byte %d still verified", i)
		}
	}
}

func TestWebhookVerifierErrors(t *testing.T) {
	t.Parallel()

	v := NewWebhookVerifier("s3cr3t")
	body := []byte(`{}`)

	if err := v.Verify(body, ""); !errors.Is(err, domain.ErrMissingSignature) {
		t.Errorf("missing header: got %v, want ErrMissingSignature", err)
	}
	if err := v.Verify(body, "bad"); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("bad header: got %v, want ErrInvalidSignature", err)
	}
	if err := v.Verify(body, Sign(body, "s3cr3t")); err != nil {
		t.Errorf("valid header: unexpected error %v", err)
	}
}
