package domain_test

import (
	"testing"

	"github.com/jbaxter/flatledger/internal/domain"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&domain.ErrNotFound{Resource: "flatmate", ID: "fm-9"}, "flatmate not found: fm-9"},
		{&domain.ErrValidation{Field: "card_suffix", Message: "must be exactly 4 digits"},
			"validation error on 'card_suffix': must be exactly 4 digits"},
		{&domain.ErrForbidden{Message: "only admins can add flatmates"},
			"forbidden: only admins can add flatmates"},
		{&domain.ErrUnauthorized{}, "unauthorized"},
		{&domain.ErrConflict{Message: "segment is already closed"}, "segment is already closed"},
		{&domain.ErrRateLimited{Operation: "sync", RetryAfter: "3m0s"},
			"rate limited: sync (retry after 3m0s)"},
	}

	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}
