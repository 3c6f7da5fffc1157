package automation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSplitContains(t *testing.T) {
	tests := []struct {
		in, css, text string
	}{
		{`button:contains("Accepter")`, "button", "Accepter"},
		{`button:contains('Accept')`, "button", "Accept"},
		{`:contains(OK)`, "*", "OK"},
		{`#didomi-notice-agree-button`, "#didomi-notice-agree-button", ""},
		{`  .cookie-banner button `, ".cookie-banner button", ""},
		{`button[data-testid="accept-all-cookies"]`, `button[data-testid="accept-all-cookies"]`, ""},
	}

	for _, tt := range tests {
		css, text := SplitContains(tt.in)
		if css != tt.css || text != tt.text {
			t.Errorf("SplitContains(%q) = (%q, %q), want (%q, %q)", tt.in, css, text, tt.css, tt.text)
		}
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep did not return promptly on cancellation")
	}
	if err := sleep(context.Background(), 0); err != nil {
		t.Errorf("zero sleep returned %v", err)
	}
}
