package commands

import (
	"errors"
	"strings"
	"testing"

	apierrors "github.com/diogo/chatstream/internal/errors"
)

func TestFormatErrorMessage_Nil(t *testing.T) {
	if got := formatErrorMessage(nil, "ctx"); got != "" {
		t.Fatalf("expected empty for nil error, got %s", got)
	}
}

func TestFormatErrorMessage_APIError(t *testing.T) {
	e := apierrors.NewAPIErrorWithBody(500, "/chat/completions", "failure", `{"error":{"message":"failure"}}`)
	out := formatErrorMessage(e, "Failed")
	for _, want := range []string{"Failed: failure", "HTTP Status: 500", "Endpoint: /chat/completions", `"message":"failure"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in message, got: %s", want, out)
		}
	}
}

func TestFormatErrorMessage_Hints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"auth", apierrors.NewAPIError(401, "/chat/completions", "bad key"), "--api-key"},
		{"rate limit", apierrors.NewAPIError(429, "/chat/completions", ""), "rate limit"},
		{"network", apierrors.NewNetworkErrorWithEndpoint("stream", "/chat/completions", errors.New("refused")), "internet connection"},
		{"timeout", apierrors.NewTimeoutError("60s"), "request_timeout_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := formatErrorMessage(tt.err, "Request failed")
			if !strings.Contains(out, "Hint") || !strings.Contains(out, tt.want) {
				t.Errorf("expected hint containing %q, got: %s", tt.want, out)
			}
		})
	}
}
