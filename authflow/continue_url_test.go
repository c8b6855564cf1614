package authflow_test

import (
	"testing"

	"github.com/jrsteele09/go-shh/authflow"
	"github.com/stretchr/testify/require"
)

func TestContinueURLValidator(t *testing.T) {
	validator, err := authflow.NewContinueURLValidator("https://secrets.example.com/shh")
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
		valid    bool
	}{
		{name: "empty uses default", input: "", expected: "/shh/", valid: true},
		{name: "relative path", input: "/shh/secrets", expected: "/shh/secrets", valid: true},
		{name: "absolute same service", input: "https://secrets.example.com/shh/secrets?x=1", expected: "https://secrets.example.com/shh/secrets?x=1", valid: true},
		{name: "absolute service root", input: "https://secrets.example.com/shh", expected: "https://secrets.example.com/shh", valid: true},
		{name: "other host", input: "https://evil.example/x"},
		{name: "host prefix trick", input: "https://secrets.example.com.evil.example/shh"},
		{name: "path prefix trick", input: "https://secrets.example.com/shhh"},
		{name: "other scheme", input: "http://secrets.example.com/shh/"},
		{name: "userinfo", input: "https://user@secrets.example.com/shh/"},
		{name: "protocol relative", input: "//evil.example/x"},
		{name: "backslash", input: "/\\evil.example"},
		{name: "bare word", input: "secrets"},
		{name: "javascript", input: "javascript:alert(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.Validate(tt.input)
			if !tt.valid {
				require.ErrorIs(t, err, authflow.ErrInvalidContinueURL)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestPendingFlowRoundTrip(t *testing.T) {
	flow := authflow.PendingFlow{State: "s", Nonce: "n", ContinueURL: "https://secrets.example.com:8443/shh"}
	decoded, err := authflow.DecodePendingFlow(flow.Encode())
	require.NoError(t, err)
	require.Equal(t, flow, decoded)

	_, err = authflow.DecodePendingFlow("!!!")
	require.ErrorIs(t, err, authflow.ErrStateMismatch)
}
