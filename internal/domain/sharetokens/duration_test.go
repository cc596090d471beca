package sharetokens

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDurationSpec(t *testing.T) {
	cases := []struct {
		spec string
		want time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"1d", 24 * time.Hour},
		{"24h", 24 * time.Hour},
		{"0.5h", 30 * time.Minute},
		{"3 days", 3 * 24 * time.Hour},
		{"1 day", 24 * time.Hour},
		{"12 hours", 12 * time.Hour},
		{"1 hour", time.Hour},
		{"48", 48 * time.Hour},
		{"1.5", 90 * time.Minute},
		{" 2D ", 2 * 24 * time.Hour},

		// Inválidos o vacíos caen al default de 7 días, nunca a error.
		{"", DefaultShareDuration},
		{"soon", DefaultShareDuration},
		{"xd", DefaultShareDuration},
		{"-3h", DefaultShareDuration},
		{"0d", DefaultShareDuration},
		{"3 weeks", DefaultShareDuration},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, parseDurationSpec(tc.spec), "spec %q", tc.spec)
	}
}
