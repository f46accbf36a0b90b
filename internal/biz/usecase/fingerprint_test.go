package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	inputs := []string{"", "hello", "  hello  ", "黄金价格今日上涨 5%", "line1\nline2"}
	for _, s := range inputs {
		assert.Equal(t, Fingerprint(s), Fingerprint(s), "input %q", s)
		assert.Len(t, Fingerprint(s), 64, "input %q", s)
	}
}

func TestFingerprint_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, Fingerprint("hello world"), Fingerprint("\n\t hello world  \n"))
}

func TestFingerprint_DistinguishesContent(t *testing.T) {
	assert.NotEqual(t, Fingerprint("hello world"), Fingerprint("hello  world"))
	assert.NotEqual(t, Fingerprint("Hello"), Fingerprint("hello"))
}
