package stacktrace

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStack = `goroutine 1 [running]:
errguard/pkg/fetch.(*Client).Fetch(0xc000010010, {0x5a2f40, 0xc000018090})
	/home/ci/src/errguard/pkg/fetch/fetch.go:152 +0x1b
main.sync(0x2)
	/home/ci/src/errguard/cmd/errguard/main.go:61 +0x2f
created by main.main in goroutine 1
	/home/ci/src/errguard/cmd/errguard/main.go:44 +0x58
`

func TestFormat(t *testing.T) {
	frames, first := Format(sampleStack, "")
	require.Len(t, frames, 3)

	assert.Equal(t, "at errguard/pkg/fetch.(*Client).Fetch (/home/ci/src/errguard/pkg/fetch/fetch.go:152)", frames[0])
	assert.Equal(t, "at main.sync (/home/ci/src/errguard/cmd/errguard/main.go:61)", frames[1])
	assert.Equal(t, "at main.main (/home/ci/src/errguard/cmd/errguard/main.go:44)", frames[2])
	assert.Equal(t, "errguard/pkg/fetch.(*Client).Fetch", first)
}

func TestFormatStripsPrefix(t *testing.T) {
	frames, first := Format(sampleStack, "errguard")
	require.Len(t, frames, 3)

	assert.Equal(t, "at pkg/fetch.(*Client).Fetch (/home/ci/src/errguard/pkg/fetch/fetch.go:152)", frames[0])
	assert.Equal(t, "pkg/fetch.(*Client).Fetch", first)
}

func TestFormatUnknownFunction(t *testing.T) {
	raw := "\t/src/app/main.go:10 +0x2f\n"
	frames, first := Format(raw, "")
	require.Len(t, frames, 1)
	assert.Equal(t, "at [unknown function] (/src/app/main.go:10)", frames[0])
	assert.Equal(t, "", first)
}

func TestFormatToleratesGarbage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no frames", "goroutine 7 [select]:\n"},
		{"prose", "this is not a stack at all"},
		{"broken location", "main.run(...)\n\tnot-a-location\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, first := Format(tt.raw, "")
			assert.Empty(t, frames)
			assert.Equal(t, "", first)
		})
	}
}

func TestFormatRealStack(t *testing.T) {
	frames, first := Format(string(debug.Stack()), "")
	require.NotEmpty(t, frames)
	assert.NotEmpty(t, first)
	for _, f := range frames {
		assert.Regexp(t, `^at .+ \(.+:\d+\)$`, f)
	}
}
