package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)

	short := Short()
	assert.Contains(t, short, Version)
	assert.Contains(t, short, Revision)

	detailed := Detailed()
	assert.Contains(t, detailed, Version)
	assert.Contains(t, detailed, "/")

	assert.True(t, strings.HasPrefix(DetailedWithApp(), "SyftUpload "))
}

func TestApplyBuildInfo(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})

	tests := []struct {
		name                           string
		version, revision, buildDate   string
		wantVersion, wantRev, wantDate string
	}{
		{
			name:    "dev build takes vcs metadata",
			version: devVersion, revision: "HEAD",
			wantVersion: "9.9.9", wantRev: "abcdef1234567890-dirty", wantDate: "2025-12-12T01:00:00Z",
		},
		{
			name:    "ldflags win",
			version: "1.2.3", revision: "deadbeef", buildDate: "from-ldflags",
			wantVersion: "1.2.3", wantRev: "deadbeef", wantDate: "from-ldflags",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			Version, Revision, BuildDate = tc.version, tc.revision, tc.buildDate

			applyBuildInfo("v9.9.9", map[string]string{
				"vcs.revision": "abcdef1234567890",
				"vcs.modified": "true",
				"vcs.time":     "2025-12-12T01:00:00Z",
			})

			assert.Equal(t, tc.wantVersion, Version)
			assert.Equal(t, tc.wantRev, Revision)
			assert.Equal(t, tc.wantDate, BuildDate)
		})
	}
}
