package sdk

import (
	"fmt"
	"runtime"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/openmined/syftupload/internal/version"
)

const (
	HeaderUserAgent = "User-Agent"
	HeaderVersion   = "X-Syftupload-Version"
	HeaderClientID  = "x-client-id"
)

var UserAgent = fmt.Sprintf("syftupload/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// DefaultClientID is stable per machine. The raw machine id never leaves the
// host, only an app-keyed hash of it.
func DefaultClientID() string {
	id, err := machineid.ProtectedID("syftupload")
	if err != nil {
		return uuid.NewString()
	}
	return id
}
