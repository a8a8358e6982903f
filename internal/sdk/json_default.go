//go:build !sonic

package sdk

import (
	"github.com/goccy/go-json"
)

// for imroc/req and request signing
var jsonMarshal = json.Marshal
var jsonUnmarshal = json.Unmarshal
