//go:build sonic

package sdk

import (
	"github.com/bytedance/sonic"
)

// for imroc/req and request signing
var jsonMarshal = sonic.Marshal
var jsonUnmarshal = sonic.Unmarshal
