package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/openmined/syftupload/internal/signing"
	"github.com/openmined/syftupload/internal/version"
)

// SDK is the control-plane client. It never retries on its own: a signed
// request sent twice carries a used nonce, so callers retry by calling again.
type SDK struct {
	client   *req.Client
	signer   *signing.Signer
	basePath string

	Multipart *MultipartAPI
	Blob      *BlobAPI
}

func New(config *Config) (*SDK, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	u, _ := url.Parse(config.BaseURL)

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	clientID := config.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}

	client := req.C().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(timeout).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonHeader(HeaderClientID, clientID).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if config.AccessToken != "" {
		client.SetCommonBearerAuthToken(config.AccessToken)
	}

	s := &SDK{
		client:   client,
		basePath: strings.TrimRight(u.Path, "/"),
	}

	if config.Secret != "" {
		signer, err := signing.New(signing.Config{Secret: []byte(config.Secret)})
		if err != nil {
			return nil, fmt.Errorf("sdk: %w", err)
		}
		s.signer = signer
	}

	s.Multipart = newMultipartAPI(s)
	s.Blob = newBlobAPI(s)
	return s, nil
}

// Close releases idle connections.
func (s *SDK) Close() {
	s.client.GetClient().CloseIdleConnections()
}

// post marshals body once, signs exactly those bytes with a fresh nonce and
// decodes a successful response into result.
func (s *SDK) post(ctx context.Context, endpoint string, body, result any, operation string) error {
	payload, err := jsonMarshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", operation, err)
	}

	r := s.client.R().
		SetContext(ctx).
		SetContentType("application/json").
		SetBodyBytes(payload)

	if s.signer != nil {
		signed := s.signer.Sign(&signing.SignInput{
			Method: http.MethodPost,
			Path:   s.basePath + endpoint,
			Body:   payload,
			Nonce:  uuid.NewString(),
		})
		r.SetHeaders(signed.Headers)
	}

	resp, err := r.Post(endpoint)
	if err := handleAPIError(ctx, resp, err, operation); err != nil {
		return err
	}

	if result != nil {
		if err := jsonUnmarshal(resp.Bytes(), result); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}
