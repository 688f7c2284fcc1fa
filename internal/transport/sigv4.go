package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Signer adds an AWS SigV4 Authorization header to every SDK service call.
// Used when the services sit behind an IAM-authenticated gateway
// (transport.sigv4_region set).
type Signer struct {
	creds   aws.CredentialsProvider
	region  string
	service string
	v4      *v4.Signer
	next    http.RoundTripper
	clock   func() time.Time
}

// NewSigner resolves credentials from the default AWS chain for region. The
// chain is asked for credentials once up front so a missing profile fails the
// transport build rather than the first SDK call.
func NewSigner(ctx context.Context, region, service string, next http.RoundTripper) (*Signer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("sigv4: load aws config for %s: %w", region, err)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("sigv4: no credentials for %s: %w", region, err)
	}
	return NewSignerFromCredentials(awsCfg.Credentials, region, service, next), nil
}

// NewSignerFromCredentials signs with creds. A nil next sends through
// http.DefaultTransport.
func NewSignerFromCredentials(creds aws.CredentialsProvider, region, service string, next http.RoundTripper) *Signer {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Signer{
		creds:   creds,
		region:  region,
		service: service,
		v4:      v4.NewSigner(),
		next:    next,
		clock:   time.Now,
	}
}

// RoundTrip signs a copy of req over its full body and forwards it.
func (s *Signer) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	signed := req.Clone(ctx)

	body, err := drainBody(signed)
	if err != nil {
		return nil, err
	}

	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("sigv4: retrieve credentials: %w", err)
	}

	sum := sha256.Sum256(body)
	if err := s.v4.SignHTTP(ctx, creds, signed, hex.EncodeToString(sum[:]), s.service, s.region, s.clock()); err != nil {
		return nil, fmt.Errorf("sigv4: sign %s: %w", signed.URL.Path, err)
	}
	return s.next.RoundTrip(signed)
}

// drainBody reads req.Body into memory and replaces it with a rewindable copy.
func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("sigv4: read request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	return body, nil
}
