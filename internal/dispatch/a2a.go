package dispatch

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-fed/httpsig"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// a2aHeadersToSign are the HTTP signature components covering the request
// line and body digest, following the ActivityPub-style signing profile
// go-fed/httpsig was built for.
var a2aHeadersToSign = []string{httpsig.RequestTarget, "host", "date", "digest"}

// A2AClient invokes an A2A agent's task endpoint, signing every outbound
// request with this gateway's Ed25519 key so the agent can authenticate the
// calling gateway (spec §4.3 A2A integration type). Satisfies
// dispatch.A2AInvoker.
//
// httpsig.Signer is not safe for concurrent use (it tracks signing state
// internally), so every call takes signerMu.
type A2AClient struct {
	httpClient *http.Client
	signer     httpsig.Signer
	privateKey ed25519.PrivateKey
	keyID      string
	signerMu   sync.Mutex
}

// NewA2AClient builds an A2AClient that signs requests as keyID using
// privateKey. timeout bounds each agent call.
func NewA2AClient(keyID string, privateKey ed25519.PrivateKey, timeout time.Duration) (*A2AClient, error) {
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.ED25519},
		httpsig.DigestSha256,
		a2aHeadersToSign,
		httpsig.Signature,
		int64(timeout/time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("build httpsig signer: %w", err)
	}
	return &A2AClient{
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
		privateKey: privateKey,
		keyID:      keyID,
	}, nil
}

// a2aTaskRequest is the envelope sent to an agent's endpoint, naming the
// arguments the tool invocation carries.
type a2aTaskRequest struct {
	ProtocolVersion string         `json:"protocol_version"`
	Arguments       map[string]any `json:"arguments"`
}

// InvokeAgent signs and POSTs a task request to agent.Endpoint, returning
// the agent's decoded JSON response.
func (c *A2AClient) InvokeAgent(ctx context.Context, agent catalog.A2AAgent, arguments map[string]any) (map[string]any, error) {
	body, err := json.Marshal(a2aTaskRequest{
		ProtocolVersion: agent.ProtocolVersion,
		Arguments:       arguments,
	})
	if err != nil {
		return nil, gwerrors.Internal(err, "encode a2a task request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, gwerrors.Internal(err, "build a2a request for agent %s", agent.Name)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if err := c.sign(req, body); err != nil {
		return nil, gwerrors.Internal(err, "sign a2a request for agent %s", agent.Name)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, gwerrors.Upstream(err, "call a2a agent %s", agent.Name)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxA2AResponseBytes))
	if err != nil {
		return nil, gwerrors.Upstream(err, "read a2a agent %s response", agent.Name)
	}
	if resp.StatusCode >= 300 {
		return nil, gwerrors.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, respBody), "a2a agent %s returned an error", agent.Name)
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, gwerrors.Upstream(err, "decode a2a agent %s response", agent.Name)
	}
	return result, nil
}

// maxA2AResponseBytes bounds how much of an agent's response body this
// client reads, guarding against a misbehaving agent streaming unbounded
// output.
const maxA2AResponseBytes = 10 << 20

func (c *A2AClient) sign(req *http.Request, body []byte) error {
	c.signerMu.Lock()
	defer c.signerMu.Unlock()
	return c.signer.SignRequest(c.privateKey, c.keyID, req, body)
}
