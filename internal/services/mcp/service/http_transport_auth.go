package service

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// validateLocalRequest enforces host access to mitigate DNS rebinding. Host
// and Origin headers are checked against the allowed set per MCP guidance so
// remote web pages cannot reach local MCP servers via rebinding.
func (t *HTTPTransport) validateLocalRequest(r *http.Request) error {
	if r == nil {
		return fmt.Errorf("invalid request")
	}

	if !t.isAllowedHostHeader(r.Host) {
		return fmt.Errorf("invalid host")
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid origin")
	}
	if !t.isAllowedHostHeader(parsed.Host) {
		return fmt.Errorf("invalid origin")
	}
	return nil
}

// isAllowedHostHeader reports whether a Host/Origin header resolves to an
// allowed host. The default posture is loopback-only.
func (t *HTTPTransport) isAllowedHostHeader(host string) bool {
	resolvedHost, ok := normalizeHost(host)
	if !ok {
		return false
	}
	if isLoopbackHost(resolvedHost) {
		return true
	}
	if len(t.allowedHosts) == 0 {
		return false
	}
	_, ok = t.allowedHosts[strings.ToLower(resolvedHost)]
	return ok
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

func parseAllowedHosts(hosts []string) map[string]struct{} {
	result := make(map[string]struct{}, len(hosts))
	for _, entry := range hosts {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		result[strings.ToLower(trimmed)] = struct{}{}
	}
	return result
}

// normalizeHost extracts the hostname portion from Host/Origin headers,
// including bracketed IPv6 forms.
func normalizeHost(host string) (string, bool) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", false
	}

	if strings.HasPrefix(host, "[") {
		if splitHost, _, err := net.SplitHostPort(host); err == nil {
			return splitHost, true
		}
		if strings.HasSuffix(host, "]") {
			return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"), true
		}
		return "", false
	}

	if strings.Count(host, ":") > 1 {
		// Unbracketed IPv6 literal.
		return host, true
	}

	if strings.Contains(host, ":") {
		splitHost, _, err := net.SplitHostPort(host)
		if err != nil {
			return "", false
		}
		return splitHost, true
	}
	return host, true
}

// bearerVerifier validates Ed25519-signed bearer tokens. Auth is optional:
// without env configuration the transport runs in trusted local mode.
type bearerVerifier struct {
	issuer   string
	audience string
	key      ed25519.PublicKey
	now      func() time.Time
}

// loadBearerVerifierFromEnv builds optional transport-level auth from
// environment values. A partial configuration is treated as absent and
// logged, never half-enforced.
func loadBearerVerifierFromEnv(raw mcpHTTPEnv) *bearerVerifier {
	issuer := strings.TrimSpace(raw.AuthIssuer)
	audience := strings.TrimSpace(raw.AuthAudience)
	publicKey := strings.TrimSpace(raw.AuthPublicKey)
	if issuer == "" && audience == "" && publicKey == "" {
		return nil
	}
	if issuer == "" || audience == "" || publicKey == "" {
		log.Printf("mcp: bearer auth requires issuer, audience, and public key; auth disabled")
		return nil
	}

	keyBytes, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		keyBytes, err = base64.RawStdEncoding.DecodeString(publicKey)
	}
	if err != nil {
		log.Printf("mcp: decode bearer auth public key: %v; auth disabled", err)
		return nil
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		log.Printf("mcp: bearer auth public key must be %d bytes; auth disabled", ed25519.PublicKeySize)
		return nil
	}

	return &bearerVerifier{
		issuer:   issuer,
		audience: audience,
		key:      ed25519.PublicKey(keyBytes),
		now:      time.Now,
	}
}

// authorizeRequest runs bearer-token checks only when auth is configured.
func (t *HTTPTransport) authorizeRequest(w http.ResponseWriter, r *http.Request) bool {
	if t.bearer == nil {
		return true
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return false
	}
	if err := t.bearer.verify(token); err != nil {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return false
	}
	return true
}

// verify checks signature, issuer, audience, and time claims.
func (v *bearerVerifier) verify(token string) error {
	if v == nil || v.issuer == "" || v.audience == "" || len(v.key) != ed25519.PublicKeySize {
		return fmt.Errorf("bearer verifier is not configured")
	}
	now := v.now
	if now == nil {
		now = time.Now
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithTimeFunc(now),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("verify bearer token: %w", err)
	}
	return nil
}
