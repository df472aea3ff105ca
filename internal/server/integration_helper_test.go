package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vetled/store/internal/config"
	"github.com/vetled/store/internal/oauth"
	"github.com/vetled/store/internal/observability"
)

// testServer holds information about a running test server.
type testServer struct {
	app     *Server
	baseURL string
	client  *http.Client
}

// newTestConfig returns a default configuration that keeps test output quiet.
func newTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Observability.Logging.Level = "error"
	cfg.Observability.Logging.Format = "console"
	return cfg
}

// newTestServer builds a Server with a silent logger and the given options.
func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()

	opts = append([]Option{WithLogger(observability.NewNopLogger())}, opts...)
	srv, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(srv.rateLimiter.Stop)
	return srv
}

// startTestServer runs a server (HTTP or HTTPS) on a dynamic port through
// the same serve path used in production. The returned cleanup stops it.
func startTestServer(t *testing.T, cfg *config.Config, opts ...Option) (*testServer, func()) {
	t.Helper()

	if cfg.TLS.Enabled && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		certFile, keyFile, err := generateTestCertificates(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to generate test certificates: %v", err)
		}
		cfg.TLS.CertFile = certFile
		cfg.TLS.KeyFile = keyFile
	}

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to listen on a dynamic port: %v", err)
	}
	cfg.Server.Port = fmt.Sprintf("%d", listener.Addr().(*net.TCPAddr).Port)

	app := newTestServer(t, cfg, opts...)

	protocol := "http"
	client := &http.Client{Timeout: 2 * time.Second}
	if cfg.TLS.Enabled {
		protocol = "https"
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	baseURL := fmt.Sprintf("%s://%s", protocol, listener.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.serve(ctx, listener, nil)
	}()

	waitForServerReady(t, client, baseURL)

	cleanup := func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Test server returned an error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("Test server did not stop in time")
		}
	}

	return &testServer{app: app, baseURL: baseURL, client: client}, cleanup
}

func waitForServerReady(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("Server at %s failed to start within timeout", baseURL)
}

func (ts *testServer) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()

	resp, err := ts.client.Get(ts.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body of %s: %v", path, err)
	}
	return resp, string(body)
}

func generateTestCertificates(tmpDir string) (string, string, error) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privKey.PublicKey, privKey)
	if err != nil {
		return "", "", err
	}

	certFile := filepath.Join(tmpDir, "test-cert.pem")
	if err := writePEM(certFile, "CERTIFICATE", certDER); err != nil {
		return "", "", err
	}

	privKeyBytes, err := x509.MarshalPKCS8PrivateKey(privKey)
	if err != nil {
		return "", "", err
	}
	keyFile := filepath.Join(tmpDir, "test-key.pem")
	if err := writePEM(keyFile, "PRIVATE KEY", privKeyBytes); err != nil {
		return "", "", err
	}

	return certFile, keyFile, nil
}

func writePEM(path, blockType string, der []byte) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return pem.Encode(out, &pem.Block{Type: blockType, Bytes: der})
}

// fakeExchanger is a TokenExchanger returning canned results.
type fakeExchanger struct {
	token *oauth.TokenResponse
	err   error
	calls int
	code  string
	state string
}

func (f *fakeExchanger) ExchangeCodeForToken(_ context.Context, code, state string) (*oauth.TokenResponse, error) {
	f.calls++
	f.code, f.state = code, state
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

// fakeAccounts is an AccountsFetcher returning canned results.
type fakeAccounts struct {
	body  []byte
	err   error
	calls int
	token string
}

func (f *fakeAccounts) GetAccounts(_ context.Context, accessToken string) ([]byte, error) {
	f.calls++
	f.token = accessToken
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

// recordingRenderer remembers the views it was asked to render.
type recordingRenderer struct {
	rendered []string
	err      error
}

func (r *recordingRenderer) Render(w io.Writer, name string, data any) error {
	r.rendered = append(r.rendered, name)
	if r.err != nil {
		return r.err
	}
	_, err := fmt.Fprintf(w, "<html>%s</html>", name)
	return err
}

var errBoom = errors.New("boom")
