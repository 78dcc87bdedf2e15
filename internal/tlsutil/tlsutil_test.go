package tlsutil

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	cfg := Config()
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %d, want TLS 1.2", cfg.MinVersion)
	}
	if len(cfg.CipherSuites) != len(aeadSuites) {
		t.Fatalf("CipherSuites len = %d, want %d", len(cfg.CipherSuites), len(aeadSuites))
	}
	for i, cs := range cfg.CipherSuites {
		if cs != aeadSuites[i] {
			t.Errorf("CipherSuites[%d] = %d, want %d", i, cs, aeadSuites[i])
		}
	}
}

func TestConfigCopiesSuites(t *testing.T) {
	// Mutating one returned config must not poison later ones.
	first := Config()
	first.CipherSuites[0] = tls.TLS_RSA_WITH_AES_128_CBC_SHA
	if Config().CipherSuites[0] == tls.TLS_RSA_WITH_AES_128_CBC_SHA {
		t.Error("Config shares the cipher suite slice between calls")
	}
}

func TestClient(t *testing.T) {
	c := Client(15 * time.Second)
	if c.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport is %T, want *http.Transport", c.Transport)
	}
	if tr.TLSClientConfig == nil || tr.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Error("transport TLS config not hardened")
	}
	if !tr.ForceAttemptHTTP2 {
		t.Error("ForceAttemptHTTP2 = false, want true")
	}
	if tr.MaxIdleConnsPerHost <= http.DefaultMaxIdleConnsPerHost {
		t.Errorf("MaxIdleConnsPerHost = %d, want > %d",
			tr.MaxIdleConnsPerHost, http.DefaultMaxIdleConnsPerHost)
	}
}
