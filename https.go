package lingdar

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/acme/autocert"
)

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return "/"
}

func cacheDir() string {
	const base = "lingdar-autocert"
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches", base)
	case "windows":
		for _, ev := range []string{"APPDATA", "CSIDL_APPDATA", "TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return filepath.Join(v, base)
			}
		}
		// Worst case:
		return filepath.Join(homeDir(), base)
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, base)
	}
	return filepath.Join(homeDir(), ".cache", base)
}

// HTTPS adds a TLS listener on the port, on the same host as the plain one.
func (a *App) HTTPS(port uint16, cert, key string) *App {
	a.listeners = append(a.listeners, listener{
		addr: a.withPort(port),
		tls: func() (*tls.Config, error) {
			certificate, err := tls.LoadX509KeyPair(cert, key)
			if err != nil {
				return nil, err
			}

			return &tls.Config{
				Certificates: []tls.Certificate{certificate},
			}, nil
		},
	})

	return a
}

// AutoHTTPS obtains certificates via ACME for the domains. On localhost, a self-signed
// certificate is generated instead (or reused, if it was generated before).
func (a *App) AutoHTTPS(port uint16, domains ...string) *App {
	if isLocalhost(a.addr) {
		cert, key, err := selfSignedCert()
		if err != nil {
			a.log.WithField("action", "auto-https").WithError(err).
				Warn("cannot generate self-signed certificate, disabling TLS")

			return a
		}

		return a.HTTPS(port, cert, key)
	}

	a.listeners = append(a.listeners, listener{
		addr: a.withPort(port),
		tls: func() (*tls.Config, error) {
			return autoTLSConfig(a.log, domains...), nil
		},
	})

	return a
}

func (a *App) withPort(port uint16) string {
	host, _, err := net.SplitHostPort(a.addr)
	if err != nil {
		host = ""
	}

	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

func isLocalhost(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}

	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

func autoTLSConfig(log logrus.FieldLogger, domains ...string) *tls.Config {
	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
	}

	if len(domains) > 0 {
		m.HostPolicy = autocert.HostWhitelist(domains...)
	}

	cache := cacheDir()
	if err := os.MkdirAll(cache, 0o700); err != nil {
		log.WithField("action", "auto-https").WithError(err).Warn("not using a certificate cache")
	} else {
		m.Cache = autocert.DirCache(cache)
	}

	return m.TLSConfig()
}

// selfSignedCert returns paths to a certificate valid for the loopback names, generating it
// on the first use. Both files are kept in the autocert cache directory.
func selfSignedCert() (cert, key string, err error) {
	dir := cacheDir()
	cert, key = filepath.Join(dir, "localhost.crt"), filepath.Join(dir, "localhost.key")

	if isFile(cert) && isFile(key) {
		return cert, key, nil
	}

	if err = os.MkdirAll(dir, 0o700); err != nil {
		return "", "", err
	}

	certPEM, keyPEM, err := issueLocalhost(time.Now())
	if err != nil {
		return "", "", err
	}

	if err = os.WriteFile(cert, certPEM, 0o600); err != nil {
		return "", "", err
	}

	if err = os.WriteFile(key, keyPEM, 0o600); err != nil {
		return "", "", err
	}

	return cert, key, nil
}

// issueLocalhost creates a P-256 key and a certificate signed by itself, both PEM-encoded.
func issueLocalhost(now time.Time) (certPEM, keyPEM []byte, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}

	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"lingdar"}, CommonName: "localhost"},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	return certPEM, keyPEM, nil
}

func isFile(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Mode().IsRegular()
}
