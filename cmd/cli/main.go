// Command accounts is a CLI client for the accounts service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/and161185/goph-accounts/internal/model"
	grpcserver "github.com/and161185/goph-accounts/internal/server/grpc"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "accounts")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "accounts")
}

func tokenPath() string { return filepath.Join(cfgDir(), "tokens.json") }

func saveTokens(t model.Tokens) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshExpiresAt: t.RefreshExpiresAt,
	})
}

func loadTokens() (tokenFile, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return tokenFile{}, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return tokenFile{}, err
	}
	return tf, nil
}

// loadAccessToken returns a stored access token that has not expired.
func loadAccessToken() (string, error) {
	tf, err := loadTokens()
	if err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.AccessExpiresAt) {
		return "", errors.New("no valid token (login or refresh required)")
	}
	return tf.AccessToken, nil
}

// loadRefreshToken returns a stored refresh token that has not expired.
func loadRefreshToken() (string, error) {
	tf, err := loadTokens()
	if err != nil {
		return "", err
	}
	if tf.RefreshToken == "" || time.Now().After(tf.RefreshExpiresAt) {
		return "", errors.New("no valid refresh token (login required)")
	}
	return tf.RefreshToken, nil
}

func removeTokens() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

type tlsOptions struct {
	caPath    string
	insecure  bool // TLS without verification
	plaintext bool // no TLS at all
}

func loadTLS(o tlsOptions) (credentials.TransportCredentials, error) {
	if o.plaintext {
		return insecure.NewCredentials(), nil
	}
	if o.insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if o.caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(o.caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dial(addr string, o tlsOptions) (*grpc.ClientConn, error) {
	creds, err := loadTLS(o)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `accounts CLI
Usage:
  accounts -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  signup          -name <name> -email <email> -p <password> [-u <username>]   (saves tokens)
  login           -email <email> -p <password>                            (saves tokens)
  refresh                                                                 (saves tokens)
  logout
  whoami
  update-profile  [-name <name>] [-u <username>]
  change-password -current <password> -new <password>
  check-username  -u <username>
  request-otp     -email <email>
  verify-otp      -email <email> -code <code>
  forgot-password -email <email>
  reset-password  -email <email> -new <password>
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	// global flags
	addr := flag.String("addr", "localhost:8443", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	skipVerify := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "connect without TLS (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	if cmd == "version" {
		fmt.Printf("accounts %s (%s)\n", version, buildDate)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	o := tlsOptions{caPath: *caPath, insecure: *skipVerify, plaintext: *plaintext}
	cc, err := dial(*addr, o)
	if err != nil {
		fail(err)
	}
	defer cc.Close()

	a := &app{cl: grpcserver.NewClient(cc), out: os.Stdout, secure: !o.plaintext}
	if err := a.run(ctx, cmd, flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		fail(err)
	}
}

// ---- helpers ----

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s kind=%s msg=%s\n",
			s.Code(), grpcserver.KindFromError(err), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
