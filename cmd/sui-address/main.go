package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ecadlabs/go-sui-keygen/suikey"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	envMnemonic   = "SUI_MNEMONIC"
	envPrivateKey = "SUI_PRIVATE_KEY"
)

// source is where secrets come from. They are never read from flags.
type source struct {
	getenv func(string) string
	in     io.Reader
	prompt io.Writer
}

func (s *source) mnemonic() (string, error) {
	if v := s.getenv(envMnemonic); v != "" {
		return v, nil
	}
	fmt.Fprint(s.prompt, "Mnemonic: ")
	line, err := bufio.NewReader(s.in).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.Wrap(err, "reading mnemonic")
	}
	return strings.TrimSpace(line), nil
}

// keyPair uses SUI_PRIVATE_KEY if set. Otherwise it derives the key at path
// from the mnemonic.
func (s *source) keyPair(path, passphrase string) (*suikey.KeyPair, error) {
	if v := s.getenv(envPrivateKey); v != "" {
		return suikey.GetKeyPairByPrivateKey(strings.TrimSpace(v))
	}
	p, err := suikey.ParsePath(path)
	if err != nil {
		return nil, err
	}
	mnemonic, err := s.mnemonic()
	if err != nil {
		return nil, err
	}
	return suikey.DeriveKeyPair(mnemonic, passphrase, p)
}

func main() {
	var (
		path       string
		passphrase string
		verbose    bool
	)
	flag.StringVar(&path, "path", suikey.DefaultPath().String(), "Derivation path")
	flag.StringVar(&passphrase, "passphrase", "", "BIP-39 passphrase")
	flag.BoolVar(&verbose, "v", false, "Print the public key too")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Reads the mnemonic from %s or stdin. %s overrides it with a raw hex private key.\n\n", envMnemonic, envPrivateKey)
		flag.PrintDefaults()
	}
	flag.Parse()

	src := source{
		getenv: os.Getenv,
		in:     os.Stdin,
		prompt: os.Stderr,
	}
	kp, err := src.keyPair(path, passphrase)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(kp.Address())
	if verbose {
		fmt.Println(kp.PublicKeyBase64())
	}
}
