package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/haven-health-passport/chaincode/consent/envelope"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// keyFile is a principal's local wallet: its encryption key pair and the
// DEKs of the records it uploaded
type keyFile struct {
	Address    string            `yaml:"address"`
	PublicKey  string            `yaml:"public_key"`
	PrivateKey string            `yaml:"private_key"`
	DEKs       map[string]string `yaml:"deks,omitempty"`

	path string
	pair *envelope.KeyPair
}

// newKeyFile creates a wallet for a fresh key pair. The local principal
// address is derived from the public key.
func newKeyFile(path string) (*keyFile, error) {
	pair, err := envelope.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &keyFile{
		Address:    utils.AddressFromIdentity(pair.EncodedPublicKey()),
		PublicKey:  pair.EncodedPublicKey(),
		PrivateKey: pair.EncodedPrivateKey(),
		path:       path,
		pair:       pair,
	}, nil
}

func loadKeyFile(path string) (*keyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var kf keyFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}

	kf.pair, err = envelope.ParsePrivateKey(kf.PrivateKey)
	if err != nil {
		return nil, err
	}
	if kf.pair.EncodedPublicKey() != kf.PublicKey {
		return nil, fmt.Errorf("key file %s: public key does not match private key", path)
	}
	if want := utils.AddressFromIdentity(kf.PublicKey); kf.Address != want {
		return nil, fmt.Errorf("key file %s: address does not match public key", path)
	}
	kf.path = path
	return &kf, nil
}

func (k *keyFile) save() error {
	data, err := yaml.Marshal(k)
	if err != nil {
		return fmt.Errorf("encode key file: %w", err)
	}
	return os.WriteFile(k.path, data, 0600)
}

func (k *keyFile) putDEK(recordID string, dek []byte) {
	if k.DEKs == nil {
		k.DEKs = make(map[string]string)
	}
	k.DEKs[recordID] = base64.StdEncoding.EncodeToString(dek)
}

func (k *keyFile) dek(recordID string) ([]byte, error) {
	encoded, ok := k.DEKs[recordID]
	if !ok {
		return nil, fmt.Errorf("no DEK for record %s in %s", recordID, k.path)
	}
	return base64.StdEncoding.DecodeString(encoded)
}
