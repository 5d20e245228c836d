package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/haven-health-passport/chaincode/consent/config"
	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/envelope"
	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/storage"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// app wires the engine to a local ledger and blob store
type app struct {
	cfg   *config.Config
	svc   *engine.Service
	store ledger.Store
	blobs storage.Blobs
	log   *logrus.Logger
	out   io.Writer
}

func openApp(cfg *config.Config, log *logrus.Logger, out io.Writer) (*app, error) {
	for _, dir := range []string{cfg.Ledger.Path, cfg.Storage.Path} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	store, err := ledger.OpenLevelStore(cfg.Ledger.Path, time.Now, func(ev ledger.Event) {
		log.WithFields(logrus.Fields{"txId": ev.TxID, "event": ev.Name}).Debug("event committed")
	})
	if err != nil {
		return nil, err
	}

	blobs, err := storage.OpenBadgerStore(storage.Config{Path: cfg.Storage.Path, Logger: log})
	if err != nil {
		store.Close()
		return nil, err
	}

	e := engine.New(engine.WithPolicy(cfg.Policy()), engine.WithLogger(log))
	return &app{
		cfg:   cfg,
		svc:   engine.NewService(e, store),
		store: store,
		blobs: blobs,
		log:   log,
		out:   out,
	}, nil
}

func (a *app) Close() error {
	berr := a.blobs.Close()
	if err := a.store.Close(); err != nil {
		return err
	}
	return berr
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// registerKey publishes the wallet's public key under its address
func (a *app) registerKey(ctx context.Context, kf *keyFile) (*models.Principal, error) {
	return a.svc.RegisterKey(ctx, kf.Address, kf.Address, kf.PublicKey)
}

// upload encrypts plaintext under a fresh DEK, stores the ciphertext and
// anchors the record. The DEK is kept in the wallet.
func (a *app) upload(ctx context.Context, kf *keyFile, recordID string, plaintext []byte) (*models.Record, error) {
	dek, err := envelope.GenerateDEK()
	if err != nil {
		return nil, err
	}
	ciphertext, err := envelope.EncryptRecord(plaintext, dek)
	if err != nil {
		return nil, err
	}
	locator, err := a.blobs.Put(ciphertext)
	if err != nil {
		return nil, err
	}

	record, err := a.svc.RegisterRecord(ctx, kf.Address, recordID, locator, utils.GenerateDataHash(plaintext))
	if err != nil {
		return nil, err
	}

	kf.putDEK(record.RecordID, dek)
	if err := kf.save(); err != nil {
		return nil, err
	}
	return record, nil
}

// grant seals the record's DEK to the doctor's registered key and issues
// the grant
func (a *app) grant(ctx context.Context, kf *keyFile, recordID, doctor string, duration time.Duration) (*models.ConsentGrant, error) {
	dek, err := kf.dek(recordID)
	if err != nil {
		return nil, err
	}
	doctorKey, found, err := a.svc.GetKey(ctx, doctor)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w (doctor %s)", engine.ErrDoctorKeyMissing, doctor)
	}
	sealed, err := envelope.SealDEK(dek, doctorKey)
	if err != nil {
		return nil, err
	}
	return a.svc.GrantConsent(ctx, kf.Address, recordID, doctor, sealed, duration)
}

func (a *app) revoke(ctx context.Context, kf *keyFile, grantID uint64) (*models.ConsentGrant, error) {
	return a.svc.RevokeConsent(ctx, kf.Address, grantID)
}

// access runs the access check as the wallet's principal and, when
// authorized, returns the decrypted record after verifying its hash
func (a *app) access(ctx context.Context, kf *keyFile, grantID uint64) ([]byte, *models.AccessDecision, error) {
	decision, err := a.svc.CheckAccess(ctx, kf.Address, grantID)
	if err != nil {
		return nil, nil, err
	}
	if !decision.Authorized {
		return nil, decision, fmt.Errorf("access denied for grant %d: %s", grantID, decision.Reason)
	}

	dek, err := envelope.OpenDEK(decision.EncryptedDEK, kf.pair)
	if err != nil {
		return nil, decision, err
	}
	ciphertext, err := a.blobs.Get(decision.RecordLocator)
	if err != nil {
		return nil, decision, err
	}
	plaintext, err := envelope.DecryptRecord(ciphertext, dek)
	if err != nil {
		return nil, decision, err
	}
	if utils.GenerateDataHash(plaintext) != decision.IntegrityHash {
		return nil, decision, fmt.Errorf("record %s failed its integrity check", decision.RecordLocator)
	}
	return plaintext, decision, nil
}
