// Package engine implements the consent and key-distribution engine: the key
// registry, the record registry, the consent state machine, the access
// verifier and the audit projection.
//
// Every operation takes the ledger.Tx it runs in. The engine keeps no state of
// its own between calls, so the same Engine serves Fabric invocations and local
// stores alike.
package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// Event names emitted on committed transitions
const (
	EventKeyRegistered    = "KeyRegistered"
	EventRecordRegistered = "RecordRegistered"
	EventConsentGranted   = "ConsentGranted"
	EventConsentRevoked   = "ConsentRevoked"
	EventAccessRecorded   = "AccessRecorded"
)

// Engine evaluates consent operations against a ledger transaction
type Engine struct {
	policy models.Policy
	log    *logrus.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithPolicy sets the policy used when the ledger stores none
func WithPolicy(p models.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger sets the engine logger
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine with the default policy and a discarding logger
func New(opts ...Option) *Engine {
	e := &Engine{policy: models.DefaultPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.New()
		e.log.SetOutput(io.Discard)
	}
	return e
}

// DefaultPolicy returns the policy the engine falls back to
func (e *Engine) DefaultPolicy() models.Policy {
	return e.policy
}

// Policy returns the policy anchored on the ledger, or the engine default
func (e *Engine) Policy(tx ledger.Tx) (models.Policy, error) {
	var p models.Policy
	found, err := getJSON(tx, utils.PolicyKey, &p)
	if err != nil {
		return models.Policy{}, err
	}
	if !found {
		return e.policy, nil
	}
	return p, nil
}

// StorePolicy anchors a policy on the ledger
func (e *Engine) StorePolicy(tx ledger.Tx, p models.Policy) error {
	if p.MaxGrantDuration <= 0 {
		return wrap(ErrInvalidDuration, "max grant duration %s", p.MaxGrantDuration)
	}
	if p.MaxDEKBytes <= 0 {
		return wrap(ErrInvalidDEK, "max DEK size %d", p.MaxDEKBytes)
	}
	p.ObjectType = models.ObjectTypePolicy
	if err := putJSON(tx, utils.PolicyKey, p); err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{
		"maxGrantDuration": p.MaxGrantDuration.String(),
		"logAccess":        p.LogAccess,
		"txId":             tx.TxID(),
	}).Info("policy stored")
	return nil
}

// nextSequence increments a named ledger counter and returns the new value
func nextSequence(tx ledger.Tx, name string) (uint64, error) {
	key := utils.CreateSequenceKey(name)
	raw, err := tx.Get(key)
	if err != nil {
		return 0, err
	}
	var current uint64
	if raw != nil {
		current, err = strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse sequence %s: %w", name, err)
		}
	}
	next := current + 1
	if err := tx.Put(key, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

// appendTransition writes the next transition log entry and emits its event
func (e *Engine) appendTransition(tx ledger.Tx, t *models.Transition, event string) error {
	seq, err := nextSequence(tx, utils.SequenceTransition)
	if err != nil {
		return fmt.Errorf("failed to assign transition sequence: %w", err)
	}
	t.Seq = seq
	t.TxID = tx.TxID()
	t.ObjectType = models.ObjectTypeTransition

	if err := putJSON(tx, utils.CreateTransitionKey(seq), t); err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}

	eventJSON, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := tx.Emit(event, eventJSON); err != nil {
		return fmt.Errorf("failed to emit event: %w", err)
	}
	return nil
}

// now returns the transaction time
func now(tx ledger.Tx) (time.Time, error) {
	t, err := tx.Now()
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func getJSON(tx ledger.Tx, key string, v any) (bool, error) {
	raw, err := tx.Get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func putJSON(tx ledger.Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return tx.Put(key, raw)
}

// index writes a presence marker, the way composite index keys are kept
func index(tx ledger.Tx, key string) error {
	return tx.Put(key, []byte{0x00})
}

// rejected logs a refused operation at debug level and returns err
func (e *Engine) rejected(op string, err error, fields logrus.Fields) error {
	e.log.WithFields(fields).WithField("op", op).WithField("code", CodeOf(err)).Debug("operation rejected")
	return err
}
