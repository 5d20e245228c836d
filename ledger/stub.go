package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperledger/fabric-chaincode-go/shim"
)

// StubTx adapts a Fabric chaincode stub to Tx. The peer makes the whole
// invocation atomic; StubTx only adds read-your-writes, which the stub does
// not provide within one proposal.
type StubTx struct {
	stub   shim.ChaincodeStubInterface
	writes map[string][]byte
}

// NewStubTx wraps the stub of the current invocation
func NewStubTx(stub shim.ChaincodeStubInterface) *StubTx {
	return &StubTx{stub: stub, writes: make(map[string][]byte)}
}

// Get implements Tx
func (s *StubTx) Get(key string) ([]byte, error) {
	if v, ok := s.writes[key]; ok {
		return cloneBytes(v), nil
	}
	v, err := s.stub.GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read from world state: %v", err)
	}
	return v, nil
}

// Put implements Tx
func (s *StubTx) Put(key string, value []byte) error {
	if err := s.stub.PutState(key, value); err != nil {
		return fmt.Errorf("failed to put %s to world state: %v", key, err)
	}
	s.writes[key] = cloneBytes(value)
	return nil
}

// Scan implements Tx
func (s *StubTx) Scan(prefix string) ([]KV, error) {
	resultsIterator, err := s.stub.GetStateByRange(prefix, prefix+string(utf8.MaxRune))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %v", prefix, err)
	}
	defer resultsIterator.Close()

	merged := make(map[string][]byte)
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate: %v", err)
		}
		merged[queryResponse.Key] = queryResponse.Value
	}
	for k, v := range s.writes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = cloneBytes(v)
		}
	}
	return sortedKVs(merged), nil
}

// TxID implements Tx
func (s *StubTx) TxID() string {
	return s.stub.GetTxID()
}

// Now implements Tx. It returns the proposal timestamp so every endorser
// evaluates expiry against the same instant.
func (s *StubTx) Now() (time.Time, error) {
	ts, err := s.stub.GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %v", err)
	}
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC(), nil
}

// Emit implements Tx. Fabric keeps one event per transaction; the last wins.
func (s *StubTx) Emit(name string, payload []byte) error {
	return s.stub.SetEvent(name, payload)
}
