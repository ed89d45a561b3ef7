// Package ledgersim provides an in-memory stand-in for the certificate
// contract. It is meant for dry runs of the load tester and as a test
// fixture, and only models the contract's observable behaviour.
package ledgersim

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/informalsystems/cert-load-test/pkg/workload"
)

var (
	ErrUnknownFunction   = errors.New("unknown contract function")
	ErrWrongArgCount     = errors.New("wrong number of arguments")
	ErrMissingFields     = errors.New("all fields are required")
	ErrCertificateExists = errors.New("certificate already exists")
)

// Certificate is a certificate as stored in the ledger.
type Certificate struct {
	ID          string `json:"ID"`
	StudentName string `json:"StudentName"`
	Degree      string `json:"Degree"`
	Issuer      string `json:"Issuer"`
	IssueDate   string `json:"IssueDate"`
	CertHash    string `json:"CertHash"`
	IsRevoked   bool   `json:"IsRevoked"`
}

// Ledger is a concurrency-safe in-memory certificate store.
type Ledger struct {
	mtx   sync.RWMutex
	certs map[string]Certificate
}

func New() *Ledger {
	return &Ledger{
		certs: make(map[string]Certificate),
	}
}

var arity = map[string]int{
	workload.FuncIssueCertificate:     6,
	workload.FuncVerifyCertificate:    2,
	workload.FuncRevokeCertificate:    1,
	workload.FuncQueryAllCertificates: 0,
}

// Invoke dispatches a contract call by function name, with positional
// arguments in the order the workload generators emit them.
func (l *Ledger) Invoke(function string, args []string) ([]byte, error) {
	n, ok := arity[function]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, function)
	}
	if len(args) != n {
		return nil, fmt.Errorf("%w: %s expects %d, got %d", ErrWrongArgCount, function, n, len(args))
	}
	switch function {
	case workload.FuncIssueCertificate:
		return nil, l.Issue(Certificate{
			ID:          args[0],
			StudentName: args[1],
			Degree:      args[2],
			Issuer:      args[3],
			CertHash:    args[4],
			IssueDate:   args[5],
		})
	case workload.FuncVerifyCertificate:
		valid, err := l.Verify(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatBool(valid)), nil
	case workload.FuncRevokeCertificate:
		return nil, l.Revoke(args[0])
	default:
		return json.Marshal(l.All())
	}
}

// Issue stores a new, unrevoked certificate.
func (l *Ledger) Issue(cert Certificate) error {
	if cert.ID == "" || cert.StudentName == "" || cert.Degree == "" || cert.Issuer == "" || cert.IssueDate == "" || cert.CertHash == "" {
		return ErrMissingFields
	}
	cert.IsRevoked = false

	l.mtx.Lock()
	defer l.mtx.Unlock()
	if _, exists := l.certs[cert.ID]; exists {
		return fmt.Errorf("%w: %s", ErrCertificateExists, cert.ID)
	}
	l.certs[cert.ID] = cert
	return nil
}

// Verify reports whether the certificate exists, is not revoked and carries
// the given hash. An unknown certificate is not an error.
func (l *Ledger) Verify(id, certHash string) (bool, error) {
	if id == "" || certHash == "" {
		return false, fmt.Errorf("certificate ID and hash are required")
	}
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	cert, ok := l.certs[id]
	if !ok {
		return false, nil
	}
	return cert.CertHash == certHash && !cert.IsRevoked, nil
}

// Revoke marks a certificate as revoked. Revoking an unknown or already
// revoked certificate succeeds without changing anything.
func (l *Ledger) Revoke(id string) error {
	if id == "" {
		return fmt.Errorf("certificate ID is required")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	cert, ok := l.certs[id]
	if !ok || cert.IsRevoked {
		return nil
	}
	cert.IsRevoked = true
	l.certs[id] = cert
	return nil
}

// Get returns the certificate with the given ID, if any.
func (l *Ledger) Get(id string) (Certificate, bool) {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	cert, ok := l.certs[id]
	return cert, ok
}

// All returns every certificate, sorted by ID.
func (l *Ledger) All() []Certificate {
	l.mtx.RLock()
	certs := make([]Certificate, 0, len(l.certs))
	for _, cert := range l.certs {
		certs = append(certs, cert)
	}
	l.mtx.RUnlock()
	sort.Slice(certs, func(i, j int) bool {
		return certs[i].ID < certs[j].ID
	})
	return certs
}

// Len returns the number of certificates in the ledger.
func (l *Ledger) Len() int {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return len(l.certs)
}
