package workload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// FingerprintLength is the length, in hex characters, of every fingerprint.
const FingerprintLength = sha256.Size * 2

// Identity is the certificate identifier and student name derived for a
// single (worker, counter) position.
type Identity struct {
	CertificateID string
	StudentName   string
}

// NextIdentity derives the identity for the given worker index and counter.
// It is a pure function of its inputs, which is what allows a verify or
// revoke generator to reconstruct the identity an issue generator produced
// at the same counter position.
func NextIdentity(workerIndex, counter int) (Identity, error) {
	if workerIndex < 0 {
		return Identity{}, fmt.Errorf("%w, but was %d", ErrInvalidWorkerIndex, workerIndex)
	}
	if counter < 1 {
		return Identity{}, fmt.Errorf("%w, but was %d", ErrInvalidCounter, counter)
	}
	suffix := strconv.Itoa(workerIndex) + "_" + strconv.Itoa(counter)
	return Identity{
		CertificateID: "CERT_" + suffix,
		StudentName:   "Student_" + suffix,
	}, nil
}

// Fingerprint returns the lowercase hex SHA-256 digest of the certificate ID
// followed by the student name. The argument order is part of the scheme.
//
// The fingerprint only correlates issue and verify requests with one
// another. It offers no protection against tampering.
func Fingerprint(certificateID, studentName string) string {
	sum := sha256.Sum256([]byte(certificateID + studentName))
	return hex.EncodeToString(sum[:])
}

// Fingerprint is shorthand for Fingerprint(id.CertificateID, id.StudentName).
func (id Identity) Fingerprint() string {
	return Fingerprint(id.CertificateID, id.StudentName)
}
