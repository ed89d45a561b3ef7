package workload_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/informalsystems/cert-load-test/pkg/workload"
)

func TestNextIdentity(t *testing.T) {
	testCases := []struct {
		worker, counter int
		expected        workload.Identity
		err             error
	}{
		{0, 1, workload.Identity{CertificateID: "CERT_0_1", StudentName: "Student_0_1"}, nil},
		{2, 5, workload.Identity{CertificateID: "CERT_2_5", StudentName: "Student_2_5"}, nil},
		{17, 100000, workload.Identity{CertificateID: "CERT_17_100000", StudentName: "Student_17_100000"}, nil},
		{-1, 1, workload.Identity{}, workload.ErrInvalidWorkerIndex},
		{0, 0, workload.Identity{}, workload.ErrInvalidCounter},
		{3, -4, workload.Identity{}, workload.ErrInvalidCounter},
	}
	for i, tc := range testCases {
		actual, err := workload.NextIdentity(tc.worker, tc.counter)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, "test case %d", i)
			continue
		}
		require.NoError(t, err, "test case %d", i)
		assert.Equal(t, tc.expected, actual, "test case %d", i)

		again, err := workload.NextIdentity(tc.worker, tc.counter)
		require.NoError(t, err)
		assert.Equal(t, actual, again, "test case %d: identity must be repeatable", i)
	}
}

func TestFingerprint(t *testing.T) {
	sum := sha256.Sum256([]byte("CERT_2_5Student_2_5"))
	expected := hex.EncodeToString(sum[:])

	id, err := workload.NextIdentity(2, 5)
	require.NoError(t, err)
	assert.Equal(t, expected, workload.Fingerprint("CERT_2_5", "Student_2_5"))
	assert.Equal(t, expected, id.Fingerprint())
}

func TestFingerprintShape(t *testing.T) {
	testCases := []struct{ a, b string }{
		{"CERT_0_1", "Student_0_1"},
		{"", ""},
		{"a", "b"},
		{"CERT_9_99999", ""},
	}
	for i, tc := range testCases {
		fp := workload.Fingerprint(tc.a, tc.b)
		assert.Len(t, fp, workload.FingerprintLength, "test case %d", i)
		assert.Regexp(t, "^[0-9a-f]{64}$", fp, "test case %d", i)
		assert.Equal(t, fp, workload.Fingerprint(tc.a, tc.b), "test case %d: fingerprint must be deterministic", i)
		if tc.a+tc.b != tc.b+tc.a {
			assert.NotEqual(t, fp, workload.Fingerprint(tc.b, tc.a), "test case %d: fingerprint must be order sensitive", i)
		} else {
			// plain concatenation cannot tell the orders apart
			assert.Equal(t, fp, workload.Fingerprint(tc.b, tc.a), "test case %d", i)
		}
	}
}
