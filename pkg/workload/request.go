package workload

import (
	"context"
	"encoding/json"
	"fmt"
)

// Names of the remote contract functions targeted by the workloads. Their
// names, argument order and arity are the compatibility surface with the
// deployed contract.
const (
	FuncIssueCertificate     = "IssueCertificate"
	FuncVerifyCertificate    = "VerifyCertificate"
	FuncRevokeCertificate    = "RevokeCertificate"
	FuncQueryAllCertificates = "QueryAllCertificates"
)

// DefaultContractID is the contract name used when none is configured.
const DefaultContractID = "basic"

// Request describes a single invocation of a remote contract function. It
// lives for exactly one submission.
type Request struct {
	ContractID string   `json:"contract_id"`
	Function   string   `json:"function"`
	Args       []string `json:"args"`
	ReadOnly   bool     `json:"read_only"`
}

func (r Request) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%s.%s%v", r.ContractID, r.Function, r.Args)
	}
	return string(b)
}

// Result is whatever the system under test returned for a request.
type Result struct {
	Payload []byte
}

// Transport submits requests to the system under test. SendRequest must
// block until the outcome of the request is known.
type Transport interface {
	SendRequest(ctx context.Context, req Request) (Result, error)
}
