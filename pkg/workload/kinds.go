package workload

import (
	"fmt"
	"sort"
	"strings"
)

// Fixed attributes of every issued certificate.
const (
	IssueDegree = "Bachelor of Computer Science"
	IssueIssuer = "Digital University"
)

// IssueDateLayout is the layout of the issue date argument.
const IssueDateLayout = "2006-01-02"

// Kind describes one kind of request: which function it targets, whether it
// consumes a counter position, and how its argument list is built.
type Kind struct {
	Name     string // The identifier under which the kind is registered.
	Function string // The remote contract function this kind invokes.
	ReadOnly bool   // Whether the request only queries ledger state.
	Advances bool   // Whether each request consumes a counter position.

	// Args builds the argument list. The identity is the zero value for
	// kinds that do not advance the counter.
	Args func(id Identity, issueDate string) []string
}

// Built-in workload kinds.
var (
	KindIssue = &Kind{
		Name:     "issue",
		Function: FuncIssueCertificate,
		Advances: true,
		Args: func(id Identity, issueDate string) []string {
			return []string{
				id.CertificateID,
				id.StudentName,
				IssueDegree,
				IssueIssuer,
				id.Fingerprint(),
				issueDate,
			}
		},
	}
	KindVerify = &Kind{
		Name:     "verify",
		Function: FuncVerifyCertificate,
		ReadOnly: true,
		Advances: true,
		Args: func(id Identity, _ string) []string {
			return []string{id.CertificateID, id.Fingerprint()}
		},
	}
	KindRevoke = &Kind{
		Name:     "revoke",
		Function: FuncRevokeCertificate,
		Advances: true,
		Args: func(id Identity, _ string) []string {
			return []string{id.CertificateID}
		},
	}
	KindQueryAll = &Kind{
		Name:     "queryall",
		Function: FuncQueryAllCertificates,
		ReadOnly: true,
		Args: func(Identity, string) []string {
			return []string{}
		},
	}
)

var kinds = make(map[string]*Kind)

func init() {
	for _, k := range []*Kind{KindIssue, KindVerify, KindRevoke, KindQueryAll} {
		if err := RegisterKind(k); err != nil {
			panic(err)
		}
	}
}

// RegisterKind makes a workload kind available under its name.
func RegisterKind(k *Kind) error {
	if k == nil || len(k.Name) == 0 {
		return fmt.Errorf("workload kind must have a name")
	}
	if k.Args == nil {
		return fmt.Errorf("workload kind %q has no argument builder", k.Name)
	}
	if _, exists := kinds[k.Name]; exists {
		return fmt.Errorf("%w: %s", ErrKindExists, k.Name)
	}
	kinds[k.Name] = k
	return nil
}

// GetKind looks up the workload kind registered under the given name.
func GetKind(name string) (*Kind, error) {
	k, ok := kinds[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownKind, name, strings.Join(SupportedKinds(), ", "))
	}
	return k, nil
}

// SupportedKinds returns the names of all registered kinds, sorted.
func SupportedKinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
