package main

import (
	"github.com/informalsystems/cert-load-test/pkg/loadtest"
)

const appLongDesc = `Load testing application for certificate smart contracts.
Generates deterministic, reproducible streams of certificate issuance,
verification, revocation and query requests and submits them to a Hyperledger
Fabric network (via the Fabric gateway), a JSON-RPC/WebSockets contract
gateway, or an in-process simulated ledger.

To run a single round against the simulated ledger:
    cert-load-test --workload issue -w 4 -N 1000

To run the rounds described in a configuration file against Fabric:
    cert-load-test -c config/fabric.yaml

To serve the simulated ledger for the ws transport:
    cert-load-test sim-gateway --bind localhost:26680
    cert-load-test --transport ws --endpoint ws://localhost:26680/websocket \
        --workload issue -w 4 -T 30s -r 50

Every worker derives its certificates from its worker index, so an issue round
followed by a verify round with the same workers and transaction numbers
verifies exactly the certificates that were issued. Use --worker-offset to give
each of several concurrently running load testers a disjoint range of worker
indices.
`

func main() {
	loadtest.Run(&loadtest.CLIConfig{
		AppName:         "cert-load-test",
		AppShortDesc:    "Load testing application for certificate smart contracts",
		AppLongDesc:     appLongDesc,
		DefaultWorkload: "issue",
	})
}
