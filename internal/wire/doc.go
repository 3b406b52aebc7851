// Package wire speaks just enough of the client-to-node protocol to
// bootstrap and monitor cluster topology: dialing a control connection
// to a candidate node, issuing CLUSTER NODES, and reading back the
// bulk-string gossip snapshot.
//
// It deliberately implements only the request/response shapes the
// topology manager needs, not a general client protocol library.
package wire
