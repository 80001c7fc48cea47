// Package neoquery builds Cypher queries with chained calls, runs them on
// Neo4j through the official Go driver, and returns the records as plain Go
// values.
//
//	conn, err := neoquery.NewConnection("neo4j://localhost:7687",
//		neoquery.Credentials{Username: "neo4j", Password: "secret"})
//	if err != nil {
//		return err
//	}
//	defer conn.Close(ctx)
//
//	rows, err := conn.
//		MatchNode("n", []string{"Person"}, map[string]any{"name": "Alice"}).
//		Return("n").
//		Run(ctx)
//
// Each row maps the projected names to transformed values: nodes become
// GraphNode, relationships become Relationship, paths become []any, and integers
// become int64 (or *big.Int when they do not fit).
//
// Connections register themselves on creation; call Shutdown from the
// application's shutdown sequence to close any that are still open.
package neoquery
