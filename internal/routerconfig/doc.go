// Package routerconfig owns the router entity model.
//
// Ownership boundary:
// - entity kinds table (ordering, equality, management type ids)
// - entity record and wire record conversion
// - configuration set with derived identity
// - ownership guard for deletions
package routerconfig
