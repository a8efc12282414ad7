// Package agent keeps a static set of routers configured with the current
// address definitions. Each router gets its own reconcile loop; publishing new
// definitions cancels the running loops and starts fresh ones.
package agent
