// Package authz defines the transaction authorization policy matrix.
//
// Handlers and the coordinator engine ask one Authorizer whether a principal
// may perform an action on a transaction instead of comparing identifiers
// inline. The default policy derives the principal's role from the party list
// and a configured auditor set; tests inject their own Authorizer.
package authz
