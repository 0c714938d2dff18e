// Package account defines the Account model and its storage interface.
//
// One account binds to at most one device: the binding column holds a single
// opaque token, never a set. The bind-on-first-use write is a conditional
// update so concurrent first logins cannot bind inconsistent state. Balance
// mutations go through DebitPoints/CreditPoints only; DebitPoints refuses to
// take the balance negative.
package account
