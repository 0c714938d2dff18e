// Package reseller coordinates sub-account provisioning against reseller
// point balances. Debits, credits and their ledger rows are committed
// atomically through a per-reseller critical section.
package reseller
