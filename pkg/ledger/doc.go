// Package ledger records point movements on reseller accounts as an
// append-only transaction log. ALLOCATION rows record points spent
// provisioning sub-accounts, PURCHASE rows record points bought. The
// Transactor guards the combined balance-mutation plus ledger-append so the
// two can never diverge.
package ledger
