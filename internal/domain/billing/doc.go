// Package billing holds the core sales domain of the application: customers,
// invoices, daily invoice numbering and the payment settlement rules.
//
// Key Aggregates:
//   - Customer: A shop's customer identified by name and phone, including the
//     per-shop walk-in singleton used for anonymous counter sales
//   - Invoice: An immutable record of a sale with its settlement state
//
// Domain Services:
//   - SettleDues: Splits an incoming payment across outstanding invoices,
//     oldest first
//   - Invoice numbering: KSC-YYYYMMDD-NNN numbers that restart each day,
//     with uniqueness enforced by the storage layer
//
// Every aggregate is scoped to an owner, the shop user it belongs to.
// Repositories take the owner ID on every lookup so one shop can never
// read another shop's rows.
package billing
