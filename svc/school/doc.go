// Package school implements the gamified classroom: students, classes,
// missions, attitudes, the coin store and rankings.
//
// Every operation takes the tenant explicitly. Admin handlers derive it
// from the request scope; mobile handlers from the x-tenant-id header after
// checking that the student belongs to that tenant.
//
// Balances change only through mission completion, attitude claims and
// purchases. Purchases debit coins and stock in one transaction.
package school
