// Package vault seals small secrets at rest with AES-256-GCM.
//
// Every ciphertext is bound to a Scope (subject + purpose) through the GCM
// additional data, so a TOTP seed sealed for one account cannot be opened as
// another account's seed, nor as a store snapshot.
package vault
