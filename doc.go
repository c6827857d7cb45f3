// Package authcore is the authentication and account-security engine
// for the RescueLink dispatch platform. It issues and rotates JWT pairs
// for registered users and firm personnel, tracks failed logins with a
// Redis-backed lockout state machine, and runs the one-time-code flows
// for account unlock, identity verification, and password reset.
//
// The engine is a library: it owns no HTTP surface and no user
// database. Callers inject a CredentialStore for principal lookup, a
// delivery.Gateway for code delivery, and a Redis client for all
// ephemeral state. See the httpapi package for a ready-made HTTP
// binding and cmd/authcored for a runnable service.
package authcore
