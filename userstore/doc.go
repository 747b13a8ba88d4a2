// Package userstore provides tokenguard.UserProvider implementations: an
// in-memory map seeded from configuration and a read-only Postgres lookup
// over the users, user_roles and roles tables.
package userstore
