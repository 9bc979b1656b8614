// Package branding holds the product name shown to clients.
package branding

// AppName is the user-facing product name.
const AppName = "Divination"
