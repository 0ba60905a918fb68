// Package model defines the core freight-order data types shared by the
// REST client and the realtime layer.
package model
