// Package store declares the metadata persistence contract for attachments,
// the store-level error sentinels and the transaction helper shared by the
// service layer and the postgres implementation.
package store
