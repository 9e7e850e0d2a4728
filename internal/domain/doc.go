// Package domain holds the attachment record and the rules every record
// must satisfy, whichever store or transport carries it.
package domain
