// Package clipboard abstracts the system pasteboard so the capture handshake
// can be driven by a fake in tests.
package clipboard

import "github.com/atotto/clipboard"

// Clipboard reads and writes a single text value.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// System is the real OS pasteboard.
type System struct{}

func (System) Read() (string, error)   { return clipboard.ReadAll() }
func (System) Write(text string) error { return clipboard.WriteAll(text) }
