//go:build debug

package checksum

const debug = true
